package messaging

import "errors"

var (
	ErrUnauthenticated   = errors.New("messaging: not authenticated")
	ErrNotFound          = errors.New("messaging: not found")
	ErrNotParticipant    = errors.New("messaging: not a conversation participant")
	ErrMissingPeer       = errors.New("messaging: peer user id is required")
	ErrSelfConversation  = errors.New("messaging: cannot start a conversation with yourself")
	ErrConversationTaken = errors.New("messaging: conversation already exists for pair")
	ErrEmptyContent      = errors.New("messaging: content is required")
	ErrContentTooLong    = errors.New("messaging: content is too long")
	ErrMessageDeleted    = errors.New("messaging: message was deleted")
	ErrInvalidEmoji      = errors.New("messaging: invalid reaction")
	ErrEmptyQuery        = errors.New("messaging: search query is required")
	ErrInvalidCursor     = errors.New("messaging: invalid cursor")
)
