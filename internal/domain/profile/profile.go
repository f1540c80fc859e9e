package profile

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("profile: not found")

// Profile holds the public identity fields shown next to messages.
type Profile struct {
	UserID    string
	Username  string
	AvatarURL string
	AvatarKey string
}

// Directory resolves public profiles by user id. Unknown ids are omitted from
// the result rather than reported as errors.
type Directory interface {
	Lookup(ctx context.Context, userIDs []string) (map[string]Profile, error)
}

// DisplayName falls back to the user id when no username is known.
func (p Profile) DisplayName() string {
	if p.Username != "" {
		return p.Username
	}
	return p.UserID
}

// Placeholder is used for users the directory does not know.
func Placeholder(userID string) Profile {
	return Profile{UserID: userID}
}
