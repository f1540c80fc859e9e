package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CypherNinjaa/social-media-sub000/internal/domain/messaging"
)

// Ids are uuid columns; anything else cannot match a row.
func validID[T ~string](id T) bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}

// ConversationRepository implements messaging.ConversationRepository.
type ConversationRepository struct {
	db *gorm.DB
}

func (r ConversationRepository) ByID(ctx context.Context, id messaging.ConversationID) (*messaging.Conversation, error) {
	if !validID(id) {
		return nil, messaging.ErrNotFound
	}
	var row conversationRow
	if err := r.db.WithContext(ctx).Where("id = ?", string(id)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, messaging.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return row.toDomain(), nil
}

func (r ConversationRepository) FindShared(ctx context.Context, a, b messaging.UserID) (*messaging.Conversation, error) {
	var rows []conversationRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT c.id, c.pair_key, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants pa ON pa.conversation_id = c.id AND pa.user_id = ?
		JOIN conversation_participants pb ON pb.conversation_id = c.id AND pb.user_id = ?
		ORDER BY c.created_at ASC, c.id ASC
		LIMIT 1`, string(a), string(b)).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find shared conversation: %w", err)
	}
	if len(rows) == 0 {
		return nil, messaging.ErrNotFound
	}
	return rows[0].toDomain(), nil
}

func (r ConversationRepository) CreateDirect(ctx context.Context, conv *messaging.Conversation, participants []messaging.Participant) error {
	db := r.db.WithContext(ctx)
	row := toConversationRow(conv)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pair_key"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("failed to insert conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return messaging.ErrConversationTaken
	}
	if len(participants) == 0 {
		return nil
	}
	rows := make([]participantRow, 0, len(participants))
	for _, p := range participants {
		rows = append(rows, participantRow{
			ConversationID: string(p.ConversationID),
			UserID:         string(p.UserID),
			JoinedAt:       p.JoinedAt.UTC(),
			LastReadAt:     p.LastReadAt.UTC(),
		})
	}
	if err := db.Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert participants: %w", err)
	}
	return nil
}

func (r ConversationRepository) Touch(ctx context.Context, id messaging.ConversationID, at time.Time) error {
	if !validID(id) {
		return messaging.ErrNotFound
	}
	err := r.db.WithContext(ctx).Model(&conversationRow{}).
		Where("id = ? AND updated_at < ?", string(id), at.UTC()).
		UpdateColumn("updated_at", at.UTC()).Error
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

func (r ConversationRepository) Participants(ctx context.Context, id messaging.ConversationID) ([]messaging.Participant, error) {
	if !validID(id) {
		return nil, messaging.ErrNotFound
	}
	var rows []participantRow
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", string(id)).
		Order("joined_at ASC, user_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	if len(rows) == 0 {
		if _, err := r.ByID(ctx, id); err != nil {
			return nil, err
		}
	}
	out := make([]messaging.Participant, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r ConversationRepository) AdvanceWatermark(ctx context.Context, id messaging.ConversationID, user messaging.UserID, at time.Time) error {
	if !validID(id) {
		return messaging.ErrNotParticipant
	}
	res := r.db.WithContext(ctx).Model(&participantRow{}).
		Where("conversation_id = ? AND user_id = ?", string(id), string(user)).
		UpdateColumn("last_read_at", gorm.Expr("GREATEST(last_read_at, ?)", at.UTC()))
	if res.Error != nil {
		return fmt.Errorf("failed to advance watermark: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return messaging.ErrNotParticipant
	}
	return nil
}

type inboxRow struct {
	ID          string     `gorm:"column:id"`
	PairKey     *string    `gorm:"column:pair_key"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
	JoinedAt    time.Time  `gorm:"column:joined_at"`
	LastReadAt  time.Time  `gorm:"column:last_read_at"`
	OtherIDs    *string    `gorm:"column:other_ids"`
	LastID      *string    `gorm:"column:lm_id"`
	LastSender  *string    `gorm:"column:lm_sender_id"`
	LastContent *string    `gorm:"column:lm_content"`
	LastEdited  *bool      `gorm:"column:lm_is_edited"`
	LastDeleted *bool      `gorm:"column:lm_is_deleted"`
	LastCreated *time.Time `gorm:"column:lm_created_at"`
	LastUpdated *time.Time `gorm:"column:lm_updated_at"`
	Unread      int        `gorm:"column:unread"`
}

// inboxQuery assembles every inbox row in one round trip: the other
// participants, the latest message and the unread count come from LATERAL
// subqueries per conversation.
const inboxQuery = `
SELECT c.id, c.pair_key, c.created_at, c.updated_at,
       me.joined_at, me.last_read_at,
       others.ids AS other_ids,
       lm.id AS lm_id, lm.sender_id AS lm_sender_id, lm.content AS lm_content,
       lm.is_edited AS lm_is_edited, lm.is_deleted AS lm_is_deleted,
       lm.created_at AS lm_created_at, lm.updated_at AS lm_updated_at,
       COALESCE(un.n, 0) AS unread
FROM conversation_participants me
JOIN conversations c ON c.id = me.conversation_id
LEFT JOIN LATERAL (
    SELECT string_agg(p.user_id, ',' ORDER BY p.joined_at, p.user_id) AS ids
    FROM conversation_participants p
    WHERE p.conversation_id = c.id AND p.user_id <> me.user_id
) others ON true
LEFT JOIN LATERAL (
    SELECT m.id, m.sender_id, m.content, m.is_edited, m.is_deleted, m.created_at, m.updated_at
    FROM messages m
    WHERE m.conversation_id = c.id
    ORDER BY m.created_at DESC, m.id DESC
    LIMIT 1
) lm ON true
LEFT JOIN LATERAL (
    SELECT count(*) AS n
    FROM messages m
    WHERE m.conversation_id = c.id
      AND m.is_deleted = false
      AND m.created_at > me.last_read_at
      AND (m.sender_id IS NULL OR m.sender_id <> me.user_id)
) un ON true
WHERE me.user_id = ?
ORDER BY c.updated_at DESC, c.id DESC`

func (r ConversationRepository) Inbox(ctx context.Context, viewer messaging.UserID) ([]messaging.InboxEntry, error) {
	var rows []inboxRow
	if err := r.db.WithContext(ctx).Raw(inboxQuery, string(viewer)).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load inbox: %w", err)
	}
	entries := make([]messaging.InboxEntry, 0, len(rows))
	for _, row := range rows {
		conv := conversationRow{ID: row.ID, PairKey: row.PairKey, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt}.toDomain()
		entry := messaging.InboxEntry{
			Conversation: conv,
			Viewer: messaging.Participant{
				ConversationID: conv.ID,
				UserID:         viewer,
				JoinedAt:       row.JoinedAt.UTC(),
				LastReadAt:     row.LastReadAt.UTC(),
			},
			Unread: row.Unread,
		}
		if row.OtherIDs != nil {
			for _, id := range strings.Split(*row.OtherIDs, ",") {
				if id != "" {
					entry.Others = append(entry.Others, messaging.UserID(id))
				}
			}
		}
		if row.LastID != nil {
			entry.LastMessage = messageRow{
				ID:             *row.LastID,
				ConversationID: row.ID,
				SenderID:       row.LastSender,
				Content:        row.LastContent,
				IsEdited:       row.LastEdited != nil && *row.LastEdited,
				IsDeleted:      row.LastDeleted != nil && *row.LastDeleted,
				CreatedAt:      deref(row.LastCreated),
				UpdatedAt:      deref(row.LastUpdated),
			}.toDomain()
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func (r ConversationRepository) DeleteOrphans(ctx context.Context, olderThan time.Time) (int, error) {
	db := r.db.WithContext(ctx)
	var ids []string
	err := db.Raw(`
		SELECT c.id FROM conversations c
		WHERE c.created_at < ?
		  AND (SELECT count(*) FROM conversation_participants p WHERE p.conversation_id = c.id) < 2`,
		olderThan.UTC()).Scan(&ids).Error
	if err != nil {
		return 0, fmt.Errorf("failed to find orphans: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	steps := []struct {
		stmt string
		name string
	}{
		{`DELETE FROM message_reactions WHERE message_id IN (SELECT id FROM messages WHERE conversation_id IN ?)`, "reactions"},
		{`DELETE FROM messages WHERE conversation_id IN ?`, "messages"},
		{`DELETE FROM conversation_participants WHERE conversation_id IN ?`, "participants"},
	}
	for _, step := range steps {
		if err := db.Exec(step.stmt, ids).Error; err != nil {
			return 0, fmt.Errorf("failed to delete orphan %s: %w", step.name, err)
		}
	}
	res := db.Where("id IN ?", ids).Delete(&conversationRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete orphan conversations: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// MessageRepository implements messaging.MessageRepository.
type MessageRepository struct {
	db *gorm.DB
}

func (r MessageRepository) Append(ctx context.Context, m *messaging.Message) error {
	row := toMessageRow(m)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (r MessageRepository) ByID(ctx context.Context, id messaging.MessageID) (*messaging.Message, error) {
	return r.first(ctx, r.db.Where("id = ?", string(id)), id)
}

func (r MessageRepository) OwnedBy(ctx context.Context, id messaging.MessageID, sender messaging.UserID) (*messaging.Message, error) {
	if sender == "" {
		return nil, messaging.ErrNotFound
	}
	return r.first(ctx, r.db.Where("id = ? AND sender_id = ?", string(id), string(sender)), id)
}

func (r MessageRepository) first(ctx context.Context, scope *gorm.DB, id messaging.MessageID) (*messaging.Message, error) {
	if !validID(id) {
		return nil, messaging.ErrNotFound
	}
	var row messageRow
	if err := scope.WithContext(ctx).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, messaging.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	return row.toDomain(), nil
}

// SaveEdit only matches live rows, so a delete that commits first makes the
// edit fail instead of resurrecting content.
func (r MessageRepository) SaveEdit(ctx context.Context, m *messaging.Message) error {
	content, ok := m.Content()
	if !ok {
		return messaging.ErrMessageDeleted
	}
	res := r.db.WithContext(ctx).Model(&messageRow{}).
		Where("id = ? AND sender_id = ? AND is_deleted = false", string(m.ID), string(m.SenderID)).
		UpdateColumns(map[string]any{
			"content":    content,
			"is_edited":  m.Edited,
			"updated_at": m.UpdatedAt.UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.OwnedBy(ctx, m.ID, m.SenderID); err != nil {
			return err
		}
		return messaging.ErrMessageDeleted
	}
	return nil
}

func (r MessageRepository) SaveDelete(ctx context.Context, m *messaging.Message) error {
	res := r.db.WithContext(ctx).Model(&messageRow{}).
		Where("id = ? AND sender_id = ? AND is_deleted = false", string(m.ID), string(m.SenderID)).
		UpdateColumns(map[string]any{
			"content":    gorm.Expr("NULL"),
			"is_deleted": true,
			"updated_at": m.UpdatedAt.UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to delete message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		_, err := r.OwnedBy(ctx, m.ID, m.SenderID)
		return err
	}
	return nil
}

func (r MessageRepository) Clear(ctx context.Context, id messaging.ConversationID, at time.Time) (int, error) {
	if !validID(id) {
		return 0, messaging.ErrNotFound
	}
	res := r.db.WithContext(ctx).Model(&messageRow{}).
		Where("conversation_id = ? AND is_deleted = false", string(id)).
		UpdateColumns(map[string]any{
			"content":    gorm.Expr("NULL"),
			"is_deleted": true,
			"updated_at": at.UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clear conversation: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r MessageRepository) List(ctx context.Context, id messaging.ConversationID, page messaging.Page) ([]*messaging.Message, error) {
	page = page.Normalized()
	if !validID(id) {
		return nil, nil
	}
	q := r.db.WithContext(ctx).Where("conversation_id = ?", string(id))
	if page.Before != nil {
		if !validID(page.Before.ID) {
			return nil, messaging.ErrInvalidCursor
		}
		q = q.Where("(created_at, id) < (?, ?)", page.Before.CreatedAt.UTC(), string(page.Before.ID))
	}
	var rows []messageRow
	if err := q.Order("created_at DESC, id DESC").Limit(page.Limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	out := make([]*messaging.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

type searchRow struct {
	messageRow
	Rank    float64 `gorm:"column:rank"`
	Snippet string  `gorm:"column:snippet"`
}

func (r MessageRepository) Search(ctx context.Context, params messaging.SearchParams) ([]messaging.SearchHit, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, messaging.ErrEmptyQuery
	}
	if params.ConversationID != "" && !validID(params.ConversationID) {
		return nil, nil
	}
	sql := `
		SELECT m.*,
		       ts_rank(to_tsvector('simple', coalesce(m.content, '')), q) AS rank,
		       ts_headline('simple', m.content, q, 'MaxWords=24, MinWords=8') AS snippet
		FROM messages m
		JOIN conversation_participants p ON p.conversation_id = m.conversation_id AND p.user_id = @viewer
		CROSS JOIN plainto_tsquery('simple', @query) AS q
		WHERE m.is_deleted = false
		  AND to_tsvector('simple', coalesce(m.content, '')) @@ q`
	args := map[string]any{"viewer": string(params.Viewer), "query": query}
	if params.ConversationID != "" {
		sql += ` AND m.conversation_id = @conversation`
		args["conversation"] = string(params.ConversationID)
	}
	sql += ` ORDER BY rank DESC, m.created_at DESC`
	if params.Limit > 0 {
		sql += ` LIMIT @limit`
		args["limit"] = params.Limit
	}
	var rows []searchRow
	if err := r.db.WithContext(ctx).Raw(sql, args).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	hits := make([]messaging.SearchHit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, messaging.SearchHit{Message: row.messageRow.toDomain(), Snippet: row.Snippet, Rank: row.Rank})
	}
	return hits, nil
}

// ReactionRepository implements messaging.ReactionRepository.
type ReactionRepository struct {
	db *gorm.DB
}

func (r ReactionRepository) Toggle(ctx context.Context, reaction messaging.Reaction) (bool, error) {
	if !validID(reaction.MessageID) {
		return false, messaging.ErrNotFound
	}
	db := r.db.WithContext(ctx)
	res := db.Where("message_id = ? AND user_id = ? AND reaction = ?",
		string(reaction.MessageID), string(reaction.UserID), reaction.Emoji).
		Delete(&reactionRow{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to remove reaction: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return false, nil
	}
	row := reactionRow{
		MessageID: string(reaction.MessageID),
		UserID:    string(reaction.UserID),
		Reaction:  reaction.Emoji,
		CreatedAt: reaction.CreatedAt.UTC(),
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return false, fmt.Errorf("failed to add reaction: %w", err)
	}
	return true, nil
}

func (r ReactionRepository) ForMessages(ctx context.Context, ids []messaging.MessageID) ([]messaging.Reaction, error) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			keys = append(keys, string(id))
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}
	var rows []reactionRow
	err := r.db.WithContext(ctx).
		Where("message_id IN ?", keys).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load reactions: %w", err)
	}
	out := make([]messaging.Reaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

var (
	_ messaging.ConversationRepository = ConversationRepository{}
	_ messaging.MessageRepository      = MessageRepository{}
	_ messaging.ReactionRepository     = ReactionRepository{}
)
