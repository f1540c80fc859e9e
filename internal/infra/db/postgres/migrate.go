package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS messages_log_idx ON messages (conversation_id, created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS messages_content_fts_idx ON messages USING GIN (to_tsvector('simple', coalesce(content, '')))`,
	`CREATE INDEX IF NOT EXISTS conversations_updated_idx ON conversations (updated_at DESC)`,
}

// Migrate creates the messaging schema. It is safe to run repeatedly.
func Migrate(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx)
	if err := tx.AutoMigrate(&conversationRow{}, &participantRow{}, &messageRow{}, &reactionRow{}); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}
	for _, stmt := range indexes {
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
