package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/CypherNinjaa/social-media-sub000/internal/domain/profile"
)

// ProfileDirectory reads the profiles collection owned by the profile service.
type ProfileDirectory struct {
	col *mongo.Collection
}

func NewProfileDirectory(db *mongo.Database) *ProfileDirectory {
	return &ProfileDirectory{col: db.Collection("profiles")}
}

type profileDocument struct {
	ID        string `bson:"_id"`
	Username  string `bson:"username"`
	AvatarURL string `bson:"avatar_url,omitempty"`
	AvatarKey string `bson:"avatar_key,omitempty"`
}

func (d *ProfileDirectory) Lookup(ctx context.Context, userIDs []string) (map[string]profile.Profile, error) {
	out := make(map[string]profile.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	cur, err := d.col.Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to find profiles: %w", err)
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var doc profileDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode profile: %w", err)
		}
		out[doc.ID] = profile.Profile{
			UserID:    doc.ID,
			Username:  doc.Username,
			AvatarURL: doc.AvatarURL,
			AvatarKey: doc.AvatarKey,
		}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	return out, nil
}

// Upsert stores a profile; used by dmctl seeding and tests.
func (d *ProfileDirectory) Upsert(ctx context.Context, p profile.Profile) error {
	doc := profileDocument{ID: p.UserID, Username: p.Username, AvatarURL: p.AvatarURL, AvatarKey: p.AvatarKey}
	_, err := d.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

var _ profile.Directory = (*ProfileDirectory)(nil)
