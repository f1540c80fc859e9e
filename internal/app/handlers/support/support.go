package support

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/outbox"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/uow"
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/messaging"
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/profile"
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/shared/events"
)

// Actor normalises the authenticated user id.
func Actor(raw string) (messaging.UserID, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", messaging.ErrUnauthenticated
	}
	return messaging.UserID(id), nil
}

// Now returns at, or the current UTC time when at is zero.
func Now(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now().UTC()
	}
	return at.UTC()
}

// Membership loads the conversation and checks that user participates in it.
func Membership(ctx context.Context, unit uow.UnitOfWork, id messaging.ConversationID, user messaging.UserID) (*messaging.Conversation, []messaging.Participant, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, nil, messaging.ErrNotFound
	}
	conv, err := unit.Conversations().ByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	participants, err := unit.Conversations().Participants(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := messaging.Find(participants, user); !ok {
		return nil, nil, messaging.ErrNotParticipant
	}
	return conv, participants, nil
}

// Publisher records domain events in the outbox addressed to conversation members.
type Publisher struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
}

func (p Publisher) Publish(ctx context.Context, participants []messaging.Participant, evs ...events.DomainEvent) error {
	if p.Outbox == nil || len(evs) == 0 {
		return nil
	}
	audience := make([]string, 0, len(participants))
	for _, member := range messaging.Members(participants) {
		audience = append(audience, string(member))
	}
	return outbox.RecordDomainEvents(ctx, p.Outbox, p.Encoder, evs, audience)
}

// Profiles resolves profiles for ids. Unknown ids, and every id when the
// directory fails, get placeholders; the lookup error is still returned.
func Profiles(ctx context.Context, dir profile.Directory, ids []string) (map[string]profile.Profile, error) {
	out := make(map[string]profile.Profile, len(ids))
	var lookupErr error
	if dir != nil && len(ids) > 0 {
		found, err := dir.Lookup(ctx, dedupe(ids))
		if err != nil {
			lookupErr = err
		}
		for k, v := range found {
			out[k] = v
		}
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok && id != "" {
			out[id] = profile.Placeholder(id)
		}
	}
	return out, lookupErr
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// IsNotFound reports whether err means a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, messaging.ErrNotFound)
}
