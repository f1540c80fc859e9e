package realtime

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	appoutbox "github.com/CypherNinjaa/social-media-sub000/internal/app/outbox"
)

// Change is one refresh signal delivered to the users in Audience.
type Change struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id"`
	Audience       []string        `json:"-"`
	Data           json.RawMessage `json:"data"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

var ErrMalformedEvent = errors.New("realtime: malformed event")

type cloudEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Subject string          `json:"subject"`
	Time    time.Time       `json:"time"`
	Data    json.RawMessage `json:"data"`
}

// Decode reads a CloudEvents envelope produced by the outbox relay.
func Decode(payload []byte, headers map[string]string) (Change, error) {
	var evt cloudEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Change{}, errors.Join(ErrMalformedEvent, err)
	}
	if evt.ID == "" || evt.Type == "" {
		return Change{}, ErrMalformedEvent
	}
	rec := appoutbox.EventRecord{Headers: headers}
	return Change{
		ID:             evt.ID,
		Type:           strings.TrimSuffix(evt.Type, ".v1"),
		ConversationID: evt.Subject,
		Audience:       rec.Audience(),
		Data:           evt.Data,
		OccurredAt:     evt.Time.UTC(),
	}, nil
}
