package messaging

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const MaxEmojiRunes = 16

// Reaction is one (message, user, emoji) membership.
type Reaction struct {
	MessageID MessageID
	UserID    UserID
	Emoji     string
	CreatedAt time.Time
}

// ReactionGroup is the display aggregate of one emoji on a message.
type ReactionGroup struct {
	Emoji   string
	Count   int
	UserIDs []UserID
}

// NormalizeEmoji validates an emoji token.
func NormalizeEmoji(raw string) (string, error) {
	emoji := strings.TrimSpace(raw)
	if emoji == "" || utf8.RuneCountInString(emoji) > MaxEmojiRunes {
		return "", ErrInvalidEmoji
	}
	return emoji, nil
}

// GroupReactions folds reactions into per-emoji groups ordered by the first
// time each emoji was used.
func GroupReactions(reactions []Reaction) []ReactionGroup {
	if len(reactions) == 0 {
		return nil
	}
	sorted := append([]Reaction(nil), reactions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	index := make(map[string]int)
	groups := make([]ReactionGroup, 0)
	for _, r := range sorted {
		pos, ok := index[r.Emoji]
		if !ok {
			pos = len(groups)
			index[r.Emoji] = pos
			groups = append(groups, ReactionGroup{Emoji: r.Emoji})
		}
		groups[pos].Count++
		groups[pos].UserIDs = append(groups[pos].UserIDs, r.UserID)
	}
	return groups
}

// ByMessage buckets reactions by message id.
func ByMessage(reactions []Reaction) map[MessageID][]Reaction {
	out := make(map[MessageID][]Reaction)
	for _, r := range reactions {
		out[r.MessageID] = append(out[r.MessageID], r)
	}
	return out
}

// Reactors lists the distinct users behind reactions in first-seen order.
func Reactors(reactions []Reaction) []string {
	seen := make(map[UserID]struct{}, len(reactions))
	out := make([]string, 0, len(reactions))
	for _, r := range reactions {
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		out = append(out, string(r.UserID))
	}
	return out
}
