package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/CypherNinjaa/social-media-sub000/internal/domain/messaging"
)

// Store keeps every messaging table in process memory. All repositories
// handed out by the Factory share one Store.
type Store struct {
	mu            sync.RWMutex
	conversations map[messaging.ConversationID]messaging.Conversation
	pairs         map[string]messaging.ConversationID
	participants  map[messaging.ConversationID][]messaging.Participant
	logs          map[messaging.ConversationID][]messaging.MessageID
	messages      map[messaging.MessageID]messaging.Message
	reactions     map[messaging.MessageID][]messaging.Reaction
}

func NewStore() *Store {
	return &Store{
		conversations: make(map[messaging.ConversationID]messaging.Conversation),
		pairs:         make(map[string]messaging.ConversationID),
		participants:  make(map[messaging.ConversationID][]messaging.Participant),
		logs:          make(map[messaging.ConversationID][]messaging.MessageID),
		messages:      make(map[messaging.MessageID]messaging.Message),
		reactions:     make(map[messaging.MessageID][]messaging.Reaction),
	}
}

// snapshot copies a conversation without its pending events.
func snapshotConversation(c messaging.Conversation) *messaging.Conversation {
	out := messaging.Conversation{ID: c.ID, PairKey: c.PairKey, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
	return &out
}

func snapshotMessage(m messaging.Message) *messaging.Message {
	out := messaging.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		Edited:         m.Edited,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	return &out
}

// ConversationRepository implements messaging.ConversationRepository.
type ConversationRepository struct {
	store *Store
}

func (r ConversationRepository) ByID(ctx context.Context, id messaging.ConversationID) (*messaging.Conversation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	conv, ok := r.store.conversations[id]
	if !ok {
		return nil, messaging.ErrNotFound
	}
	return snapshotConversation(conv), nil
}

func (r ConversationRepository) FindShared(ctx context.Context, a, b messaging.UserID) (*messaging.Conversation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var best *messaging.Conversation
	for id, members := range r.store.participants {
		_, hasA := messaging.Find(members, a)
		_, hasB := messaging.Find(members, b)
		if !hasA || !hasB {
			continue
		}
		conv := r.store.conversations[id]
		if best == nil || conv.CreatedAt.Before(best.CreatedAt) ||
			(conv.CreatedAt.Equal(best.CreatedAt) && conv.ID < best.ID) {
			best = snapshotConversation(conv)
		}
	}
	if best == nil {
		return nil, messaging.ErrNotFound
	}
	return best, nil
}

func (r ConversationRepository) CreateDirect(ctx context.Context, conv *messaging.Conversation, participants []messaging.Participant) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if conv.PairKey != "" {
		if _, taken := r.store.pairs[conv.PairKey]; taken {
			return messaging.ErrConversationTaken
		}
		r.store.pairs[conv.PairKey] = conv.ID
	}
	r.store.conversations[conv.ID] = *snapshotConversation(*conv)
	r.store.participants[conv.ID] = append([]messaging.Participant(nil), participants...)
	return nil
}

func (r ConversationRepository) Touch(ctx context.Context, id messaging.ConversationID, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	conv, ok := r.store.conversations[id]
	if !ok {
		return messaging.ErrNotFound
	}
	conv.Touch(at)
	r.store.conversations[id] = conv
	return nil
}

func (r ConversationRepository) Participants(ctx context.Context, id messaging.ConversationID) ([]messaging.Participant, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if _, ok := r.store.conversations[id]; !ok {
		return nil, messaging.ErrNotFound
	}
	return append([]messaging.Participant(nil), r.store.participants[id]...), nil
}

func (r ConversationRepository) AdvanceWatermark(ctx context.Context, id messaging.ConversationID, user messaging.UserID, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	members := r.store.participants[id]
	for i := range members {
		if members[i].UserID == user {
			members[i].Advance(at)
			return nil
		}
	}
	return messaging.ErrNotParticipant
}

func (r ConversationRepository) Inbox(ctx context.Context, viewer messaging.UserID) ([]messaging.InboxEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	entries := make([]messaging.InboxEntry, 0)
	for id, members := range r.store.participants {
		self, ok := messaging.Find(members, viewer)
		if !ok {
			continue
		}
		entry := messaging.InboxEntry{
			Conversation: snapshotConversation(r.store.conversations[id]),
			Viewer:       self,
		}
		for _, p := range members {
			if p.UserID != viewer {
				entry.Others = append(entry.Others, p.UserID)
			}
		}
		log := r.store.sortedLog(id)
		if len(log) > 0 {
			entry.LastMessage = log[0]
		}
		entry.Unread = self.CountUnread(log)
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Conversation, entries[j].Conversation
		if a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.ID > b.ID
		}
		return a.UpdatedAt.After(b.UpdatedAt)
	})
	return entries, nil
}

func (r ConversationRepository) DeleteOrphans(ctx context.Context, olderThan time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	removed := 0
	for id, conv := range r.store.conversations {
		if len(r.store.participants[id]) >= 2 || !conv.CreatedAt.Before(olderThan) {
			continue
		}
		for _, msgID := range r.store.logs[id] {
			delete(r.store.messages, msgID)
			delete(r.store.reactions, msgID)
		}
		delete(r.store.logs, id)
		delete(r.store.participants, id)
		delete(r.store.conversations, id)
		if conv.PairKey != "" {
			delete(r.store.pairs, conv.PairKey)
		}
		removed++
	}
	return removed, nil
}

// sortedLog returns the conversation log newest first. Callers hold the lock.
func (s *Store) sortedLog(id messaging.ConversationID) []*messaging.Message {
	ids := s.logs[id]
	out := make([]*messaging.Message, 0, len(ids))
	for _, msgID := range ids {
		out = append(out, snapshotMessage(s.messages[msgID]))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// MessageRepository implements messaging.MessageRepository.
type MessageRepository struct {
	store *Store
}

func (r MessageRepository) Append(ctx context.Context, m *messaging.Message) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.conversations[m.ConversationID]; !ok {
		return messaging.ErrNotFound
	}
	r.store.messages[m.ID] = *snapshotMessage(*m)
	r.store.logs[m.ConversationID] = append(r.store.logs[m.ConversationID], m.ID)
	return nil
}

func (r MessageRepository) ByID(ctx context.Context, id messaging.MessageID) (*messaging.Message, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	m, ok := r.store.messages[id]
	if !ok {
		return nil, messaging.ErrNotFound
	}
	return snapshotMessage(m), nil
}

func (r MessageRepository) OwnedBy(ctx context.Context, id messaging.MessageID, sender messaging.UserID) (*messaging.Message, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	m, ok := r.store.messages[id]
	if !ok || sender == "" || m.SenderID != sender {
		return nil, messaging.ErrNotFound
	}
	return snapshotMessage(m), nil
}

func (r MessageRepository) SaveEdit(ctx context.Context, m *messaging.Message) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.messages[m.ID]
	if !ok || stored.SenderID != m.SenderID {
		return messaging.ErrNotFound
	}
	if stored.IsDeleted() {
		return messaging.ErrMessageDeleted
	}
	stored.Body = m.Body
	stored.Edited = m.Edited
	stored.UpdatedAt = m.UpdatedAt
	r.store.messages[m.ID] = stored
	return nil
}

func (r MessageRepository) SaveDelete(ctx context.Context, m *messaging.Message) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.messages[m.ID]
	if !ok || stored.SenderID != m.SenderID {
		return messaging.ErrNotFound
	}
	if stored.IsDeleted() {
		return nil
	}
	stored.Body = messaging.Deleted{}
	stored.UpdatedAt = m.UpdatedAt
	r.store.messages[m.ID] = stored
	return nil
}

func (r MessageRepository) Clear(ctx context.Context, id messaging.ConversationID, at time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.conversations[id]; !ok {
		return 0, messaging.ErrNotFound
	}
	cleared := 0
	for _, msgID := range r.store.logs[id] {
		m := r.store.messages[msgID]
		if m.IsDeleted() {
			continue
		}
		m.Body = messaging.Deleted{}
		m.UpdatedAt = at.UTC()
		r.store.messages[msgID] = m
		cleared++
	}
	return cleared, nil
}

func (r MessageRepository) List(ctx context.Context, id messaging.ConversationID, page messaging.Page) ([]*messaging.Message, error) {
	page = page.Normalized()
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*messaging.Message, 0, page.Limit)
	for _, m := range r.store.sortedLog(id) {
		if page.Before != nil && !page.Before.Admits(m) {
			continue
		}
		out = append(out, m)
		if len(out) == page.Limit {
			break
		}
	}
	return out, nil
}

// Search matches messages containing every query term, case-insensitively.
// Rank is the number of term occurrences.
func (r MessageRepository) Search(ctx context.Context, params messaging.SearchParams) ([]messaging.SearchHit, error) {
	terms := strings.Fields(strings.ToLower(params.Query))
	if len(terms) == 0 {
		return nil, messaging.ErrEmptyQuery
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	hits := make([]messaging.SearchHit, 0)
	for convID, members := range r.store.participants {
		if params.ConversationID != "" && convID != params.ConversationID {
			continue
		}
		if _, ok := messaging.Find(members, params.Viewer); !ok {
			continue
		}
		for _, m := range r.store.sortedLog(convID) {
			content, live := m.Content()
			if !live {
				continue
			}
			rank, ok := score(strings.ToLower(content), terms)
			if !ok {
				continue
			}
			hits = append(hits, messaging.SearchHit{Message: m, Snippet: snippet(content, terms[0]), Rank: rank})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Rank != hits[j].Rank {
			return hits[i].Rank > hits[j].Rank
		}
		return hits[i].Message.CreatedAt.After(hits[j].Message.CreatedAt)
	})
	if params.Limit > 0 && len(hits) > params.Limit {
		hits = hits[:params.Limit]
	}
	return hits, nil
}

func score(content string, terms []string) (float64, bool) {
	total := 0
	for _, term := range terms {
		n := strings.Count(content, term)
		if n == 0 {
			return 0, false
		}
		total += n
	}
	return float64(total), true
}

const snippetRadius = 40

func snippet(content, term string) string {
	runes := []rune(content)
	lower := strings.ToLower(content)
	idx := strings.Index(lower, term)
	if idx < 0 || utf8.RuneCountInString(lower) != len(runes) {
		return string(runes[:min(len(runes), 2*snippetRadius)])
	}
	start := max(utf8.RuneCountInString(lower[:idx])-snippetRadius, 0)
	end := min(start+2*snippetRadius+utf8.RuneCountInString(term), len(runes))
	return string(runes[start:end])
}

// ReactionRepository implements messaging.ReactionRepository.
type ReactionRepository struct {
	store *Store
}

func (r ReactionRepository) Toggle(ctx context.Context, reaction messaging.Reaction) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.messages[reaction.MessageID]; !ok {
		return false, messaging.ErrNotFound
	}
	current := r.store.reactions[reaction.MessageID]
	for i, existing := range current {
		if existing.UserID == reaction.UserID && existing.Emoji == reaction.Emoji {
			r.store.reactions[reaction.MessageID] = append(current[:i:i], current[i+1:]...)
			return false, nil
		}
	}
	r.store.reactions[reaction.MessageID] = append(current, reaction)
	return true, nil
}

func (r ReactionRepository) ForMessages(ctx context.Context, ids []messaging.MessageID) ([]messaging.Reaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]messaging.Reaction, 0)
	for _, id := range ids {
		out = append(out, r.store.reactions[id]...)
	}
	return out, nil
}

var (
	_ messaging.ConversationRepository = ConversationRepository{}
	_ messaging.MessageRepository      = MessageRepository{}
	_ messaging.ReactionRepository     = ReactionRepository{}
)
