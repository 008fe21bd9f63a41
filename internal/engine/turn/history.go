// Package turn owns in-flight turn lifecycle and the visible transcript:
// the Controller drives one submission from input to settlement, the
// History reconciles optimistic local state with the server's copy.
package turn

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/educhat-backend/internal/engine/api"
	"github.com/yungbote/educhat-backend/internal/platform/logger"
)

// Identity tags a turn as either optimistic-local or server-confirmed.
// Exactly one side is set; there is no string-prefix sniffing.
type Identity struct {
	local  uint64
	server uuid.UUID
}

func LocalID(token uint64) Identity     { return Identity{local: token} }
func PersistedID(id uuid.UUID) Identity { return Identity{server: id} }

func (id Identity) IsPersisted() bool    { return id.server != uuid.Nil }
func (id Identity) IsLocal() bool        { return !id.IsPersisted() && id.local != 0 }
func (id Identity) ServerID() uuid.UUID  { return id.server }
func (id Identity) LocalToken() uint64   { return id.local }

// Turn is one visible transcript entry. Seq is the server sequence for
// persisted turns and -1 while local-only.
type Turn struct {
	ID        Identity
	Seq       int64
	Role      string
	Content   string
	Reasoning string

	// Failed marks a turn whose submission failed; the text stays visible
	// and resendable instead of silently vanishing.
	Failed bool
}

// History is the single source of truth for what the user currently sees.
// Selecting a chat replaces local state wholesale; optimistic turns from
// another chat are discarded, never merged.
type History struct {
	mu     sync.Mutex
	log    *logger.Logger
	client api.Client

	chatID uuid.UUID
	turns  []Turn
}

func NewHistory(log *logger.Logger, client api.Client) *History {
	return &History{
		log:    log.With("component", "TurnHistory"),
		client: client,
	}
}

func (h *History) ChatID() uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.chatID
}

// Turns returns a copy of the visible transcript.
func (h *History) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

func (h *History) Append(t Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, t)
}

// ReplaceFrom drops every turn at or after index and appends the
// replacements. Used by rerun and edit.
func (h *History) ReplaceFrom(index int, turns ...Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if index < 0 {
		index = 0
	}
	if index > len(h.turns) {
		index = len(h.turns)
	}
	h.turns = append(h.turns[:index], turns...)
}

func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chatID = uuid.Nil
	h.turns = nil
}

// Update mutates the turn with the given identity in place. Returns false
// when no such turn is visible (already removed or replaced).
func (h *History) Update(id Identity, fn func(*Turn)) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.turns {
		if h.turns[i].ID == id {
			fn(&h.turns[i])
			return true
		}
	}
	return false
}

// Remove deletes the turns with the given identities, preserving order of
// the rest. Used to clean up optimistic placeholders after a failure.
func (h *History) Remove(ids ...Identity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	drop := make(map[Identity]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := h.turns[:0]
	for _, t := range h.turns {
		if !drop[t.ID] {
			kept = append(kept, t)
		}
	}
	h.turns = kept
}

func (h *History) IndexOf(id Identity) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.turns {
		if h.turns[i].ID == id {
			return i
		}
	}
	return -1
}

// Load fetches the authoritative transcript for chatID and replaces local
// state wholesale.
func (h *History) Load(ctx context.Context, chatID uuid.UUID) error {
	msgs, err := h.client.ListMessages(ctx, chatID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chatID = chatID
	h.turns = fromMessages(msgs)
	return nil
}

// Reconcile refetches the authoritative transcript and merges it with
// local-only turns. A locally finalized assistant turn that the server has
// since persisted is matched by role and content and replaced by the
// persisted copy, never shown twice.
func (h *History) Reconcile(ctx context.Context) error {
	h.mu.Lock()
	chatID := h.chatID
	h.mu.Unlock()
	if chatID == uuid.Nil {
		return nil
	}

	msgs, err := h.client.ListMessages(ctx, chatID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.chatID != chatID {
		// Switched away while fetching; the fetched transcript is stale.
		return nil
	}

	merged := fromMessages(msgs)
	for _, t := range h.turns {
		if t.ID.IsPersisted() {
			continue
		}
		if matchesPersisted(merged, t) {
			continue
		}
		merged = append(merged, t)
	}
	h.turns = merged
	return nil
}

// matchesPersisted compares trimmed content: the server trims user turns
// before persisting, so the stored row may differ from the optimistic copy
// by surrounding whitespace only.
func matchesPersisted(persisted []Turn, local Turn) bool {
	content := strings.TrimSpace(local.Content)
	for i := len(persisted) - 1; i >= 0; i-- {
		if persisted[i].Role == local.Role && strings.TrimSpace(persisted[i].Content) == content {
			return true
		}
	}
	return false
}

func fromMessages(msgs []api.Message) []Turn {
	out := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Turn{
			ID:        PersistedID(m.ID),
			Seq:       m.Seq,
			Role:      m.Role,
			Content:   m.Content,
			Reasoning: m.Reasoning,
		})
	}
	return out
}
