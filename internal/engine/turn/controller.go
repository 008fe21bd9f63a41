package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/educhat-backend/internal/domain"
	"github.com/yungbote/educhat-backend/internal/engine/api"
	"github.com/yungbote/educhat-backend/internal/engine/transcript"
	"github.com/yungbote/educhat-backend/internal/engine/wire"
	"github.com/yungbote/educhat-backend/internal/pkg/ctxutil"
	pkgerrors "github.com/yungbote/educhat-backend/internal/pkg/errors"
	"github.com/yungbote/educhat-backend/internal/platform/logger"
)

type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusStreaming
	StatusSettled
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusStreaming:
		return "streaming"
	case StatusSettled:
		return "settled"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

var (
	ErrTurnInFlight = errors.New("a turn is already in flight")
	ErrEmptyMessage = fmt.Errorf("message is empty: %w", pkgerrors.ErrInvalidArgument)
	ErrNoChat       = fmt.Errorf("no chat selected: %w", pkgerrors.ErrInvalidArgument)
	ErrNotUserTurn  = fmt.Errorf("rerun target is not a user turn: %w", pkgerrors.ErrInvalidArgument)
)

// Controller drives one turn at a time from submission to settlement.
// Submit and Rerun block until the stream ends; callers that need a live UI
// run them in a goroutine and watch OnPartial. At most one turn is in
// flight; a second submission is rejected, it never queues.
type Controller struct {
	log     *logger.Logger
	client  api.Client
	history *History

	mu         sync.Mutex
	status     Status
	generation uint64
	nextLocal  uint64
	acc        *transcript.Accumulator
	assistant  Identity
	cancel     context.CancelFunc
	onPartial  func(partial string)
}

func NewController(log *logger.Logger, client api.Client, history *History) *Controller {
	return &Controller{
		log:     log.With("component", "TurnController"),
		client:  client,
		history: history,
		status:  StatusIdle,
	}
}

// OnPartial registers the callback invoked with the full partial transcript
// after every delta of the current turn.
func (c *Controller) OnPartial(fn func(partial string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPartial = fn
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == StatusPending || c.status == StatusStreaming
}

// Partial returns the assistant text accumulated so far for the current
// turn, empty when nothing is in flight.
func (c *Controller) Partial() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.acc == nil {
		return ""
	}
	return c.acc.Partial()
}

// Submit sends text as a new user turn and streams the reply. The user turn
// and an assistant placeholder appear in history immediately; on failure the
// placeholder is removed and the user turn is marked failed so its text
// stays resendable.
func (c *Controller) Submit(ctx context.Context, text string) error {
	// The server trims before persisting; trimming here keeps the optimistic
	// turn byte-identical to the row a later refetch returns.
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if c.history.ChatID() == uuid.Nil {
		return ErrNoChat
	}

	c.mu.Lock()
	if c.status == StatusPending || c.status == StatusStreaming {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	gen, userID, assistantID, streamCtx := c.beginLocked(ctx)
	c.mu.Unlock()

	c.history.Append(Turn{ID: userID, Seq: -1, Role: domain.RoleUser, Content: text})
	c.history.Append(Turn{ID: assistantID, Seq: -1, Role: domain.RoleAssistant})

	err := c.run(streamCtx, gen, api.ReplyRequest{Content: text})
	return c.settle(gen, userID, assistantID, err)
}

// Rerun discards everything after the user turn at index and replays it.
// The kept user turn stays visible; the server truncates its copy to match.
func (c *Controller) Rerun(ctx context.Context, index int) error {
	return c.rerun(ctx, index, "")
}

// Edit replaces the content of the user turn at index and reruns from it.
// The visible turn is only rewritten once the new submission settles.
func (c *Controller) Edit(ctx context.Context, index int, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	return c.rerun(ctx, index, text)
}

func (c *Controller) rerun(ctx context.Context, index int, override string) error {
	turns := c.history.Turns()
	if index < 0 || index >= len(turns) {
		return fmt.Errorf("rerun index %d out of range: %w", index, pkgerrors.ErrInvalidArgument)
	}
	target := turns[index]
	if target.Role != domain.RoleUser {
		return ErrNotUserTurn
	}
	if !target.ID.IsPersisted() {
		return fmt.Errorf("rerun target not yet persisted: %w", pkgerrors.ErrInvalidArgument)
	}

	c.mu.Lock()
	if c.status == StatusPending || c.status == StatusStreaming {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	gen, _, assistantID, streamCtx := c.beginLocked(ctx)
	c.mu.Unlock()

	// The kept user turn survives; everything after it is replaced by the
	// fresh assistant placeholder.
	c.history.ReplaceFrom(index+1, Turn{ID: assistantID, Seq: -1, Role: domain.RoleAssistant})

	content := target.Content
	if override != "" {
		content = override
	}
	seq := target.Seq
	req := api.ReplyRequest{Content: content, Rerun: true, RerunFromSeq: &seq}

	err := c.run(streamCtx, gen, req)
	if err == nil && override != "" {
		c.history.Update(target.ID, func(t *Turn) { t.Content = override })
	}
	return c.settle(gen, Identity{}, assistantID, err)
}

// Cancel aborts the in-flight turn, if any. Deltas already applied stay
// visible; late deltas from the aborted stream are dropped by the
// generation guard.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusPending && c.status != StatusStreaming {
		return
	}
	c.status = StatusCancelled
	c.generation++
	if c.acc != nil {
		c.acc.Finalize()
		c.acc = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.log.Info("Turn cancelled")
}

// SwitchChat cancels any in-flight turn and loads chatID's transcript
// wholesale, discarding optimistic state from the previous chat.
func (c *Controller) SwitchChat(ctx context.Context, chatID uuid.UUID) error {
	c.Cancel()
	if err := c.history.Load(ctx, chatID); err != nil {
		return err
	}
	c.mu.Lock()
	c.status = StatusIdle
	c.mu.Unlock()
	return nil
}

// beginLocked advances the generation and installs fresh per-turn state.
// Caller holds the lock.
func (c *Controller) beginLocked(ctx context.Context) (gen uint64, userID, assistantID Identity, streamCtx context.Context) {
	c.generation++
	gen = c.generation
	c.status = StatusPending
	c.acc = transcript.NewAccumulator()

	c.nextLocal++
	userID = LocalID(c.nextLocal)
	c.nextLocal++
	assistantID = LocalID(c.nextLocal)
	c.assistant = assistantID

	streamCtx, c.cancel = context.WithCancel(ctxutil.Default(ctx))
	return gen, userID, assistantID, streamCtx
}

// run streams the reply, decoding chunks into deltas and applying each one
// under the generation guard.
func (c *Controller) run(ctx context.Context, gen uint64, req api.ReplyRequest) error {
	dec := wire.NewDecoder(c.log)
	chatID := c.history.ChatID()

	err := c.client.StreamReply(ctx, chatID, req, func(chunk []byte) error {
		for _, delta := range dec.Write(chunk) {
			c.applyDelta(gen, delta)
		}
		return nil
	})
	for _, delta := range dec.Flush() {
		c.applyDelta(gen, delta)
	}
	if err == nil {
		// The transport can end cleanly while the stream itself failed: an
		// upstream error event, or an event stream cut off before [DONE].
		err = dec.Err()
	}
	return err
}

// applyDelta folds one decoded delta into the current turn. Deltas carrying
// a stale generation are dropped: a cancelled or superseded stream must not
// touch the transcript it no longer owns.
func (c *Controller) applyDelta(gen uint64, delta string) {
	c.mu.Lock()
	if gen != c.generation || (c.status != StatusPending && c.status != StatusStreaming) {
		c.mu.Unlock()
		c.log.Debug("Dropped stale delta", "generation", gen)
		return
	}
	c.status = StatusStreaming
	acc := c.acc
	assistantID := c.assistant
	notify := c.onPartial
	c.mu.Unlock()

	if err := acc.Append(delta); err != nil {
		// Finalized under us means the lifecycle invariant broke somewhere.
		c.log.Error("Delta applied after finalize", "error", err)
		return
	}
	partial := acc.Partial()
	c.history.Update(assistantID, func(t *Turn) { t.Content = partial })
	if notify != nil {
		notify(partial)
	}
}

// settle closes out the turn: on success the placeholder is finalized in
// place, on failure it is removed and the user turn marked failed.
func (c *Controller) settle(gen uint64, userID, assistantID Identity, err error) error {
	c.mu.Lock()
	if gen != c.generation {
		// Cancelled or superseded while streaming; that path already
		// settled the transcript.
		c.mu.Unlock()
		return err
	}
	acc := c.acc
	c.acc = nil
	c.cancel = nil
	if err != nil {
		c.status = StatusFailed
		c.mu.Unlock()

		c.history.Remove(assistantID)
		if userID != (Identity{}) {
			c.history.Update(userID, func(t *Turn) { t.Failed = true })
		}
		c.log.Warn("Turn failed", "error", err)
		return err
	}
	c.status = StatusSettled
	c.mu.Unlock()

	final := acc.Finalize()
	c.history.Update(assistantID, func(t *Turn) { t.Content = final })
	return nil
}
