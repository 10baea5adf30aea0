// Package notify delivers one-shot level-up notifications to dashboards.
//
// Each family has at most one live notification. A new level-up replaces
// the one on screen instead of queueing behind it. A live notification is
// dismissed either manually or by its auto-dismiss timer, whichever happens
// first; the loser is a no-op.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/questboard/internal/websocket"
)

// DefaultDismissAfter is how long a level-up stays up without interaction.
const DefaultDismissAfter = 5 * time.Second

const (
	ReasonManual   = "manual"
	ReasonTimeout  = "timeout"
	ReasonReplaced = "replaced"
)

// Broadcaster is satisfied by *websocket.Hub.
type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

type LevelUp struct {
	ID            string    `json:"id"`
	FamilyID      int64     `json:"family_id"`
	KidID         int64     `json:"kid_id"`
	KidName       string    `json:"kid_name"`
	PreviousLevel int       `json:"previous_level"`
	NewLevel      int       `json:"new_level"`
	XPGained      int       `json:"xp_gained"`
	ShownAt       time.Time `json:"shown_at"`
}

type live struct {
	event LevelUp
	timer *time.Timer
}

type Notifier struct {
	mu           sync.Mutex
	live         map[int64]*live
	dismissAfter time.Duration
	out          Broadcaster
	logger       *slog.Logger
	closed       bool
}

func NewNotifier(out Broadcaster, dismissAfter time.Duration, logger *slog.Logger) *Notifier {
	if dismissAfter <= 0 {
		dismissAfter = DefaultDismissAfter
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		live:         make(map[int64]*live),
		dismissAfter: dismissAfter,
		out:          out,
		logger:       logger,
	}
}

// Show publishes ev as the family's live notification and returns it with
// its assigned ID. After Close it does nothing and returns ev unchanged.
func (n *Notifier) Show(ev LevelUp) LevelUp {
	ev.ID = uuid.NewString()
	if ev.ShownAt.IsZero() {
		ev.ShownAt = time.Now()
	}

	var msgs []websocket.Message

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ev
	}
	if prev, ok := n.live[ev.FamilyID]; ok {
		prev.timer.Stop()
		msgs = append(msgs, dismissedMessage(prev.event, ReasonReplaced))
	}
	id := ev.ID
	familyID := ev.FamilyID
	n.live[familyID] = &live{
		event: ev,
		timer: time.AfterFunc(n.dismissAfter, func() { n.expire(familyID, id) }),
	}
	n.mu.Unlock()

	msgs = append(msgs, websocket.NewMessage("level_up", "shown", ev.FamilyID, ev.KidID, map[string]any{
		"notification_id": ev.ID,
		"kid_name":        ev.KidName,
		"new_level":       ev.NewLevel,
		"previous_level":  ev.PreviousLevel,
		"xp_gained":       ev.XPGained,
	}))
	n.send(msgs...)

	n.logger.Info("level up", "family_id", ev.FamilyID, "kid", ev.KidName, "level", ev.NewLevel)
	return ev
}

// Dismiss removes the live notification with the given ID and cancels its
// timer. It reports false when id is not live (already dismissed, expired or
// replaced).
func (n *Notifier) Dismiss(id string) bool {
	n.mu.Lock()
	var found *live
	for fam, l := range n.live {
		if l.event.ID == id {
			found = l
			l.timer.Stop()
			delete(n.live, fam)
			break
		}
	}
	n.mu.Unlock()

	if found == nil {
		return false
	}
	n.send(dismissedMessage(found.event, ReasonManual))
	return true
}

// Current returns the live notification for a family.
func (n *Notifier) Current(familyID int64) (LevelUp, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	l, ok := n.live[familyID]
	if !ok {
		return LevelUp{}, false
	}
	return l.event, true
}

// Close stops every pending timer. No timer fires after Close returns.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for fam, l := range n.live {
		l.timer.Stop()
		delete(n.live, fam)
	}
	n.closed = true
}

func (n *Notifier) expire(familyID int64, id string) {
	n.mu.Lock()
	l, ok := n.live[familyID]
	if !ok || l.event.ID != id {
		n.mu.Unlock()
		return
	}
	delete(n.live, familyID)
	n.mu.Unlock()

	n.send(dismissedMessage(l.event, ReasonTimeout))
}

func (n *Notifier) send(msgs ...websocket.Message) {
	if n.out == nil {
		return
	}
	for _, m := range msgs {
		n.out.Broadcast(m)
	}
}

func dismissedMessage(ev LevelUp, reason string) websocket.Message {
	return websocket.NewMessage("level_up", "dismissed", ev.FamilyID, ev.KidID, map[string]any{
		"notification_id": ev.ID,
		"reason":          reason,
	})
}
