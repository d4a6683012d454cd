// Package toast holds the transient success/failure notifications raised
// after record mutations.
package toast

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"stealthcompany.com/patientpanel/internal/metrics"
)

// Kind is the notification severity
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
)

// Action is the mutation a notification reports on
type Action string

const (
	Created Action = "created"
	Updated Action = "updated"
	Deleted Action = "deleted"
)

// DefaultTTL is how long a notification stays visible
const DefaultTTL = 5 * time.Second

// Message returns the copy shown for a kind and action
func Message(kind Kind, action Action) string {
	if kind == Success {
		return fmt.Sprintf("Patient record was successfully %s!", action)
	}
	return fmt.Sprintf("Patient record was not successfully %s. Please try again!", action)
}

// Notification is one raised toast
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Action    Action    `json:"action"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`

	seq uint64
}

// Board keeps the notifications that are still visible
type Board struct {
	ttl time.Duration
	now func() time.Time

	mu           sync.Mutex
	items        map[string]Notification
	seq          uint64
	listeners    map[int]func(Notification)
	nextListener int
}

// NewBoard creates a board whose notifications auto-hide after ttl
func NewBoard(ttl time.Duration) *Board {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Board{
		ttl:       ttl,
		now:       time.Now,
		items:     make(map[string]Notification),
		listeners: make(map[int]func(Notification)),
	}
}

// Notify raises a notification and pushes it to listeners
func (b *Board) Notify(kind Kind, action Action) Notification {
	now := b.now()
	n := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Action:    action,
		Message:   Message(kind, action),
		CreatedAt: now,
		ExpiresAt: now.Add(b.ttl),
	}

	b.mu.Lock()
	b.pruneLocked(now)
	b.seq++
	n.seq = b.seq
	b.items[n.ID] = n
	listeners := make([]func(Notification), 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.mu.Unlock()

	metrics.RecordToast(string(kind), string(action))
	event := log.Info()
	if kind == Error {
		event = log.Warn()
	}
	event.Str("toast_id", n.ID).
		Str("kind", string(kind)).
		Str("action", string(action)).
		Msg(n.Message)

	for _, l := range listeners {
		l(n)
	}
	return n
}

// Dismiss hides a notification before it expires
func (b *Board) Dismiss(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[id]; !ok {
		return false
	}
	delete(b.items, id)
	return true
}

// Active returns the notifications visible at now, oldest first
func (b *Board) Active(now time.Time) []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked(now)

	out := make([]Notification, 0, len(b.items))
	for _, n := range b.items {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// OnNotify registers fn for every new notification
func (b *Board) OnNotify(fn func(Notification)) (cancel func()) {
	b.mu.Lock()
	key := b.nextListener
	b.nextListener++
	b.listeners[key] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, key)
			b.mu.Unlock()
		})
	}
}

func (b *Board) pruneLocked(now time.Time) {
	for id, n := range b.items {
		if !now.Before(n.ExpiresAt) {
			delete(b.items, id)
		}
	}
}
