// Package recordstore keeps a local, observable copy of the remote patient
// collection and routes every mutation through the remote store. The live
// subscription is the source of truth: mutations never splice local state.
package recordstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"stealthcompany.com/patientpanel/internal/docstore"
	"stealthcompany.com/patientpanel/internal/metrics"
	"stealthcompany.com/patientpanel/internal/patient"
)

// Status is the store's lifecycle state
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// State is an immutable view of the store. Version increases with every
// change so observers can drop out-of-order deliveries.
type State struct {
	Records []patient.Record
	Loading bool
	Err     *Failure
	Status  Status
	Version uint64
}

func (s State) clone() State {
	out := s
	out.Records = make([]patient.Record, len(s.Records))
	for i, rec := range s.Records {
		out.Records[i] = rec.Clone()
	}
	return out
}

// subscription is one live listener. ended is set once it may no longer
// touch state.
type subscription struct {
	ended bool
}

// Store mirrors one docstore.Collection
type Store struct {
	coll docstore.Collection

	mu           sync.RWMutex
	state        State
	sub          *subscription
	listeners    map[int]func(State)
	nextListener int
}

// New creates a store over the given collection
func New(coll docstore.Collection) *Store {
	return &Store{
		coll: coll,
		state: State{
			Records: []patient.Record{},
			Status:  StatusIdle,
		},
		listeners: make(map[int]func(State)),
	}
}

// Collection returns the underlying collection
func (s *Store) Collection() docstore.Collection {
	return s.coll
}

// State returns a copy of the current state
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Get looks a record up in the current snapshot
func (s *Store) Get(id string) (patient.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.state.Records {
		if rec.ID == id {
			return rec.Clone(), true
		}
	}
	return patient.Record{}, false
}

// Subscribed reports whether a live subscription is open
func (s *Store) Subscribed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sub != nil
}

// OnChange registers fn to receive every state change. Calls come from
// whichever goroutine made the change; fn must not block.
func (s *Store) OnChange(fn func(State)) (cancel func()) {
	s.mu.Lock()
	key := s.nextListener
	s.nextListener++
	s.listeners[key] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, key)
			s.mu.Unlock()
		})
	}
}

// update applies fn under the lock and notifies listeners outside it
func (s *Store) update(fn func(st *State) bool) {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return
	}
	s.state.Version++
	snapshot := s.state.clone()
	listeners := make([]func(State), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

func normalizeAll(docs []docstore.Document) []patient.Record {
	records := make([]patient.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, patient.Normalize(doc.ID, doc.Data))
	}
	return records
}

// FetchAll reads the whole collection once and replaces local records.
// On failure the previous records are kept and the state carries a
// FetchFailure.
func (s *Store) FetchAll(ctx context.Context) error {
	s.update(func(st *State) bool {
		st.Loading = true
		st.Err = nil
		st.Status = StatusLoading
		return true
	})

	start := time.Now()
	docs, err := s.coll.List(ctx)
	metrics.RecordStoreOperation(OpFetch, err, time.Since(start))

	if err != nil {
		failure := &Failure{
			Kind:    FetchFailure,
			Op:      OpFetch,
			Message: FetchFailureMessage,
			Err:     fmt.Errorf("list %s: %w", s.coll.Name(), err),
		}
		log.Error().
			Err(err).
			Str("collection", s.coll.Name()).
			Msg("Failed to fetch patient records")
		s.update(func(st *State) bool {
			st.Loading = false
			st.Err = failure
			st.Status = StatusError
			return true
		})
		return failure
	}

	records := normalizeAll(docs)
	metrics.RecordSnapshot(OpFetch, len(records))
	s.update(func(st *State) bool {
		st.Records = records
		st.Loading = false
		st.Status = StatusReady
		return true
	})

	log.Debug().
		Int("records", len(records)).
		Msg("Fetched patient records")
	return nil
}

// Subscribe opens the live listener. Every emission replaces local records.
// A listener failure sets a SubscriptionFailure and ends the subscription;
// it is not reopened automatically. The returned cancel is idempotent and
// no state changes from this subscription follow it.
func (s *Store) Subscribe(ctx context.Context) (cancel func(), err error) {
	sub := &subscription{}

	s.mu.Lock()
	if s.sub != nil {
		s.mu.Unlock()
		return nil, ErrAlreadySubscribed
	}
	s.sub = sub
	s.mu.Unlock()

	s.update(func(st *State) bool {
		st.Loading = true
		if st.Status != StatusError {
			st.Status = StatusLoading
		}
		return true
	})

	onSnapshot := func(docs []docstore.Document) {
		records := normalizeAll(docs)
		applied := false
		s.update(func(st *State) bool {
			if sub.ended {
				return false
			}
			applied = true
			st.Records = records
			st.Loading = false
			if st.Status != StatusError {
				st.Status = StatusReady
			}
			return true
		})
		if applied {
			metrics.RecordSnapshot("subscription", len(records))
		}
	}

	onError := func(err error) {
		metrics.RecordStoreOperation(OpSubscribe, err, 0)
		s.update(func(st *State) bool {
			if sub.ended {
				return false
			}
			sub.ended = true
			if s.sub == sub {
				s.sub = nil
			}
			st.Loading = false
			st.Status = StatusError
			st.Err = &Failure{
				Kind:    SubscriptionFailure,
				Op:      OpSubscribe,
				Message: SubscriptionFailureMessage,
				Err:     fmt.Errorf("watch %s: %w", s.coll.Name(), err),
			}
			return true
		})
		log.Error().
			Err(err).
			Str("collection", s.coll.Name()).
			Msg("Patient record subscription failed")
	}

	stop := s.coll.Watch(ctx, onSnapshot, onError)
	log.Info().Str("collection", s.coll.Name()).Msg("Subscribed to patient records")

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			sub.ended = true
			if s.sub == sub {
				s.sub = nil
			}
			s.mu.Unlock()
			stop()
			log.Info().Str("collection", s.coll.Name()).Msg("Unsubscribed from patient records")
		})
	}, nil
}

// Create writes a new record and returns the id the store assigned. The
// record appears locally with the next snapshot.
func (s *Store) Create(ctx context.Context, input patient.NewRecordInput) (string, error) {
	start := time.Now()
	id, err := s.create(ctx, input)
	metrics.RecordStoreOperation(OpCreate, err, time.Since(start))
	if err != nil {
		log.Error().Err(err).Msg("Failed to create patient record")
		return "", err
	}

	log.Info().Str("patient_id", id).Msg("Created patient record")
	return id, nil
}

func (s *Store) create(ctx context.Context, input patient.NewRecordInput) (string, error) {
	if err := patient.ValidateStatuses(input.Statuses); err != nil {
		return "", mutationFailure(OpCreate, err)
	}
	id, err := s.coll.Insert(ctx, input.Materialize())
	if err != nil {
		return "", mutationFailure(OpCreate, err)
	}
	return id, nil
}

// Update reads the stored document, applies the patches in order and writes
// the whole document back. Concurrent writers race; the last write wins.
func (s *Store) Update(ctx context.Context, id string, patches ...patient.Patch) error {
	start := time.Now()
	err := s.updateDocument(ctx, id, patches)
	metrics.RecordStoreOperation(OpUpdate, err, time.Since(start))
	if err != nil {
		log.Error().Err(err).Str("patient_id", id).Msg("Failed to update patient record")
		return err
	}

	log.Info().Str("patient_id", id).Int("patches", len(patches)).Msg("Updated patient record")
	return nil
}

func (s *Store) updateDocument(ctx context.Context, id string, patches []patient.Patch) error {
	doc, err := s.coll.Get(ctx, id)
	if err != nil {
		return mutationFailure(OpUpdate, err)
	}

	current := patient.Normalize(doc.ID, doc.Data)
	merged, err := patient.Apply(current.Fields, patches...)
	if err != nil {
		return mutationFailure(OpUpdate, err)
	}

	if err := s.coll.Replace(ctx, id, merged); err != nil {
		return mutationFailure(OpUpdate, err)
	}
	return nil
}

// Remove deletes a record remotely. Local records change only through the
// next snapshot.
func (s *Store) Remove(ctx context.Context, id string) error {
	start := time.Now()
	err := s.coll.Remove(ctx, id)
	metrics.RecordStoreOperation(OpRemove, err, time.Since(start))
	if err != nil {
		log.Error().Err(err).Str("patient_id", id).Msg("Failed to remove patient record")
		return mutationFailure(OpRemove, err)
	}

	log.Info().Str("patient_id", id).Msg("Removed patient record")
	return nil
}
