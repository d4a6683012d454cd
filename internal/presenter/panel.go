package presenter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"stealthcompany.com/patientpanel/internal/docstore"
	"stealthcompany.com/patientpanel/internal/patient"
	"stealthcompany.com/patientpanel/internal/recordstore"
	"stealthcompany.com/patientpanel/internal/toast"
)

// ErrValidation is returned for input rejected before reaching the store
var ErrValidation = errors.New("validation failed")

// Panel binds one record store to the toast board. It owns the store's
// single live subscription.
type Panel struct {
	store *recordstore.Store
	board *toast.Board

	mu     sync.Mutex
	cancel func()
}

// NewPanel creates a panel over store and board
func NewPanel(store *recordstore.Store, board *toast.Board) *Panel {
	return &Panel{store: store, board: board}
}

// Store returns the underlying record store
func (p *Panel) Store() *recordstore.Store {
	return p.store
}

// Board returns the toast board
func (p *Panel) Board() *toast.Board {
	return p.board
}

// Start opens the live subscription
func (p *Panel) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribeLocked(ctx)
}

func (p *Panel) subscribeLocked(ctx context.Context) error {
	cancel, err := p.store.Subscribe(ctx)
	if err != nil {
		return err
	}
	p.cancel = cancel
	return nil
}

// Stop releases the live subscription
func (p *Panel) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Retry is the manual retry after a load failure: a one-shot fetch, and a
// new subscription if the previous one failed
func (p *Panel) Retry(ctx context.Context) error {
	if err := p.store.FetchAll(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil || p.store.Subscribed() {
		return nil
	}
	p.cancel()
	log.Info().Msg("Reopening patient record subscription after retry")
	return p.subscribeLocked(context.WithoutCancel(ctx))
}

// View renders the current snapshot
func (p *Panel) View(q Query) View {
	return Render(p.store.State(), q)
}

// Create writes a new record and raises a toast either way
func (p *Panel) Create(ctx context.Context, input patient.NewRecordInput) (string, error) {
	id, err := p.store.Create(ctx, input)
	p.notify(toast.Created, err)
	return id, err
}

// Update applies patches to one record and raises a toast either way
func (p *Panel) Update(ctx context.Context, id string, patches ...patient.Patch) error {
	err := p.store.Update(ctx, id, patches...)
	p.notify(toast.Updated, err)
	return err
}

// Replace saves a fully edited record by diffing it against the current
// snapshot. Extra fields cannot be dropped this way. Every rejection raises
// an error toast.
func (p *Panel) Replace(ctx context.Context, edited patient.Record) error {
	current, ok := p.store.Get(edited.ID)
	if !ok {
		err := &recordstore.Failure{
			Kind:    recordstore.MutationFailure,
			Op:      recordstore.OpUpdate,
			Message: "patient record update failed",
			Err:     fmt.Errorf("%s: %w", edited.ID, docstore.ErrNotFound),
		}
		p.notify(toast.Updated, err)
		return err
	}
	if len(edited.ExtraFields) < len(current.ExtraFields) {
		err := fmt.Errorf("%w: extra fields cannot be removed", ErrValidation)
		p.notify(toast.Updated, err)
		return err
	}
	return p.Update(ctx, edited.ID, Diff(current, edited)...)
}

// Delete removes a record and raises a toast either way
func (p *Panel) Delete(ctx context.Context, id string) error {
	err := p.store.Remove(ctx, id)
	p.notify(toast.Deleted, err)
	return err
}

// Edit opens an edit session on a record from the current snapshot
func (p *Panel) Edit(id string) (*EditSession, error) {
	rec, ok := p.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, docstore.ErrNotFound)
	}
	return newEditSession(p, rec), nil
}

// NewForm returns an empty new-record form
func (p *Panel) NewForm() *NewRecordForm {
	return newRecordForm(p)
}

// ActiveToasts lists visible notifications
func (p *Panel) ActiveToasts() []toast.Notification {
	return p.board.Active(time.Now())
}

func (p *Panel) notify(action toast.Action, err error) {
	if err != nil {
		p.board.Notify(toast.Error, action)
		return
	}
	p.board.Notify(toast.Success, action)
}
