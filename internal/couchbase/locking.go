package couchbase

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"
)

// SeedLockKey is the document key of the seeding lock
const SeedLockKey = "_system/seed_lock"

// ErrLocked is returned when another process holds the lock
var ErrLocked = errors.New("collection is locked")

// lockDocument is the stored lock body
type lockDocument struct {
	Locked    bool      `json:"locked"`
	LockedAt  time.Time `json:"lockedAt"`
	LockedBy  string    `json:"lockedBy"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CollectionLocker serializes bulk writers (the seeder) across processes.
// The lock lives in the scope's _default collection so it never shows up
// in patient listings, and it expires on its own if the holder dies.
type CollectionLocker struct {
	collection *gocb.Collection
	owner      string
	ttl        time.Duration

	mu     sync.Mutex
	locked bool
}

// NewCollectionLocker creates a new locker
func NewCollectionLocker(scope *gocb.Scope, ttl time.Duration) *CollectionLocker {
	host, _ := os.Hostname()
	return &CollectionLocker{
		collection: scope.Collection("_default"),
		owner:      fmt.Sprintf("patientpanel-seed@%s/%d", host, os.Getpid()),
		ttl:        ttl,
	}
}

// Lock takes the lock or fails with ErrLocked
func (l *CollectionLocker) Lock() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked {
		return fmt.Errorf("%w: already held by this process", ErrLocked)
	}

	now := time.Now().UTC()
	doc := lockDocument{
		Locked:    true,
		LockedAt:  now,
		LockedBy:  l.owner,
		ExpiresAt: now.Add(l.ttl),
	}

	_, err := l.collection.Insert(SeedLockKey, doc, &gocb.InsertOptions{Expiry: l.ttl})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentExists) {
			return fmt.Errorf("%w: %s exists", ErrLocked, SeedLockKey)
		}
		return fmt.Errorf("failed to create lock document: %w", err)
	}

	l.locked = true
	log.Info().Str("owner", l.owner).Dur("ttl", l.ttl).Msg("Collection locked successfully")
	return nil
}

// Unlock releases the lock
func (l *CollectionLocker) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.locked {
		return fmt.Errorf("collection is not locked")
	}

	_, err := l.collection.Remove(SeedLockKey, &gocb.RemoveOptions{})
	if err != nil && !errors.Is(err, gocb.ErrDocumentNotFound) {
		return fmt.Errorf("failed to remove lock document: %w", err)
	}

	l.locked = false
	log.Info().Str("owner", l.owner).Msg("Collection unlocked successfully")
	return nil
}

// IsLocked reports whether this process holds the lock
func (l *CollectionLocker) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}

// CheckLockStatus reports whether any process holds the lock
func (l *CollectionLocker) CheckLockStatus() (bool, string, error) {
	result, err := l.collection.Get(SeedLockKey, &gocb.GetOptions{})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("failed to check lock status: %w", err)
	}

	var doc lockDocument
	if err := result.Content(&doc); err != nil {
		return false, "", fmt.Errorf("failed to parse lock document: %w", err)
	}

	if time.Now().UTC().After(doc.ExpiresAt) {
		return false, "", nil
	}
	return doc.Locked, doc.LockedBy, nil
}
