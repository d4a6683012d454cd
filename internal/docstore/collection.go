// Package docstore defines the remote document collection the record store
// mirrors, plus an in-process implementation of it.
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document key does not exist
var ErrNotFound = errors.New("document not found")

// Document is one schemaless document as decoded from JSON
type Document struct {
	ID   string
	Data map[string]interface{}
}

// SnapshotFunc receives the full collection on every change
type SnapshotFunc func(docs []Document)

// ErrorFunc receives a listener failure. No callbacks follow it.
type ErrorFunc func(err error)

// Collection is a hosted set of JSON documents keyed by id.
// Implementations must be safe for concurrent use.
type Collection interface {
	// Name is the collection name, e.g. "patientFormData"
	Name() string
	// List reads every document once, ordered by id
	List(ctx context.Context) ([]Document, error)
	// Get reads a single document
	Get(ctx context.Context, id string) (Document, error)
	// Insert writes a new document and returns the key the store assigned
	Insert(ctx context.Context, data interface{}) (string, error)
	// Replace overwrites an existing document; ErrNotFound if it is gone
	Replace(ctx context.Context, id string, data interface{}) error
	// Remove deletes a document; ErrNotFound if it is already gone
	Remove(ctx context.Context, id string) error
	// Watch delivers the initial snapshot and every later one, in order,
	// from a single goroutine until stop is called, ctx ends or onError
	// fires. stop is idempotent and does not wait for a callback that is
	// already running.
	Watch(ctx context.Context, onSnapshot SnapshotFunc, onError ErrorFunc) (stop func())
}
