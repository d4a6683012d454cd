package couchbase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"stealthcompany.com/patientpanel/internal/docstore"
	"stealthcompany.com/patientpanel/internal/metrics"
)

// DocumentManager exposes one Couchbase collection as a docstore.Collection
type DocumentManager struct {
	scope      *gocb.Scope
	collection *gocb.Collection
	name       string
	interval   time.Duration

	mu     sync.Mutex
	nudges map[int]chan struct{}
	nextID int
}

var _ docstore.Collection = (*DocumentManager)(nil)

// NewDocumentManager creates a new document manager
func NewDocumentManager(scope *gocb.Scope, name string, watchInterval time.Duration) *DocumentManager {
	if watchInterval <= 0 {
		watchInterval = 2 * time.Second
	}
	return &DocumentManager{
		scope:      scope,
		collection: scope.Collection(name),
		name:       name,
		interval:   watchInterval,
		nudges:     make(map[int]chan struct{}),
	}
}

// Name returns the collection name
func (dm *DocumentManager) Name() string {
	return dm.name
}

// queryRow is one row of the listing statement
type queryRow struct {
	ID       string                 `json:"id"`
	Cas      uint64                 `json:"cas"`
	Resource map[string]interface{} `json:"resource"`
}

// listRows runs the full-collection listing. request_plus consistency makes
// the listing include every mutation acknowledged before it started.
func (dm *DocumentManager) listRows(ctx context.Context) ([]queryRow, error) {
	query := fmt.Sprintf("SELECT META(d).id AS id, META(d).cas AS cas, d AS resource FROM `%s` AS d ORDER BY META(d).id", dm.name)

	start := time.Now()
	rows, err := dm.scope.Query(query, &gocb.QueryOptions{
		Context:         ctx,
		ScanConsistency: gocb.QueryScanConsistencyRequestPlus,
		Readonly:        true,
	})
	if err != nil {
		metrics.RecordDocumentOperation("list", "error", time.Since(start))
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var results []queryRow
	for rows.Next() {
		var row queryRow
		if err := rows.Row(&row); err != nil {
			log.Warn().
				Err(err).
				Str("collection", dm.name).
				Msg("Failed to decode query row")
			continue
		}
		if row.Resource == nil {
			row.Resource = map[string]interface{}{}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordDocumentOperation("list", "error", time.Since(start))
		return nil, fmt.Errorf("query failed: %w", err)
	}

	metrics.RecordDocumentOperation("list", "success", time.Since(start))
	return results, nil
}

// List reads every document in the collection
func (dm *DocumentManager) List(ctx context.Context) ([]docstore.Document, error) {
	rows, err := dm.listRows(ctx)
	if err != nil {
		return nil, err
	}
	return toDocuments(rows), nil
}

func toDocuments(rows []queryRow) []docstore.Document {
	docs := make([]docstore.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, docstore.Document{ID: row.ID, Data: row.Resource})
	}
	return docs
}

// Get retrieves a document
func (dm *DocumentManager) Get(ctx context.Context, id string) (docstore.Document, error) {
	start := time.Now()
	result, err := dm.collection.Get(id, &gocb.GetOptions{Context: ctx})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			metrics.RecordDocumentOperation("get", "miss", time.Since(start))
			return docstore.Document{}, fmt.Errorf("get %s: %w: %w", id, docstore.ErrNotFound, err)
		}
		metrics.RecordDocumentOperation("get", "error", time.Since(start))
		return docstore.Document{}, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	metrics.RecordDocumentOperation("get", "success", time.Since(start))

	var data map[string]interface{}
	if err := result.Content(&data); err != nil {
		return docstore.Document{}, fmt.Errorf("failed to parse document content: %w", err)
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return docstore.Document{ID: id, Data: data}, nil
}

// Insert stores a new document under a random UUID key
func (dm *DocumentManager) Insert(ctx context.Context, data interface{}) (string, error) {
	id := uuid.NewString()

	start := time.Now()
	_, err := dm.collection.Insert(id, data, &gocb.InsertOptions{Context: ctx})
	if err != nil {
		metrics.RecordDocumentOperation("insert", "error", time.Since(start))
		return "", fmt.Errorf("failed to insert document %s: %w", id, err)
	}
	metrics.RecordDocumentOperation("insert", "success", time.Since(start))

	log.Debug().Str("doc_id", id).Str("collection", dm.name).Msg("Inserted document")
	dm.nudge()
	return id, nil
}

// Replace overwrites an existing document. Couchbase rejects the replace
// when the key no longer exists.
func (dm *DocumentManager) Replace(ctx context.Context, id string, data interface{}) error {
	start := time.Now()
	_, err := dm.collection.Replace(id, data, &gocb.ReplaceOptions{Context: ctx})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			metrics.RecordDocumentOperation("replace", "miss", time.Since(start))
			return fmt.Errorf("replace %s: %w: %w", id, docstore.ErrNotFound, err)
		}
		metrics.RecordDocumentOperation("replace", "error", time.Since(start))
		return fmt.Errorf("failed to replace document %s: %w", id, err)
	}
	metrics.RecordDocumentOperation("replace", "success", time.Since(start))

	dm.nudge()
	return nil
}

// Remove deletes a document
func (dm *DocumentManager) Remove(ctx context.Context, id string) error {
	start := time.Now()
	_, err := dm.collection.Remove(id, &gocb.RemoveOptions{Context: ctx})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			metrics.RecordDocumentOperation("remove", "miss", time.Since(start))
			return fmt.Errorf("remove %s: %w: %w", id, docstore.ErrNotFound, err)
		}
		metrics.RecordDocumentOperation("remove", "error", time.Since(start))
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	metrics.RecordDocumentOperation("remove", "success", time.Since(start))

	dm.nudge()
	return nil
}

// nudge wakes every watcher so local writes show up without waiting for
// the next poll
func (dm *DocumentManager) nudge() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, ch := range dm.nudges {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
