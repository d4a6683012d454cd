package couchbase

import (
	"time"
)

// Client represents a Couchbase client that orchestrates all operations
type Client struct {
	connManager *ConnectionManager
	docManager  *DocumentManager
	locker      *CollectionLocker
}

// NewClient creates a new Couchbase client
func NewClient(cfg Config) (*Client, error) {
	connManager, err := NewConnectionManager(cfg)
	if err != nil {
		return nil, err
	}

	scope := connManager.Scope()

	return &Client{
		connManager: connManager,
		docManager:  NewDocumentManager(scope, cfg.Collection, cfg.WatchInterval),
		locker:      NewCollectionLocker(scope, time.Hour),
	}, nil
}

// Close closes the Couchbase connection
func (c *Client) Close() error {
	return c.connManager.Close()
}

// Collection returns the patient collection as a docstore.Collection
func (c *Client) Collection() *DocumentManager {
	return c.docManager
}

// GetLocker returns the collection locker
func (c *Client) GetLocker() *CollectionLocker {
	return c.locker
}
