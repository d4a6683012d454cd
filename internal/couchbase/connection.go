package couchbase

import (
	"fmt"
	"strings"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"
)

// Config holds the Couchbase connection settings
type Config struct {
	URL           string
	Username      string
	Password      string
	Bucket        string
	Scope         string
	Collection    string
	WatchInterval time.Duration
}

// ConnectionManager handles Couchbase cluster and bucket connections
type ConnectionManager struct {
	cluster *gocb.Cluster
	bucket  *gocb.Bucket
	cfg     Config
}

// connectionString accepts bare hosts and http:// URLs as well as
// couchbase:// and couchbases:// connection strings
func connectionString(url string) string {
	switch {
	case strings.HasPrefix(url, "couchbase://"), strings.HasPrefix(url, "couchbases://"):
		return url
	case strings.HasPrefix(url, "http://"):
		return "couchbase://" + strings.TrimPrefix(url, "http://")
	case strings.HasPrefix(url, "https://"):
		return "couchbases://" + strings.TrimPrefix(url, "https://")
	default:
		return "couchbase://" + url
	}
}

// NewConnectionManager connects to the cluster, opens the bucket and makes
// sure the patient collection exists
func NewConnectionManager(cfg Config) (*ConnectionManager, error) {
	connStr := connectionString(cfg.URL)

	log.Info().
		Str("url", connStr).
		Str("bucket", cfg.Bucket).
		Str("scope", cfg.Scope).
		Str("collection", cfg.Collection).
		Msg("Creating Couchbase connection")

	cluster, err := gocb.Connect(connStr, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		},
		TimeoutsConfig: gocb.TimeoutsConfig{
			ConnectTimeout:    60 * time.Second,
			KVTimeout:         5 * time.Second,
			QueryTimeout:      30 * time.Second,
			ManagementTimeout: 30 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cluster: %w", err)
	}

	bucket := cluster.Bucket(cfg.Bucket)
	err = bucket.WaitUntilReady(30*time.Second, &gocb.WaitUntilReadyOptions{
		ServiceTypes: []gocb.ServiceType{gocb.ServiceTypeKeyValue, gocb.ServiceTypeQuery},
	})
	if err != nil {
		cluster.Close(nil)
		return nil, fmt.Errorf("bucket %q is not accessible: %w", cfg.Bucket, err)
	}

	cm := &ConnectionManager{
		cluster: cluster,
		bucket:  bucket,
		cfg:     cfg,
	}

	if err := cm.ensureCollection(); err != nil {
		cluster.Close(nil)
		return nil, err
	}

	log.Info().Msg("Couchbase connection created successfully")
	return cm, nil
}

// ensureCollection creates the scope, the collection and its primary index
// when they are missing
func (cm *ConnectionManager) ensureCollection() error {
	mgr := cm.bucket.Collections()

	scopes, err := mgr.GetAllScopes(&gocb.GetAllScopesOptions{})
	if err != nil {
		return fmt.Errorf("failed to get scopes: %w", err)
	}

	scopeFound, collectionFound := false, false
	for _, scope := range scopes {
		if scope.Name != cm.cfg.Scope {
			continue
		}
		scopeFound = true
		for _, col := range scope.Collections {
			if col.Name == cm.cfg.Collection {
				collectionFound = true
			}
		}
	}

	if !scopeFound {
		log.Info().Str("scope", cm.cfg.Scope).Msg("Creating scope")
		if err := mgr.CreateScope(cm.cfg.Scope, nil); err != nil {
			return fmt.Errorf("failed to create scope %s: %w", cm.cfg.Scope, err)
		}
	}

	if !collectionFound {
		log.Info().Str("scope", cm.cfg.Scope).Str("collection", cm.cfg.Collection).Msg("Creating collection")
		err := mgr.CreateCollection(gocb.CollectionSpec{
			Name:      cm.cfg.Collection,
			ScopeName: cm.cfg.Scope,
		}, nil)
		if err != nil {
			return fmt.Errorf("failed to create collection %s.%s: %w", cm.cfg.Scope, cm.cfg.Collection, err)
		}
	}

	err = cm.Collection().QueryIndexes().CreatePrimaryIndex(&gocb.CreatePrimaryQueryIndexOptions{
		IgnoreIfExists: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create primary index on %s: %w", cm.cfg.Collection, err)
	}

	return nil
}

// Close closes the Couchbase connection
func (cm *ConnectionManager) Close() error {
	return cm.cluster.Close(nil)
}

// GetBucket returns the bucket instance
func (cm *ConnectionManager) GetBucket() *gocb.Bucket {
	return cm.bucket
}

// GetCluster returns the cluster instance
func (cm *ConnectionManager) GetCluster() *gocb.Cluster {
	return cm.cluster
}

// Scope returns the configured scope
func (cm *ConnectionManager) Scope() *gocb.Scope {
	return cm.bucket.Scope(cm.cfg.Scope)
}

// Collection returns the patient collection
func (cm *ConnectionManager) Collection() *gocb.Collection {
	return cm.Scope().Collection(cm.cfg.Collection)
}
