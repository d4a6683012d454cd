package couchbase

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"stealthcompany.com/patientpanel/internal/docstore"
)

// changeDetector decides whether a listing differs from the last one
// delivered. Any insert, delete or mutation changes an (id, cas) pair.
type changeDetector struct {
	delivered bool
	last      uint64
}

func fingerprint(rows []queryRow) uint64 {
	h := fnv.New64a()
	for _, row := range rows {
		h.Write([]byte(row.ID))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatUint(row.Cas, 10)))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// changed reports whether rows should be emitted and remembers them
func (d *changeDetector) changed(rows []queryRow) bool {
	fp := fingerprint(rows)
	if d.delivered && fp == d.last {
		return false
	}
	d.delivered = true
	d.last = fp
	return true
}

// Watch polls the collection and emits a snapshot whenever the listing
// changes. Writes made through this manager trigger an immediate poll.
// A failed poll is reported once and ends the watch.
func (dm *DocumentManager) Watch(ctx context.Context, onSnapshot docstore.SnapshotFunc, onError docstore.ErrorFunc) func() {
	ctx, cancel := context.WithCancel(ctx)
	nudge := make(chan struct{}, 1)

	dm.mu.Lock()
	key := dm.nextID
	dm.nextID++
	dm.nudges[key] = nudge
	dm.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			dm.mu.Lock()
			delete(dm.nudges, key)
			dm.mu.Unlock()
		})
	}

	go func() {
		defer stop()

		ticker := time.NewTicker(dm.interval)
		defer ticker.Stop()

		var detector changeDetector
		for {
			rows, err := dm.listRows(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				log.Error().
					Err(err).
					Str("collection", dm.name).
					Msg("Change watcher poll failed")
				if onError != nil {
					onError(err)
				}
				return
			}

			if detector.changed(rows) {
				log.Debug().
					Str("collection", dm.name).
					Int("documents", len(rows)).
					Msg("Collection changed, emitting snapshot")
				onSnapshot(toDocuments(rows))
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-nudge:
			}
		}
	}()

	return stop
}
