// Package indexer walks the media tree, fingerprints unknown files and
// feeds them through the resolver one at a time.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/asakaze/anidex/internal/ed2k"
	"github.com/asakaze/anidex/internal/models"
	"github.com/asakaze/anidex/internal/resolver"
	"github.com/asakaze/anidex/internal/utils"
	"github.com/sirupsen/logrus"
)

const (
	// Hashing runs ahead of the serial resolution stage by at most this
	// many files.
	handoffCapacity = 4

	// A run of this many back-to-back resolution failures aborts the scan
	// to protect the account from hammering a rate-limited service.
	maxConsecutiveFailures = 5
)

// Stats summarizes one index run
type Stats struct {
	Scanned   int `json:"scanned"`
	Ignored   int `json:"ignored"`
	CacheHits int `json:"cache_hits"`
	Hashed    int `json:"hashed"`
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
	Errors    int `json:"errors"`
	Removed   int `json:"removed"`
}

// handoff is one file handed from the hash stage to the resolution stage.
// Either hash is set (freshly fingerprinted) or fid (already indexed).
type handoff struct {
	path string
	size int64
	hash string
	fid  *uint32
}

// Indexer runs the scan pipeline over a directory tree
type Indexer struct {
	db       *models.Database
	resolver *resolver.Resolver
	ignore   *utils.IgnoreList
	logger   *logrus.Logger
}

// NewIndexer creates a new indexer
func NewIndexer(db *models.Database, res *resolver.Resolver, ignore *utils.IgnoreList, logger *logrus.Logger) *Indexer {
	return &Indexer{
		db:       db,
		resolver: res,
		ignore:   ignore,
		logger:   logger,
	}
}

type fileEntry struct {
	path string
	size int64
}

// Run walks root, identifies every regular file and reconciles rows whose
// paths disappeared from disk. Hashing of the next file overlaps resolution
// of the previous one; resolutions themselves never run concurrently.
func (ix *Indexer) Run(ctx context.Context, root string) (*Stats, error) {
	ix.logger.WithField("root", root).Info("Starting index run")

	files, err := ix.collectFiles(root)
	if err != nil {
		return nil, err
	}
	ix.logger.WithField("count", len(files)).Info("Built file list")

	pipeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stats := &Stats{}
	handoffs := make(chan handoff, handoffCapacity)

	resolveDone := make(chan resolveResult, 1)
	go func() {
		res := ix.resolveStage(pipeCtx, handoffs)
		if res.err != nil {
			// Unblock the hash stage if it is mid-send.
			cancel()
		}
		resolveDone <- res
	}()

	hashErr := ix.hashStage(pipeCtx, files, handoffs, stats)
	close(handoffs)
	res := <-resolveDone

	stats.Matched += res.stats.Matched
	stats.Unmatched += res.stats.Unmatched
	stats.Errors += res.stats.Errors

	if res.err != nil {
		return stats, res.err
	}
	if hashErr != nil {
		return stats, hashErr
	}

	removed, err := ix.reconcile()
	if err != nil {
		return stats, err
	}
	stats.Removed = removed

	ix.logger.WithFields(logrus.Fields{
		"scanned":   stats.Scanned,
		"hashed":    stats.Hashed,
		"matched":   stats.Matched,
		"unmatched": stats.Unmatched,
		"removed":   stats.Removed,
	}).Info("Index run completed")

	return stats, nil
}

// collectFiles walks the tree depth-first with an explicit work list
func (ix *Indexer) collectFiles(root string) ([]fileEntry, error) {
	dirs := []string{root}
	var files []fileEntry

	for len(dirs) > 0 {
		dir := dirs[len(dirs)-1]
		dirs = dirs[:len(dirs)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				dirs = append(dirs, path)
				continue
			}
			if !entry.Type().IsRegular() {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				return nil, fmt.Errorf("failed to stat %s: %w", path, err)
			}
			files = append(files, fileEntry{path: path, size: info.Size()})
		}
	}

	return files, nil
}

// hashStage probes the store for each file and fingerprints the misses,
// handing everything that needs resolution to the serial stage.
func (ix *Indexer) hashStage(ctx context.Context, files []fileEntry, handoffs chan<- handoff, stats *Stats) error {
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		stats.Scanned++

		if ignored, term := ix.ignore.Match(filepath.Base(file.path)); ignored {
			ix.logger.WithFields(logrus.Fields{
				"path": file.path,
				"term": term,
			}).Debug("Ignoring file")
			stats.Ignored++
			continue
		}

		indexed, err := ix.resolver.LookupIndexed(file.path, file.size)
		if err == nil {
			stats.CacheHits++
			if indexed.FID == nil {
				// Hashed on an earlier scan, known absent remotely.
				stats.Unmatched++
				continue
			}
			if err := ix.send(ctx, handoffs, handoff{path: file.path, size: file.size, fid: indexed.FID}); err != nil {
				return err
			}
			continue
		}
		if !errors.Is(err, models.ErrNotFound) {
			return err
		}

		ix.logger.WithField("path", file.path).Debug("Hashing file")
		hash, err := ed2k.HashFile(file.path)
		if err != nil {
			ix.logger.WithError(err).WithField("path", file.path).Error("Failed to hash file")
			stats.Errors++
			continue
		}
		stats.Hashed++

		if err := ix.send(ctx, handoffs, handoff{path: file.path, size: file.size, hash: hash}); err != nil {
			return err
		}
	}

	return nil
}

func (ix *Indexer) send(ctx context.Context, handoffs chan<- handoff, h handoff) error {
	select {
	case handoffs <- h:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type resolveResult struct {
	stats Stats
	err   error
}

// resolveStage is the single serial consumer of the handoff queue. It counts
// into its own Stats because it runs concurrently with the hash stage; Run
// merges the counters once both stages are done.
func (ix *Indexer) resolveStage(ctx context.Context, handoffs <-chan handoff) resolveResult {
	var stats Stats
	failures := 0

	for h := range handoffs {
		if err := ix.resolveOne(ctx, h, &stats); err != nil {
			failures++
			stats.Errors++
			ix.logger.WithError(err).WithField("path", h.path).Error("Failed to resolve file")

			if failures >= maxConsecutiveFailures {
				return resolveResult{
					stats: stats,
					err:   fmt.Errorf("aborting after %d consecutive resolution failures: %w", failures, err),
				}
			}
			continue
		}
		failures = 0
	}

	return resolveResult{stats: stats}
}

func (ix *Indexer) resolveOne(ctx context.Context, h handoff, stats *Stats) error {
	var file *models.File
	var err error

	if h.fid != nil {
		file, err = ix.resolver.FileByID(ctx, *h.fid)
	} else {
		file, err = ix.resolver.RecordScan(ctx, h.path, h.size, h.hash)
	}
	if err != nil {
		return err
	}

	if file == nil {
		ix.logger.WithField("path", h.path).Info("File not known to the catalog")
		stats.Unmatched++
		return nil
	}

	stats.Matched++
	return ix.resolver.ResolveRelated(ctx, file)
}

// reconcile removes indexed rows whose paths no longer exist on disk
func (ix *Indexer) reconcile() (int, error) {
	indexed, err := ix.db.GetAllIndexedFiles()
	if err != nil {
		return 0, fmt.Errorf("failed to list indexed files: %w", err)
	}

	removed := 0
	for _, row := range indexed {
		if _, err := os.Stat(row.Path); os.IsNotExist(err) {
			ix.logger.WithField("path", row.Path).Info("Removing indexed file, gone from disk")
			if err := ix.db.DeleteIndexedFile(row.Path); err != nil {
				return removed, fmt.Errorf("failed to delete indexed file: %w", err)
			}
			removed++
		}
	}

	return removed, nil
}
