// Package resolver answers "what is this file / id?" with cache-first
// semantics: memory, then the local store, then a single paced network
// request whose result is written back before it is returned.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/asakaze/anidex/internal/ed2k"
	"github.com/asakaze/anidex/internal/models"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Fetcher is the network side of resolution. A nil entity with a nil error
// means the remote catalog does not know the key.
type Fetcher interface {
	FileByHash(ctx context.Context, size int64, ed2k string) (*models.File, error)
	FileByID(ctx context.Context, fid uint32) (*models.File, error)
	AnimeByID(ctx context.Context, aid uint32) (*models.Anime, error)
	EpisodeByID(ctx context.Context, eid uint32) (*models.Episode, error)
	GroupByID(ctx context.Context, gid uint32) (*models.Group, error)
}

// Resolver orchestrates the session, the local store and an in-memory hot
// layer. One instance is shared by the indexer and the HTTP handlers.
type Resolver struct {
	db      *models.Database
	fetcher Fetcher
	memory  *gocache.Cache
	logger  *logrus.Logger
}

// NewResolver creates a resolver over the given store and fetcher
func NewResolver(db *models.Database, fetcher Fetcher, logger *logrus.Logger) *Resolver {
	return &Resolver{
		db:      db,
		fetcher: fetcher,
		memory:  gocache.New(30*time.Minute, 10*time.Minute),
		logger:  logger,
	}
}

// AnimeByID resolves an anime, hitting the network only when the id is not
// yet cached. A zero id and a remote "no such anime" both return nil.
func (r *Resolver) AnimeByID(ctx context.Context, aid uint32) (*models.Anime, error) {
	if aid == 0 {
		return nil, nil
	}

	key := fmt.Sprintf("anime/%d", aid)
	if hit, ok := r.memory.Get(key); ok {
		return hit.(*models.Anime), nil
	}

	anime, err := r.db.GetAnime(aid)
	if err == nil {
		r.logger.WithField("aid", aid).Debug("Anime found in cache")
		r.memory.SetDefault(key, anime)
		return anime, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("cache read failed: %w", err)
	}

	anime, err = r.fetcher.AnimeByID(ctx, aid)
	if err != nil {
		return nil, err
	}
	if anime == nil {
		return nil, nil
	}

	if err := r.db.SaveAnime(anime); err != nil {
		return nil, fmt.Errorf("cache write failed: %w", err)
	}
	r.memory.SetDefault(key, anime)

	return anime, nil
}

// EpisodeByID resolves an episode with the same cache-first contract
func (r *Resolver) EpisodeByID(ctx context.Context, eid uint32) (*models.Episode, error) {
	if eid == 0 {
		return nil, nil
	}

	key := fmt.Sprintf("episode/%d", eid)
	if hit, ok := r.memory.Get(key); ok {
		return hit.(*models.Episode), nil
	}

	episode, err := r.db.GetEpisode(eid)
	if err == nil {
		r.logger.WithField("eid", eid).Debug("Episode found in cache")
		r.memory.SetDefault(key, episode)
		return episode, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("cache read failed: %w", err)
	}

	episode, err = r.fetcher.EpisodeByID(ctx, eid)
	if err != nil {
		return nil, err
	}
	if episode == nil {
		return nil, nil
	}

	if err := r.db.SaveEpisode(episode); err != nil {
		return nil, fmt.Errorf("cache write failed: %w", err)
	}
	r.memory.SetDefault(key, episode)

	return episode, nil
}

// GroupByID resolves a release group with the same cache-first contract
func (r *Resolver) GroupByID(ctx context.Context, gid uint32) (*models.Group, error) {
	if gid == 0 {
		return nil, nil
	}

	key := fmt.Sprintf("group/%d", gid)
	if hit, ok := r.memory.Get(key); ok {
		return hit.(*models.Group), nil
	}

	group, err := r.db.GetGroup(gid)
	if err == nil {
		r.logger.WithField("gid", gid).Debug("Group found in cache")
		r.memory.SetDefault(key, group)
		return group, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("cache read failed: %w", err)
	}

	group, err = r.fetcher.GroupByID(ctx, gid)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, nil
	}

	if err := r.db.SaveGroup(group); err != nil {
		return nil, fmt.Errorf("cache write failed: %w", err)
	}
	r.memory.SetDefault(key, group)

	return group, nil
}

// FileByID resolves a file by its remote id
func (r *Resolver) FileByID(ctx context.Context, fid uint32) (*models.File, error) {
	if fid == 0 {
		return nil, nil
	}

	key := fmt.Sprintf("file/%d", fid)
	if hit, ok := r.memory.Get(key); ok {
		return hit.(*models.File), nil
	}

	file, err := r.db.GetFile(fid)
	if err == nil {
		r.logger.WithField("fid", fid).Debug("File found in cache")
		r.memory.SetDefault(key, file)
		return file, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("cache read failed: %w", err)
	}

	file, err = r.fetcher.FileByID(ctx, fid)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, nil
	}

	if err := r.db.SaveFile(file); err != nil {
		return nil, fmt.Errorf("cache write failed: %w", err)
	}
	r.memory.SetDefault(key, file)

	return file, nil
}

// FileByContent resolves a file by size and content fingerprint. The cached
// row is shared with FileByID: both keys land on the same record.
func (r *Resolver) FileByContent(ctx context.Context, size int64, hash string) (*models.File, error) {
	key := fmt.Sprintf("file/%d/%s", size, hash)
	if hit, ok := r.memory.Get(key); ok {
		return hit.(*models.File), nil
	}

	file, err := r.db.GetFileByContent(size, hash)
	if err == nil {
		r.logger.WithField("ed2k", hash).Debug("File found in cache")
		r.memory.SetDefault(key, file)
		return file, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("cache read failed: %w", err)
	}

	file, err = r.fetcher.FileByHash(ctx, size, hash)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, nil
	}

	if err := r.db.SaveFile(file); err != nil {
		return nil, fmt.Errorf("cache write failed: %w", err)
	}
	r.memory.SetDefault(key, file)

	return file, nil
}

// ResolveRelated eagerly resolves the show, episode and group a file points
// at. Each is independently cache-checked, so a known show costs nothing
// even when a new episode of it turns up.
func (r *Resolver) ResolveRelated(ctx context.Context, file *models.File) error {
	if _, err := r.AnimeByID(ctx, file.AID); err != nil {
		return fmt.Errorf("failed to resolve anime %d: %w", file.AID, err)
	}
	if _, err := r.EpisodeByID(ctx, file.EID); err != nil {
		return fmt.Errorf("failed to resolve episode %d: %w", file.EID, err)
	}
	if _, err := r.GroupByID(ctx, file.GID); err != nil {
		return fmt.Errorf("failed to resolve group %d: %w", file.GID, err)
	}
	return nil
}

// LookupIndexed finds the indexed-file row for a path without hashing:
// exact path first, then (filename, size) for moved files, rewriting the
// stored path in place on a fallback hit. A row whose recorded size differs
// from the file on disk is treated as a miss so the file gets re-hashed.
func (r *Resolver) LookupIndexed(path string, size int64) (*models.IndexedFile, error) {
	indexed, err := r.db.GetIndexedFile(path)
	if err == nil {
		if indexed.Size == size {
			return indexed, nil
		}
		return nil, models.ErrNotFound
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("cache read failed: %w", err)
	}

	indexed, err = r.db.FindIndexedFile(filepath.Base(path), size)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("cache read failed: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"old_path": indexed.Path,
		"new_path": path,
	}).Info("Indexed file moved, updating path")

	if err := r.db.RenameIndexedFile(indexed, path); err != nil {
		return nil, fmt.Errorf("cache write failed: %w", err)
	}

	return indexed, nil
}

// RecordScan resolves a freshly hashed file by content and persists the
// path mapping whether or not the catalog knows the file — a row with a nil
// file id records "known absent" and stops the next scan from re-hashing.
func (r *Resolver) RecordScan(ctx context.Context, path string, size int64, hash string) (*models.File, error) {
	file, err := r.FileByContent(ctx, size, hash)
	if err != nil {
		return nil, err
	}

	indexed := &models.IndexedFile{
		Path:     path,
		Filename: filepath.Base(path),
		Size:     size,
		Ed2k:     hash,
	}
	if file != nil {
		fid := file.FID
		indexed.FID = &fid
	}

	if err := r.db.SaveIndexedFile(indexed); err != nil {
		return nil, fmt.Errorf("cache write failed: %w", err)
	}

	return file, nil
}

// ResolvePath identifies the file at path, hashing it only when no indexed
// row covers it. Returns nil when the catalog does not know the content.
func (r *Resolver) ResolvePath(ctx context.Context, path string) (*models.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	indexed, err := r.LookupIndexed(path, info.Size())
	if err == nil {
		if indexed.FID == nil {
			return nil, nil
		}
		return r.FileByID(ctx, *indexed.FID)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	hash, err := ed2k.HashFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to hash file: %w", err)
	}

	return r.RecordScan(ctx, path, info.Size(), hash)
}
