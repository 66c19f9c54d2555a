package models

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// ErrNotFound is returned by lookups that miss the store.
var ErrNotFound = bolthold.ErrNotFound

const settingsKey = "settings"

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// Anime operations

// GetAnime retrieves a cached anime by its remote id
func (db *Database) GetAnime(aid uint32) (*Anime, error) {
	var anime Anime
	if err := db.store.Get(aid, &anime); err != nil {
		return nil, err
	}
	return &anime, nil
}

// SaveAnime stores an anime, replacing any previous row wholesale
func (db *Database) SaveAnime(anime *Anime) error {
	return db.store.Upsert(anime.AID, anime)
}

// CountAnime returns the number of cached anime
func (db *Database) CountAnime() (int, error) {
	return db.store.Count(&Anime{}, nil)
}

// Episode operations

// GetEpisode retrieves a cached episode by its remote id
func (db *Database) GetEpisode(eid uint32) (*Episode, error) {
	var episode Episode
	if err := db.store.Get(eid, &episode); err != nil {
		return nil, err
	}
	return &episode, nil
}

// SaveEpisode stores an episode, replacing any previous row wholesale
func (db *Database) SaveEpisode(episode *Episode) error {
	return db.store.Upsert(episode.EID, episode)
}

// GetEpisodesByAnime retrieves all cached episodes of one anime
func (db *Database) GetEpisodesByAnime(aid uint32) ([]*Episode, error) {
	var episodes []*Episode
	err := db.store.Find(&episodes, bolthold.Where("AID").Eq(aid).Index("AID"))
	return episodes, err
}

// CountEpisodes returns the number of cached episodes
func (db *Database) CountEpisodes() (int, error) {
	return db.store.Count(&Episode{}, nil)
}

// File operations

// GetFile retrieves a cached file by its remote id
func (db *Database) GetFile(fid uint32) (*File, error) {
	var file File
	if err := db.store.Get(fid, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// GetFileByContent retrieves a cached file by size and content fingerprint
func (db *Database) GetFileByContent(size int64, ed2k string) (*File, error) {
	var file File
	err := db.store.FindOne(&file, bolthold.Where("Ed2k").Eq(ed2k).Index("Ed2k").And("Size").Eq(size))
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// SaveFile stores a file, replacing any previous row wholesale
func (db *Database) SaveFile(file *File) error {
	return db.store.Upsert(file.FID, file)
}

// CountFiles returns the number of cached files
func (db *Database) CountFiles() (int, error) {
	return db.store.Count(&File{}, nil)
}

// Group operations

// GetGroup retrieves a cached release group by its remote id
func (db *Database) GetGroup(gid uint32) (*Group, error) {
	var group Group
	if err := db.store.Get(gid, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// SaveGroup stores a release group, replacing any previous row wholesale
func (db *Database) SaveGroup(group *Group) error {
	return db.store.Upsert(group.GID, group)
}

// CountGroups returns the number of cached release groups
func (db *Database) CountGroups() (int, error) {
	return db.store.Count(&Group{}, nil)
}

// IndexedFile operations

// GetIndexedFile retrieves an indexed file by its exact path
func (db *Database) GetIndexedFile(path string) (*IndexedFile, error) {
	var indexed IndexedFile
	if err := db.store.Get(path, &indexed); err != nil {
		return nil, err
	}
	return &indexed, nil
}

// FindIndexedFile retrieves an indexed file by filename and size. Used as a
// fallback when a file was moved or its directory renamed.
func (db *Database) FindIndexedFile(filename string, size int64) (*IndexedFile, error) {
	var indexed IndexedFile
	err := db.store.FindOne(&indexed, bolthold.Where("Filename").Eq(filename).Index("Filename").And("Size").Eq(size))
	if err != nil {
		return nil, err
	}
	return &indexed, nil
}

// SaveIndexedFile stores an indexed file keyed by its path
func (db *Database) SaveIndexedFile(indexed *IndexedFile) error {
	now := time.Now()
	if indexed.FirstSeen.IsZero() {
		indexed.FirstSeen = now
	}
	indexed.LastUpdated = now
	return db.store.Upsert(indexed.Path, indexed)
}

// RenameIndexedFile moves an indexed file row to a new path key
func (db *Database) RenameIndexedFile(indexed *IndexedFile, newPath string) error {
	oldPath := indexed.Path
	indexed.Path = newPath
	indexed.Filename = filepath.Base(newPath)
	indexed.LastUpdated = time.Now()
	if err := db.store.Upsert(newPath, indexed); err != nil {
		return err
	}
	return db.store.Delete(oldPath, &IndexedFile{})
}

// DeleteIndexedFile removes an indexed file row
func (db *Database) DeleteIndexedFile(path string) error {
	return db.store.Delete(path, &IndexedFile{})
}

// GetAllIndexedFiles retrieves every indexed file row
func (db *Database) GetAllIndexedFiles() ([]*IndexedFile, error) {
	var indexed []*IndexedFile
	err := db.store.Find(&indexed, nil)
	return indexed, err
}

// Settings operations

// GetSettings retrieves the settings record, or an empty one if none is stored
func (db *Database) GetSettings() (*Settings, error) {
	var settings Settings
	err := db.store.Get(settingsKey, &settings)
	if err == bolthold.ErrNotFound {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// SaveSettings stores the settings record
func (db *Database) SaveSettings(settings *Settings) error {
	return db.store.Upsert(settingsKey, settings)
}

// SessionKey returns the persisted session key, if any
func (db *Database) SessionKey() (string, error) {
	settings, err := db.GetSettings()
	if err != nil {
		return "", err
	}
	return settings.SessionKey, nil
}

// SaveSessionKey persists the session key for reuse across restarts
func (db *Database) SaveSessionKey(key string) error {
	settings, err := db.GetSettings()
	if err != nil {
		return err
	}
	settings.SessionKey = key
	return db.SaveSettings(settings)
}
