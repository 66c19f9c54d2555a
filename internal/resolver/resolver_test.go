package resolver

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/asakaze/anidex/internal/ed2k"
	"github.com/asakaze/anidex/internal/models"
	"github.com/sirupsen/logrus"
)

// fakeFetcher serves canned catalog entries and counts network calls
type fakeFetcher struct {
	filesByHash map[string]*models.File
	filesByID   map[uint32]*models.File
	anime       map[uint32]*models.Anime
	episodes    map[uint32]*models.Episode
	groups      map[uint32]*models.Group

	hashCalls    int
	fileCalls    int
	animeCalls   int
	episodeCalls int
	groupCalls   int
}

func (f *fakeFetcher) FileByHash(ctx context.Context, size int64, hash string) (*models.File, error) {
	f.hashCalls++
	return f.filesByHash[hash], nil
}

func (f *fakeFetcher) FileByID(ctx context.Context, fid uint32) (*models.File, error) {
	f.fileCalls++
	return f.filesByID[fid], nil
}

func (f *fakeFetcher) AnimeByID(ctx context.Context, aid uint32) (*models.Anime, error) {
	f.animeCalls++
	return f.anime[aid], nil
}

func (f *fakeFetcher) EpisodeByID(ctx context.Context, eid uint32) (*models.Episode, error) {
	f.episodeCalls++
	return f.episodes[eid], nil
}

func (f *fakeFetcher) GroupByID(ctx context.Context, gid uint32) (*models.Group, error) {
	f.groupCalls++
	return f.groups[gid], nil
}

func newTestResolver(t *testing.T, fetcher *fakeFetcher) (*Resolver, *models.Database) {
	t.Helper()

	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return NewResolver(db, fetcher, logger), db
}

func TestAnimeByIDCacheFirst(t *testing.T) {
	fetcher := &fakeFetcher{}
	resolver, db := newTestResolver(t, fetcher)

	if err := db.SaveAnime(&models.Anime{AID: 1, RomajiName: "Seikai no Monshou"}); err != nil {
		t.Fatalf("Failed to seed anime: %v", err)
	}

	anime, err := resolver.AnimeByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("Failed to resolve anime: %v", err)
	}
	if anime == nil || anime.RomajiName != "Seikai no Monshou" {
		t.Errorf("Unexpected anime %+v", anime)
	}
	if fetcher.animeCalls != 0 {
		t.Errorf("Cached anime must not hit the network, got %d calls", fetcher.animeCalls)
	}
}

func TestAnimeByIDFetchesOnce(t *testing.T) {
	fetcher := &fakeFetcher{anime: map[uint32]*models.Anime{3: {AID: 3, RomajiName: "Cowboy Bebop"}}}
	resolver, db := newTestResolver(t, fetcher)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		anime, err := resolver.AnimeByID(ctx, 3)
		if err != nil {
			t.Fatalf("Failed to resolve anime: %v", err)
		}
		if anime == nil || anime.AID != 3 {
			t.Fatalf("Unexpected anime %+v", anime)
		}
	}
	if fetcher.animeCalls != 1 {
		t.Errorf("Expected 1 network resolution, got %d", fetcher.animeCalls)
	}

	if _, err := db.GetAnime(3); err != nil {
		t.Errorf("Resolved anime not written through to the store: %v", err)
	}
}

func TestAnimeByIDZero(t *testing.T) {
	fetcher := &fakeFetcher{}
	resolver, _ := newTestResolver(t, fetcher)

	anime, err := resolver.AnimeByID(context.Background(), 0)
	if err != nil || anime != nil {
		t.Errorf("Expected nil, nil for zero id, got %+v, %v", anime, err)
	}
	if fetcher.animeCalls != 0 {
		t.Errorf("Zero id must not hit the network")
	}
}

func TestAnimeByIDAbsenceNotCached(t *testing.T) {
	fetcher := &fakeFetcher{}
	resolver, _ := newTestResolver(t, fetcher)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		anime, err := resolver.AnimeByID(ctx, 9)
		if err != nil || anime != nil {
			t.Fatalf("Expected nil, nil for unknown id, got %+v, %v", anime, err)
		}
	}
	if fetcher.animeCalls != 2 {
		t.Errorf("Remote absence by id must not be cached, got %d calls", fetcher.animeCalls)
	}
}

func TestFileByContentSharesRowWithFileByID(t *testing.T) {
	file := &models.File{FID: 42, AID: 1, Size: 100, Ed2k: "aabb"}
	fetcher := &fakeFetcher{filesByHash: map[string]*models.File{"aabb": file}}
	resolver, _ := newTestResolver(t, fetcher)

	ctx := context.Background()
	got, err := resolver.FileByContent(ctx, 100, "aabb")
	if err != nil {
		t.Fatalf("Failed to resolve by content: %v", err)
	}
	if got == nil || got.FID != 42 {
		t.Fatalf("Unexpected file %+v", got)
	}

	got, err = resolver.FileByID(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to resolve by id: %v", err)
	}
	if got == nil || got.Ed2k != "aabb" {
		t.Errorf("Unexpected file %+v", got)
	}
	if fetcher.fileCalls != 0 {
		t.Errorf("File resolved by content must be findable by id without the network")
	}
}

func TestRecordScanKnownAbsent(t *testing.T) {
	fetcher := &fakeFetcher{}
	resolver, db := newTestResolver(t, fetcher)

	file, err := resolver.RecordScan(context.Background(), "/media/mystery.mkv", 50, "ffff")
	if err != nil {
		t.Fatalf("Failed to record scan: %v", err)
	}
	if file != nil {
		t.Errorf("Expected nil file for unknown content, got %+v", file)
	}

	indexed, err := db.GetIndexedFile("/media/mystery.mkv")
	if err != nil {
		t.Fatalf("Indexed row not persisted: %v", err)
	}
	if indexed.FID != nil {
		t.Errorf("Expected nil FID for unknown content, got %d", *indexed.FID)
	}
	if indexed.Ed2k != "ffff" || indexed.Size != 50 {
		t.Errorf("Unexpected indexed row %+v", indexed)
	}
}

func TestLookupIndexedRename(t *testing.T) {
	fetcher := &fakeFetcher{}
	resolver, db := newTestResolver(t, fetcher)

	err := db.SaveIndexedFile(&models.IndexedFile{
		Path:     "/media/old/show.mkv",
		Filename: "show.mkv",
		Size:     10,
		Ed2k:     "abcd",
	})
	if err != nil {
		t.Fatalf("Failed to seed indexed row: %v", err)
	}

	indexed, err := resolver.LookupIndexed("/media/new/show.mkv", 10)
	if err != nil {
		t.Fatalf("Fallback lookup failed: %v", err)
	}
	if indexed.Path != "/media/new/show.mkv" {
		t.Errorf("Row path not rewritten, got %q", indexed.Path)
	}

	if _, err := db.GetIndexedFile("/media/new/show.mkv"); err != nil {
		t.Errorf("Row not stored under the new path: %v", err)
	}
	if _, err := db.GetIndexedFile("/media/old/show.mkv"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Old path row still present: %v", err)
	}
}

func TestLookupIndexedSizeMismatch(t *testing.T) {
	fetcher := &fakeFetcher{}
	resolver, db := newTestResolver(t, fetcher)

	err := db.SaveIndexedFile(&models.IndexedFile{
		Path:     "/media/show.mkv",
		Filename: "show.mkv",
		Size:     10,
		Ed2k:     "abcd",
	})
	if err != nil {
		t.Fatalf("Failed to seed indexed row: %v", err)
	}

	if _, err := resolver.LookupIndexed("/media/show.mkv", 999); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected miss for changed size, got %v", err)
	}
}

func TestResolvePathHashesOnlyOnce(t *testing.T) {
	content := []byte("some video bytes")
	dir := t.TempDir()
	path := filepath.Join(dir, "show.mkv")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	hash, err := ed2k.HashFile(path)
	if err != nil {
		t.Fatalf("Failed to hash test file: %v", err)
	}

	file := &models.File{FID: 7, Size: int64(len(content)), Ed2k: hash}
	fetcher := &fakeFetcher{filesByHash: map[string]*models.File{hash: file}}
	resolver, _ := newTestResolver(t, fetcher)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		got, err := resolver.ResolvePath(ctx, path)
		if err != nil {
			t.Fatalf("Failed to resolve path: %v", err)
		}
		if got == nil || got.FID != 7 {
			t.Fatalf("Unexpected file %+v", got)
		}
	}
	if fetcher.hashCalls != 1 {
		t.Errorf("Expected 1 content lookup, got %d", fetcher.hashCalls)
	}
}
