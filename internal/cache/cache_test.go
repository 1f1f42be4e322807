package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/ytflow/ytflow/pkg/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	// Create a mini Redis server for testing
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	cache, err := NewCache(mr.Host(), mr.Server().Addr().Port, "", 0)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create cache: %v", err)
	}

	return cache, mr
}

func testManifest(ttl time.Duration) *models.Manifest {
	return &models.Manifest{
		Video:    models.NewVideoRef("dQw4w9WgXcQ"),
		Title:    "Test Video",
		Duration: 212.0,
		Streams: []models.StreamDescriptor{
			{
				Itag:         22,
				Container:    "mp4",
				Codec:        "avc1.64001F",
				HasAudio:     true,
				HasVideo:     true,
				QualityLabel: "720p",
				Bitrate:      1200000,
				URL:          "https://cdn.example.com/videoplayback?expire=9999999999",
			},
			{
				Itag:      140,
				Container: "mp4",
				Codec:     "mp4a.40.2",
				HasAudio:  true,
				Bitrate:   128000,
				URL:       "https://cdn.example.com/videoplayback?expire=9999999999",
			},
		},
		FetchedAt: time.Now(),
		TTL:       ttl,
	}
}

func TestNewCache(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	if cache == nil {
		t.Fatal("Cache should not be nil")
	}

	// Test ping
	ctx := context.Background()
	if err := cache.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestCache_ManifestRoundTrip(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	manifest := testManifest(5 * time.Minute)

	if err := cache.SetManifest(ctx, manifest); err != nil {
		t.Fatalf("Failed to set manifest: %v", err)
	}

	got, err := cache.GetManifest(ctx, "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Failed to get manifest: %v", err)
	}
	if got == nil {
		t.Fatal("Expected cache hit")
	}

	if got.Title != manifest.Title {
		t.Errorf("Expected title %q, got %q", manifest.Title, got.Title)
	}
	if len(got.Streams) != 2 {
		t.Fatalf("Expected 2 streams, got %d", len(got.Streams))
	}
	// Signed URLs must survive the round trip or extraction fails on hits.
	if got.Streams[0].URL != manifest.Streams[0].URL {
		t.Errorf("Expected stream URL %q, got %q", manifest.Streams[0].URL, got.Streams[0].URL)
	}
}

func TestCache_Miss(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	got, err := cache.GetManifest(context.Background(), "nonexistent00")
	if err != nil {
		t.Fatalf("Unexpected error on miss: %v", err)
	}
	if got != nil {
		t.Error("Expected nil manifest on cache miss")
	}
}

func TestCache_ExpiredManifestTreatedAsMiss(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	// FetchedAt+TTL already lapsed even though the Redis key has not
	// evicted yet; the read-side check must treat it as a miss.
	manifest := testManifest(time.Hour)
	manifest.FetchedAt = time.Now().Add(-2 * time.Hour)

	if err := cache.SetManifest(ctx, manifest); err != nil {
		t.Fatalf("Failed to set manifest: %v", err)
	}

	got, err := cache.GetManifest(ctx, manifest.Video.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != nil {
		t.Error("Expected expired manifest to read as a miss")
	}
}

func TestCache_DeleteManifest(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	manifest := testManifest(5 * time.Minute)

	if err := cache.SetManifest(ctx, manifest); err != nil {
		t.Fatalf("Failed to set manifest: %v", err)
	}

	if err := cache.DeleteManifest(ctx, manifest.Video.ID); err != nil {
		t.Fatalf("Failed to delete manifest: %v", err)
	}

	got, err := cache.GetManifest(ctx, manifest.Video.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != nil {
		t.Error("Expected miss after delete")
	}
}
