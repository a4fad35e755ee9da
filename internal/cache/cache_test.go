package cache

import (
	"context"
	"testing"
	"time"

	"github.com/kestrel-docs/docindex/internal/store"
)

func TestGetMissReturnsFalse(t *testing.T) {
	c, err := Open("", Config{ExtractorVersion: "v1"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	_, ok, err := c.Get(context.Background(), Key{ContentHash: "a", PromptHash: "b", ExtractorVersion: "v1"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected a miss for an empty cache")
	}
}

func TestPutThenGetRoundTrips(t *testing.T) {
	ctx := context.Background()
	c, err := Open("", Config{ExtractorVersion: "v1"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	key := Key{ContentHash: "h1", PromptHash: "p1", ExtractorVersion: "v1"}
	artifact := Artifact{
		FullText:    "extracted text",
		Pairs:       []store.Pair{{ModelName: "PM10K", PartNumber: "2293937"}},
		ParseMethod: "pdf-text",
	}

	if err := c.Put(ctx, key, artifact); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit after Put")
	}
	if got.FullText != artifact.FullText || len(got.Pairs) != 1 {
		t.Errorf("unexpected artifact: %+v", got)
	}
}

func TestGetMissesOnExtractorVersionMismatch(t *testing.T) {
	ctx := context.Background()
	c, err := Open("", Config{ExtractorVersion: "v1"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	key := Key{ContentHash: "h1", PromptHash: "p1", ExtractorVersion: "v1"}
	if err := c.Put(ctx, key, Artifact{FullText: "old"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Simulate an extractor upgrade: entries from the old version are
	// authoritative no longer, even though the key itself is unchanged.
	c.currentExtractorVersion = "v2"

	_, ok, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected a miss once the extractor version no longer matches")
	}
}

func TestClearPurgesBothTiers(t *testing.T) {
	ctx := context.Background()
	c, err := Open("", Config{ExtractorVersion: "v1"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	key := Key{ContentHash: "h1", PromptHash: "p1", ExtractorVersion: "v1"}
	_ = c.Put(ctx, key, Artifact{FullText: "text"})

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	_, ok, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected a miss after Clear")
	}
}

func TestSweepRemovesOnlyStaleEntries(t *testing.T) {
	ctx := context.Background()
	c, err := Open("", Config{ExtractorVersion: "v1"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	staleKey := Key{ContentHash: "stale", PromptHash: "p", ExtractorVersion: "v1"}
	freshKey := Key{ContentHash: "fresh", PromptHash: "p", ExtractorVersion: "v1"}

	_ = c.Put(ctx, staleKey, Artifact{FullText: "stale"})
	_ = c.Put(ctx, freshKey, Artifact{FullText: "fresh"})

	// Force the stale row's timestamp into the past directly, since Put
	// always stamps "now".
	if _, err := c.db.ExecContext(ctx, `UPDATE artifacts SET created_at = ? WHERE cache_key = ?`,
		time.Now().Add(-48*time.Hour).UTC().Unix(), staleKey.String()); err != nil {
		t.Fatalf("backdate stale row: %v", err)
	}
	c.hot.Purge() // force cold-tier lookups below

	n, err := c.Sweep(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row swept, got %d", n)
	}

	if _, ok, _ := c.Get(ctx, staleKey); ok {
		t.Error("expected stale entry to be swept")
	}
	if _, ok, _ := c.Get(ctx, freshKey); !ok {
		t.Error("expected fresh entry to survive sweep")
	}
}

func TestKeyStringIsDeterministicAndDistinct(t *testing.T) {
	a := Key{ContentHash: "c1", PromptHash: "p1", ExtractorVersion: "v1"}
	b := Key{ContentHash: "c1", PromptHash: "p1", ExtractorVersion: "v1"}
	c := Key{ContentHash: "c2", PromptHash: "p1", ExtractorVersion: "v1"}

	if a.String() != b.String() {
		t.Error("expected identical keys to produce identical cache keys")
	}
	if a.String() == c.String() {
		t.Error("expected distinct content hashes to produce distinct cache keys")
	}
}
