package bufferpool

import (
	"testing"

	"github.com/bambang-db/bambang/internal/page"
)

func TestGetPutRoundTrip(t *testing.T) {
	pl := New(4)
	p := page.NewLeaf(1)
	pl.Put(1, p)

	got, ok := pl.Get(1)
	if !ok || got.PageID != 1 {
		t.Fatalf("expected page 1 to be cached")
	}
	if !pl.ContainsPage(1) {
		t.Fatalf("ContainsPage should report true after Put")
	}
}

func TestLRUEviction(t *testing.T) {
	pl := New(2)
	pl.Put(1, page.NewLeaf(1))
	pl.Put(2, page.NewLeaf(2))
	// touch 1 so it becomes MRU, leaving 2 as LRU
	pl.Get(1)
	pl.Put(3, page.NewLeaf(3))

	if pl.ContainsPage(2) {
		t.Fatalf("page 2 should have been evicted as LRU")
	}
	if !pl.ContainsPage(1) || !pl.ContainsPage(3) {
		t.Fatalf("pages 1 and 3 should remain cached")
	}
}

func TestDirtyTracking(t *testing.T) {
	pl := New(4)
	p := page.NewLeaf(1)
	p.IsDirty = true
	pl.Put(1, p)

	if !pl.IsDirty(1) {
		t.Fatalf("page 1 should be recorded dirty on Put")
	}
	dirty := pl.GetDirtyPages()
	if len(dirty) != 1 {
		t.Fatalf("expected 1 dirty page, got %d", len(dirty))
	}

	pl.ClearDirty(1)
	if pl.IsDirty(1) {
		t.Fatalf("page 1 should no longer be dirty after ClearDirty")
	}
}

func TestClearAll(t *testing.T) {
	pl := New(4)
	dirtyPage := page.NewLeaf(1)
	dirtyPage.IsDirty = true
	pl.Put(1, dirtyPage)
	pl.Put(2, page.NewLeaf(2))

	pl.ClearAll()

	if pl.ContainsPage(1) || pl.ContainsPage(2) {
		t.Fatalf("ClearAll should empty the cache")
	}
	if len(pl.GetDirtyPages()) != 0 {
		t.Fatalf("ClearAll should empty the dirty set")
	}
}

func TestStatsUtilization(t *testing.T) {
	pl := New(4)
	pl.Put(1, page.NewLeaf(1))
	pl.Put(2, page.NewLeaf(2))

	stats := pl.Stats()
	if stats.Size != 2 || stats.MaxPages != 4 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Utilization != 0.5 {
		t.Fatalf("expected utilization 0.5, got %f", stats.Utilization)
	}
}
