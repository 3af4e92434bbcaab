package maintenance

import (
	"sync"
	"testing"

	"github.com/bambang-db/bambang/internal/catalog"
	"github.com/bambang-db/bambang/internal/row"
)

type fakePager struct {
	mu           sync.Mutex
	valid        bool
	validateErr  error
	rebuildErr   error
	rebuildCalls int
}

func (f *fakePager) ValidateLeafRegistry(root uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.valid, f.validateErr
}

func (f *fakePager) RebuildLeafRegistry(root uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuildCalls++
	return f.rebuildErr
}

func testSchema() *row.Schema {
	return row.NewSchema([]row.Column{{Name: "id", DataType: row.TypeInteger}})
}

func TestRunOnceRebuildsStaleRegistry(t *testing.T) {
	cat := catalog.NewManager()
	cat.Register("lineorder", "/tmp/lineorder.db", 1, testSchema())

	pager := &fakePager{valid: false}
	sched := NewScheduler(cat, func(name string) (PagerHandle, error) {
		return pager, nil
	}, 0)

	sched.RunOnce()

	if pager.rebuildCalls != 1 {
		t.Fatalf("expected exactly one rebuild call for a stale registry, got %d", pager.rebuildCalls)
	}
}

func TestRunOnceSkipsValidRegistry(t *testing.T) {
	cat := catalog.NewManager()
	cat.Register("date", "/tmp/date.db", 1, testSchema())

	pager := &fakePager{valid: true}
	sched := NewScheduler(cat, func(name string) (PagerHandle, error) {
		return pager, nil
	}, 0)

	sched.RunOnce()

	if pager.rebuildCalls != 0 {
		t.Fatalf("expected no rebuild for an already-valid registry, got %d calls", pager.rebuildCalls)
	}
}

func TestRunOnceToleratesLookupFailure(t *testing.T) {
	cat := catalog.NewManager()
	cat.Register("missing", "/tmp/missing.db", 1, testSchema())

	sched := NewScheduler(cat, func(name string) (PagerHandle, error) {
		return nil, &lookupErr{}
	}, 0)

	// must not panic even though every lookup fails
	sched.RunOnce()
}

type lookupErr struct{}

func (e *lookupErr) Error() string { return "no pager open for table" }
