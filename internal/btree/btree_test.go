package btree

import (
	"sort"
	"testing"

	"github.com/bambang-db/bambang/internal/dberrors"
	"github.com/bambang-db/bambang/internal/page"
	"github.com/bambang-db/bambang/internal/predicate"
	"github.com/bambang-db/bambang/internal/row"
	"github.com/bambang-db/bambang/internal/value"
)

// memManager is an in-memory Manager test double, standing in for a pager
// so these tests exercise split/promotion/repair logic in isolation.
type memManager struct {
	pages  map[uint64]*page.Page
	leaves map[uint64]bool
	nextID uint64
}

func newMemManager() *memManager {
	return &memManager{pages: map[uint64]*page.Page{}, leaves: map[uint64]bool{}, nextID: 1}
}

func (m *memManager) ReadPage(id uint64) (*page.Page, error) {
	p, ok := m.pages[id]
	if !ok {
		return nil, dberrors.NotFound("page %d not found", id)
	}
	return p, nil
}

func (m *memManager) WritePage(p *page.Page) error {
	m.pages[p.PageID] = p
	return nil
}

func (m *memManager) AllocatePage() uint64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memManager) RegisterLeafPage(id uint64) error   { m.leaves[id] = true; return nil }
func (m *memManager) UnregisterLeafPage(id uint64) error { delete(m.leaves, id); return nil }

func (m *memManager) leafIDs() []uint64 {
	var ids []uint64
	for id := range m.leaves {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func newRootLeaf(mgr *memManager) uint64 {
	id := mgr.AllocatePage()
	mgr.WritePage(page.NewLeaf(id))
	mgr.RegisterLeafPage(id)
	return id
}

func rowFor(id uint64) row.Row {
	return row.Row{ID: id, Data: []value.Value{value.Integer(int64(id))}}
}

// Spec §8 scenario 1: order=4 allows at most three keys per node, so the
// fourth insert splits the root leaf into [1,2] and [3,4]; after the fifth,
// the root is an internal node with separator [3] over two linked leaves
// [1,2] and [3,4,5].
func TestSplitAndPromotion(t *testing.T) {
	mgr := newMemManager()
	root := newRootLeaf(mgr)

	order := 4
	for _, k := range []uint64{1, 2, 3, 4, 5} {
		next, err := InsertWithOrder(mgr, root, rowFor(k), order)
		if err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
		root = next
	}

	rootPage, err := mgr.ReadPage(root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if rootPage.IsLeaf {
		t.Fatalf("root should have been promoted to an internal node")
	}
	if len(rootPage.Keys) != 1 || rootPage.Keys[0] != 3 {
		t.Fatalf("expected root separator [3], got %+v", rootPage.Keys)
	}
	if rootPage.ParentPageID != page.NoPage {
		t.Fatalf("root must have no parent")
	}
	if len(rootPage.ChildPageIDs) != 2 {
		t.Fatalf("expected 2 children, got %d", len(rootPage.ChildPageIDs))
	}

	left, _ := mgr.ReadPage(rootPage.ChildPageIDs[0])
	right, _ := mgr.ReadPage(rootPage.ChildPageIDs[1])
	if len(left.Keys) != 2 || left.Keys[0] != 1 || left.Keys[1] != 2 {
		t.Fatalf("left leaf expected [1,2], got %+v", left.Keys)
	}
	if len(right.Keys) != 3 || right.Keys[0] != 3 || right.Keys[2] != 5 {
		t.Fatalf("right leaf expected [3,4,5], got %+v", right.Keys)
	}
	if left.NextLeafPageID != right.PageID {
		t.Fatalf("leaves must be linked left -> right")
	}

	ids := mgr.leafIDs()
	if len(ids) != 2 {
		t.Fatalf("registry should contain both leaves, got %+v", ids)
	}
}

// Spec §8 scenario 2: inserting the same key twice returns DuplicateKey and
// leaves the tree unchanged.
func TestDuplicateKeyRejected(t *testing.T) {
	mgr := newMemManager()
	root := newRootLeaf(mgr)

	root, err := Insert(mgr, root, rowFor(10))
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err = Insert(mgr, root, rowFor(10))
	if !dberrors.Is(err, dberrors.KindDuplicateKey) {
		t.Fatalf("expected DuplicateKey, got %v", err)
	}

	leaf, _ := mgr.ReadPage(root)
	if len(leaf.Keys) != 1 {
		t.Fatalf("tree must be unchanged after the rejected duplicate, got keys %+v", leaf.Keys)
	}
}

func TestLookupAfterInsert(t *testing.T) {
	mgr := newMemManager()
	root := newRootLeaf(mgr)
	order := 4
	for _, k := range []uint64{1, 2, 3, 4, 5, 6, 7} {
		next, err := InsertWithOrder(mgr, root, rowFor(k), order)
		if err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
		root = next
	}
	got, err := Lookup(mgr, root, 6)
	if err != nil {
		t.Fatalf("lookup 6: %v", err)
	}
	if got.ID != 6 {
		t.Fatalf("expected row 6, got %+v", got)
	}
	if _, err := Lookup(mgr, root, 999); !dberrors.Is(err, dberrors.KindNotFound) {
		t.Fatalf("expected NotFound for missing key, got %v", err)
	}
}

// Spec §8 scenario 4: bulk delete with merge. Insert [1..100], delete every
// even key by predicate; every leaf that matches gets rewritten, some merge
// on underflow, and the final scan (walking the leaf chain from the
// leftmost leaf) returns the 50 odd ids in ascending order.
func TestBulkDeleteWithMergeByPredicate(t *testing.T) {
	order := 4

	// The predicate model has no arithmetic, so "id % 2 = 0" is expressed by
	// carrying a precomputed is_even column and deleting where it is true.
	mgr := newMemManager()
	root := newRootLeaf(mgr)
	schema := row.NewSchema([]row.Column{
		{Name: "id", DataType: row.TypeInteger},
		{Name: "is_even", DataType: row.TypeBoolean},
	})
	for k := uint64(1); k <= 100; k++ {
		r := row.Row{ID: k, Data: []value.Value{value.Integer(int64(k)), value.Boolean(k%2 == 0)}}
		next, err := InsertWithOrder(mgr, root, r, order)
		if err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
		root = next
	}

	pred, err := predicate.Compile(predicate.Eq("is_even", value.Boolean(true)), schema)
	if err != nil {
		t.Fatalf("compile predicate: %v", err)
	}

	newRoot, deleted, err := DeletePredicateWithOrder(mgr, root, mgr.leafIDs(), pred, order)
	if err != nil {
		t.Fatalf("delete predicate: %v", err)
	}
	if deleted != 50 {
		t.Fatalf("expected 50 rows deleted, got %d", deleted)
	}
	root = newRoot

	leafID, err := FindLeftmostLeaf(mgr, root)
	if err != nil {
		t.Fatalf("find leftmost leaf: %v", err)
	}
	var gotIDs []uint64
	for leafID != page.NoPage {
		leaf, err := mgr.ReadPage(leafID)
		if err != nil {
			t.Fatalf("read leaf %d: %v", leafID, err)
		}
		gotIDs = append(gotIDs, leaf.Keys...)
		leafID = leaf.NextLeafPageID
	}
	if len(gotIDs) != 50 {
		t.Fatalf("expected 50 surviving ids, got %d", len(gotIDs))
	}
	for i, id := range gotIDs {
		want := uint64(2*i + 1)
		if id != want {
			t.Fatalf("position %d: got %d, want %d (odd ids in ascending order)", i, id, want)
		}
	}
}

func TestUpdateByKeyReplacesRowInPlace(t *testing.T) {
	mgr := newMemManager()
	root := newRootLeaf(mgr)
	root, err := Insert(mgr, root, rowFor(1))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	ok, err := UpdateByKey(mgr, root, 1, row.Row{ID: 1, Data: []value.Value{value.Integer(999)}})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	got, err := Lookup(mgr, root, 1)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	n, _ := got.Data[0].AsInt64()
	if n != 999 {
		t.Fatalf("expected updated value 999, got %d", n)
	}

	ok, err = UpdateByKey(mgr, root, 42, row.Row{ID: 42})
	if err != nil || ok {
		t.Fatalf("update of absent key should report false, got ok=%v err=%v", ok, err)
	}
}

func TestDeleteSingleKeyNotFound(t *testing.T) {
	mgr := newMemManager()
	root := newRootLeaf(mgr)
	root, _ = Insert(mgr, root, rowFor(1))
	if _, err := Delete(mgr, root, 2); !dberrors.Is(err, dberrors.KindNotFound) {
		t.Fatalf("expected NotFound deleting absent key, got %v", err)
	}
}
