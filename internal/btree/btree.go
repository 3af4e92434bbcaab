// Package btree implements the clustered B+ tree operations (§4.6): insert
// with leaf/internal split and parent promotion, delete with underflow
// repair, and the row-level Update/Delete-by-predicate helpers the scan
// operator's callers need. It depends only on a small consumer-side
// Manager interface, not on the concrete pager type, so the dependency
// runs one way: pager callers use btree, btree never imports pager.
package btree

import (
	"sort"

	"github.com/bambang-db/bambang/internal/dberrors"
	"github.com/bambang-db/bambang/internal/page"
	"github.com/bambang-db/bambang/internal/row"
)

// DefaultOrder bounds the fanout of internal nodes and the entry count of
// leaves. A node holding Order children (Order-1 separator keys) splits on
// the next insert; a node with fewer than MinKeys keys triggers repair.
const DefaultOrder = 128

// Manager is the page-level capability btree needs: allocate, read, write,
// and leaf-registry bookkeeping. *pager.Pager satisfies this structurally.
type Manager interface {
	ReadPage(id uint64) (*page.Page, error)
	WritePage(p *page.Page) error
	AllocatePage() uint64
	RegisterLeafPage(id uint64) error
	UnregisterLeafPage(id uint64) error
}

func maxKeys(order int) int { return order - 1 }
func minKeys(order int) int { return (order + 1) / 2 }

// FindLeafForKey descends from root choosing, at each internal node, the
// first child index i with key < keys[i], else the last child.
func FindLeafForKey(mgr Manager, root uint64, key uint64) (uint64, error) {
	id := root
	for {
		pg, err := mgr.ReadPage(id)
		if err != nil {
			return 0, err
		}
		if pg.IsLeaf {
			return id, nil
		}
		idx := len(pg.Keys)
		for i, k := range pg.Keys {
			if key < k {
				idx = i
				break
			}
		}
		id = pg.ChildPageIDs[idx]
	}
}

// FindLeftmostLeaf descends from root always taking child 0.
func FindLeftmostLeaf(mgr Manager, root uint64) (uint64, error) {
	id := root
	for {
		pg, err := mgr.ReadPage(id)
		if err != nil {
			return 0, err
		}
		if pg.IsLeaf {
			return id, nil
		}
		if len(pg.ChildPageIDs) == 0 {
			return 0, dberrors.InvalidOperation("btree: internal page %d has no children", id)
		}
		id = pg.ChildPageIDs[0]
	}
}

// Lookup returns the row with the given key, or KindNotFound.
func Lookup(mgr Manager, root uint64, key uint64) (row.Row, error) {
	leafID, err := FindLeafForKey(mgr, root, key)
	if err != nil {
		return row.Row{}, err
	}
	leaf, err := mgr.ReadPage(leafID)
	if err != nil {
		return row.Row{}, err
	}
	i := sort.Search(len(leaf.Keys), func(i int) bool { return leaf.Keys[i] >= key })
	if i < len(leaf.Keys) && leaf.Keys[i] == key {
		return leaf.Values[i], nil
	}
	return row.Row{}, dberrors.NotFound("no row with key %d", key)
}

// Insert adds r (keyed by r.ID) to the tree rooted at root, using the
// default order, and returns the (possibly new) root page id.
func Insert(mgr Manager, root uint64, r row.Row) (uint64, error) {
	return InsertWithOrder(mgr, root, r, DefaultOrder)
}

// InsertWithOrder is Insert parameterized by order, mainly so tests can
// exercise split/promotion with a small fanout.
func InsertWithOrder(mgr Manager, root uint64, r row.Row, order int) (uint64, error) {
	leafID, err := FindLeafForKey(mgr, root, r.ID)
	if err != nil {
		return root, err
	}
	leaf, err := mgr.ReadPage(leafID)
	if err != nil {
		return root, err
	}

	i := sort.Search(len(leaf.Keys), func(i int) bool { return leaf.Keys[i] >= r.ID })
	if i < len(leaf.Keys) && leaf.Keys[i] == r.ID {
		return root, dberrors.DuplicateKey(r.ID)
	}

	leaf.Keys = insertUint64At(leaf.Keys, i, r.ID)
	leaf.Values = insertRowAt(leaf.Values, i, r)

	if len(leaf.Keys) <= maxKeys(order) {
		leaf.IsDirty = true
		if err := mgr.WritePage(leaf); err != nil {
			return root, err
		}
		return root, nil
	}
	return splitLeafAndPromote(mgr, root, leaf, order)
}

// BatchInsert threads root through successive Insert calls and stops at
// the first error, returning the root as of the last successful insert.
func BatchInsert(mgr Manager, root uint64, rows []row.Row) (uint64, int, error) {
	for i, r := range rows {
		next, err := Insert(mgr, root, r)
		if err != nil {
			return root, i, err
		}
		root = next
	}
	return root, len(rows), nil
}

func splitLeafAndPromote(mgr Manager, root uint64, leaf *page.Page, order int) (uint64, error) {
	mid := len(leaf.Keys) / 2

	newLeafID := mgr.AllocatePage()
	newLeaf := page.NewLeaf(newLeafID)
	newLeaf.Keys = append([]uint64(nil), leaf.Keys[mid:]...)
	newLeaf.Values = append([]row.Row(nil), leaf.Values[mid:]...)
	newLeaf.NextLeafPageID = leaf.NextLeafPageID
	newLeaf.ParentPageID = leaf.ParentPageID

	leaf.Keys = append([]uint64(nil), leaf.Keys[:mid]...)
	leaf.Values = append([]row.Row(nil), leaf.Values[:mid]...)
	leaf.NextLeafPageID = newLeafID

	if err := mgr.WritePage(newLeaf); err != nil {
		return root, err
	}
	if err := mgr.WritePage(leaf); err != nil {
		return root, err
	}
	if err := mgr.RegisterLeafPage(newLeafID); err != nil {
		return root, err
	}

	sepKey := newLeaf.Keys[0]
	return promote(mgr, root, leaf.PageID, newLeafID, leaf.ParentPageID, sepKey, order)
}

// promote inserts (sepKey, rightID) as a new separator/child pair into the
// parent of leftID, splitting ancestors (moving their middle key up
// instead of copying it) as far up the tree as overflow propagates. When
// the tree's actual root overflows, a fresh internal root is allocated.
func promote(mgr Manager, root, leftID, rightID, parentID, sepKey uint64, order int) (uint64, error) {
	for {
		if parentID == page.NoPage {
			newRootID := mgr.AllocatePage()
			newRoot := page.NewInternal(newRootID)
			newRoot.Keys = []uint64{sepKey}
			newRoot.ChildPageIDs = []uint64{leftID, rightID}

			left, err := mgr.ReadPage(leftID)
			if err != nil {
				return root, err
			}
			left.ParentPageID = newRootID
			if err := mgr.WritePage(left); err != nil {
				return root, err
			}
			right, err := mgr.ReadPage(rightID)
			if err != nil {
				return root, err
			}
			right.ParentPageID = newRootID
			if err := mgr.WritePage(right); err != nil {
				return root, err
			}
			if err := mgr.WritePage(newRoot); err != nil {
				return root, err
			}
			return newRootID, nil
		}

		parent, err := mgr.ReadPage(parentID)
		if err != nil {
			return root, err
		}
		idx := indexOfChild(parent.ChildPageIDs, leftID)
		if idx < 0 {
			return root, dberrors.InvalidOperation("btree: child %d not found in parent %d", leftID, parentID)
		}
		parent.Keys = insertUint64At(parent.Keys, idx, sepKey)
		parent.ChildPageIDs = insertUint64At(parent.ChildPageIDs, idx+1, rightID)

		if len(parent.Keys) <= maxKeys(order) {
			if err := mgr.WritePage(parent); err != nil {
				return root, err
			}
			return root, nil
		}

		mid := len(parent.Keys) / 2
		promoted := parent.Keys[mid]

		newInternalID := mgr.AllocatePage()
		newInternal := page.NewInternal(newInternalID)
		newInternal.Keys = append([]uint64(nil), parent.Keys[mid+1:]...)
		newInternal.ChildPageIDs = append([]uint64(nil), parent.ChildPageIDs[mid+1:]...)
		newInternal.ParentPageID = parent.ParentPageID

		parent.Keys = append([]uint64(nil), parent.Keys[:mid]...)
		parent.ChildPageIDs = append([]uint64(nil), parent.ChildPageIDs[:mid+1]...)

		for _, cid := range newInternal.ChildPageIDs {
			child, err := mgr.ReadPage(cid)
			if err != nil {
				return root, err
			}
			child.ParentPageID = newInternalID
			if err := mgr.WritePage(child); err != nil {
				return root, err
			}
		}

		if err := mgr.WritePage(parent); err != nil {
			return root, err
		}
		if err := mgr.WritePage(newInternal); err != nil {
			return root, err
		}

		leftID, rightID = parent.PageID, newInternalID
		sepKey = promoted
		parentID = parent.ParentPageID
	}
}

// Delete removes the row keyed by key from the tree rooted at root,
// repairing any underflow, and returns the (possibly new) root page id.
func Delete(mgr Manager, root uint64, key uint64) (uint64, error) {
	return DeleteWithOrder(mgr, root, key, DefaultOrder)
}

// DeleteWithOrder is Delete parameterized by order.
func DeleteWithOrder(mgr Manager, root uint64, key uint64, order int) (uint64, error) {
	leafID, err := FindLeafForKey(mgr, root, key)
	if err != nil {
		return root, err
	}
	leaf, err := mgr.ReadPage(leafID)
	if err != nil {
		return root, err
	}
	i := sort.Search(len(leaf.Keys), func(i int) bool { return leaf.Keys[i] >= key })
	if i >= len(leaf.Keys) || leaf.Keys[i] != key {
		return root, dberrors.NotFound("no row with key %d", key)
	}
	leaf.Keys = append(leaf.Keys[:i], leaf.Keys[i+1:]...)
	leaf.Values = append(leaf.Values[:i], leaf.Values[i+1:]...)

	return repairAfterDelete(mgr, root, leaf, order)
}

// DeleteBatch removes every key in keys (in descending order, so earlier
// removals never invalidate later indices within the same leaf) and
// returns the final root plus the count actually removed.
func DeleteBatch(mgr Manager, root uint64, keys []uint64) (uint64, int, error) {
	sorted := append([]uint64(nil), keys...)
	sort.Sort(sort.Reverse(uint64Slice(sorted)))
	removed := 0
	for _, k := range sorted {
		next, err := Delete(mgr, root, k)
		if err != nil {
			if dberrors.Is(err, dberrors.KindNotFound) {
				continue
			}
			return root, removed, err
		}
		root = next
		removed++
	}
	return root, removed, nil
}

type uint64Slice []uint64

func (s uint64Slice) Len() int           { return len(s) }
func (s uint64Slice) Less(i, j int) bool { return s[i] < s[j] }
func (s uint64Slice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// repairAfterDelete writes the (already-shrunk) leaf back, and if it has
// dropped below minKeys, borrows from a sibling or merges with one,
// recursing up through ancestor underflow and root collapse.
func repairAfterDelete(mgr Manager, root uint64, leaf *page.Page, order int) (uint64, error) {
	isRootNode := leaf.ParentPageID == page.NoPage
	if len(leaf.Keys) >= minKeys(order) || isRootNode {
		if err := mgr.WritePage(leaf); err != nil {
			return root, err
		}
		return root, nil
	}
	if err := mgr.WritePage(leaf); err != nil {
		return root, err
	}
	return repairNode(mgr, root, leaf.PageID, order)
}

// repairNode repairs underflow at nodeID (leaf or internal), recursing
// toward the root as merges propagate, and collapsing the root when it is
// left with a single child.
func repairNode(mgr Manager, root, nodeID uint64, order int) (uint64, error) {
	node, err := mgr.ReadPage(nodeID)
	if err != nil {
		return root, err
	}
	if node.ParentPageID == page.NoPage {
		if !node.IsLeaf && len(node.ChildPageIDs) == 1 {
			onlyChild, err := mgr.ReadPage(node.ChildPageIDs[0])
			if err != nil {
				return root, err
			}
			onlyChild.ParentPageID = page.NoPage
			if err := mgr.WritePage(onlyChild); err != nil {
				return root, err
			}
			return onlyChild.PageID, nil
		}
		return root, nil
	}

	parent, err := mgr.ReadPage(node.ParentPageID)
	if err != nil {
		return root, err
	}
	idx := indexOfChild(parent.ChildPageIDs, nodeID)
	if idx < 0 {
		return root, dberrors.InvalidOperation("btree: child %d not found in parent %d", nodeID, node.ParentPageID)
	}

	if idx > 0 {
		leftSib, err := mgr.ReadPage(parent.ChildPageIDs[idx-1])
		if err != nil {
			return root, err
		}
		if nodeKeyCount(leftSib) > minKeys(order) {
			return root, borrowFromLeft(mgr, parent, node, leftSib, idx, order)
		}
	}
	if idx < len(parent.ChildPageIDs)-1 {
		rightSib, err := mgr.ReadPage(parent.ChildPageIDs[idx+1])
		if err != nil {
			return root, err
		}
		if nodeKeyCount(rightSib) > minKeys(order) {
			return root, borrowFromRight(mgr, parent, node, rightSib, idx, order)
		}
	}

	// No sibling can lend a key: merge with a sibling.
	if idx > 0 {
		leftSib, err := mgr.ReadPage(parent.ChildPageIDs[idx-1])
		if err != nil {
			return root, err
		}
		return mergeAndRepair(mgr, root, parent, leftSib, node, idx-1, order)
	}
	rightSib, err := mgr.ReadPage(parent.ChildPageIDs[idx+1])
	if err != nil {
		return root, err
	}
	return mergeAndRepair(mgr, root, parent, node, rightSib, idx, order)
}

func nodeKeyCount(p *page.Page) int { return len(p.Keys) }

// borrowFromLeft moves the last entry of leftSib into node, through the
// parent separator at parent.Keys[idx-1].
func borrowFromLeft(mgr Manager, parent, node, leftSib *page.Page, idx, order int) error {
	if node.IsLeaf {
		n := len(leftSib.Keys) - 1
		borrowedKey, borrowedVal := leftSib.Keys[n], leftSib.Values[n]
		leftSib.Keys = leftSib.Keys[:n]
		leftSib.Values = leftSib.Values[:n]
		node.Keys = insertUint64At(node.Keys, 0, borrowedKey)
		node.Values = insertRowAt(node.Values, 0, borrowedVal)
		parent.Keys[idx-1] = node.Keys[0]
	} else {
		n := len(leftSib.Keys) - 1
		downKey := parent.Keys[idx-1]
		borrowedChild := leftSib.ChildPageIDs[len(leftSib.ChildPageIDs)-1]
		parent.Keys[idx-1] = leftSib.Keys[n]
		leftSib.Keys = leftSib.Keys[:n]
		leftSib.ChildPageIDs = leftSib.ChildPageIDs[:len(leftSib.ChildPageIDs)-1]
		node.Keys = insertUint64At(node.Keys, 0, downKey)
		node.ChildPageIDs = insertUint64At(node.ChildPageIDs, 0, borrowedChild)
		child, err := mgr.ReadPage(borrowedChild)
		if err != nil {
			return err
		}
		child.ParentPageID = node.PageID
		if err := mgr.WritePage(child); err != nil {
			return err
		}
	}
	if err := mgr.WritePage(leftSib); err != nil {
		return err
	}
	if err := mgr.WritePage(node); err != nil {
		return err
	}
	return mgr.WritePage(parent)
}

// borrowFromRight moves the first entry of rightSib into node, through the
// parent separator at parent.Keys[idx].
func borrowFromRight(mgr Manager, parent, node, rightSib *page.Page, idx, order int) error {
	if node.IsLeaf {
		borrowedKey, borrowedVal := rightSib.Keys[0], rightSib.Values[0]
		rightSib.Keys = rightSib.Keys[1:]
		rightSib.Values = rightSib.Values[1:]
		node.Keys = append(node.Keys, borrowedKey)
		node.Values = append(node.Values, borrowedVal)
		parent.Keys[idx] = rightSib.Keys[0]
	} else {
		downKey := parent.Keys[idx]
		borrowedChild := rightSib.ChildPageIDs[0]
		parent.Keys[idx] = rightSib.Keys[0]
		rightSib.Keys = rightSib.Keys[1:]
		rightSib.ChildPageIDs = rightSib.ChildPageIDs[1:]
		node.Keys = append(node.Keys, downKey)
		node.ChildPageIDs = append(node.ChildPageIDs, borrowedChild)
		child, err := mgr.ReadPage(borrowedChild)
		if err != nil {
			return err
		}
		child.ParentPageID = node.PageID
		if err := mgr.WritePage(child); err != nil {
			return err
		}
	}
	if err := mgr.WritePage(rightSib); err != nil {
		return err
	}
	if err := mgr.WritePage(node); err != nil {
		return err
	}
	return mgr.WritePage(parent)
}

// mergeAndRepair folds right into left (left keeps the lower page id),
// removes the separator at parent.Keys[sepIdx] and the child pointer to
// right, unregisters right if it was a leaf, writes left, and recurses to
// repair the parent if it has now underflowed.
func mergeAndRepair(mgr Manager, root uint64, parent, left, right *page.Page, sepIdx, order int) (uint64, error) {
	if left.IsLeaf {
		left.Keys = append(left.Keys, right.Keys...)
		left.Values = append(left.Values, right.Values...)
		left.NextLeafPageID = right.NextLeafPageID
	} else {
		downKey := parent.Keys[sepIdx]
		left.Keys = append(left.Keys, downKey)
		left.Keys = append(left.Keys, right.Keys...)
		left.ChildPageIDs = append(left.ChildPageIDs, right.ChildPageIDs...)
		for _, cid := range right.ChildPageIDs {
			child, err := mgr.ReadPage(cid)
			if err != nil {
				return root, err
			}
			child.ParentPageID = left.PageID
			if err := mgr.WritePage(child); err != nil {
				return root, err
			}
		}
	}

	parent.Keys = append(parent.Keys[:sepIdx], parent.Keys[sepIdx+1:]...)
	removeIdx := sepIdx + 1
	parent.ChildPageIDs = append(parent.ChildPageIDs[:removeIdx], parent.ChildPageIDs[removeIdx+1:]...)

	if err := mgr.WritePage(left); err != nil {
		return root, err
	}
	if left.IsLeaf {
		if err := mgr.UnregisterLeafPage(right.PageID); err != nil {
			return root, err
		}
	}
	if err := mgr.WritePage(parent); err != nil {
		return root, err
	}

	if parent.ParentPageID == page.NoPage {
		if len(parent.ChildPageIDs) == 1 {
			return repairNode(mgr, root, parent.PageID, order)
		}
		return root, nil
	}
	if len(parent.Keys) < minKeys(order) {
		return repairNode(mgr, root, parent.PageID, order)
	}
	return root, nil
}

// ── small slice helpers ─────────────────────────────────────────────────

func indexOfChild(children []uint64, id uint64) int {
	for i, c := range children {
		if c == id {
			return i
		}
	}
	return -1
}

func insertUint64At(s []uint64, i int, v uint64) []uint64 {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func insertRowAt(s []row.Row, i int, v row.Row) []row.Row {
	s = append(s, row.Row{})
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
