// Row-level mutation operators (§4.7): these sit above the tree
// algorithms in btree.go — update by primary key, and predicate-driven
// bulk update/delete that find matching rows by iterating every leaf
// listed in the registry rather than by a key search.
package btree

import (
	"sort"

	"github.com/bambang-db/bambang/internal/predicate"
	"github.com/bambang-db/bambang/internal/row"
)

// UpdateByKey descends to key's leaf and replaces its row in place,
// reporting whether the key existed. A row count or column-type change is
// the caller's responsibility to validate against the schema first.
func UpdateByKey(mgr Manager, root uint64, key uint64, newRow row.Row) (bool, error) {
	leafID, err := FindLeafForKey(mgr, root, key)
	if err != nil {
		return false, err
	}
	leaf, err := mgr.ReadPage(leafID)
	if err != nil {
		return false, err
	}
	i := searchKey(leaf.Keys, key)
	if i < 0 {
		return false, nil
	}
	leaf.Values[i] = newRow
	leaf.IsDirty = true
	if err := mgr.WritePage(leaf); err != nil {
		return false, err
	}
	return true, nil
}

func searchKey(keys []uint64, key uint64) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if keys[mid] < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(keys) && keys[lo] == key {
		return lo
	}
	return -1
}

// UpdatePredicate scans every leaf in leafIDs (typically the full registry
// listing), rewrites rows where pred evaluates true via mutateFn, and
// writes only the pages that actually changed. Returns the number of rows
// updated.
func UpdatePredicate(mgr Manager, leafIDs []uint64, pred *predicate.Compiled, mutateFn func(row.Row) row.Row) (int, error) {
	updated := 0
	for _, id := range leafIDs {
		leaf, err := mgr.ReadPage(id)
		if err != nil {
			return updated, err
		}
		changed := false
		for i, r := range leaf.Values {
			if !pred.Eval(r) {
				continue
			}
			leaf.Values[i] = mutateFn(r)
			changed = true
			updated++
		}
		if changed {
			leaf.IsDirty = true
			if err := mgr.WritePage(leaf); err != nil {
				return updated, err
			}
		}
	}
	return updated, nil
}

// DeletePredicate scans every leaf in leafIDs and collects the keys of
// rows matching pred, then removes those keys one at a time in descending
// key order through DeleteWithOrder, so each removal descends the current
// tree and repairs any underflow (borrow, merge, root collapse) before the
// next one. Returns the final root id and the count of rows removed.
func DeletePredicate(mgr Manager, root uint64, leafIDs []uint64, pred *predicate.Compiled) (uint64, int, error) {
	return DeletePredicateWithOrder(mgr, root, leafIDs, pred, DefaultOrder)
}

// DeletePredicateWithOrder is DeletePredicate parameterized by order.
func DeletePredicateWithOrder(mgr Manager, root uint64, leafIDs []uint64, pred *predicate.Compiled, order int) (uint64, int, error) {
	deleted := 0
	var matchKeys []uint64
	for _, id := range leafIDs {
		leaf, err := mgr.ReadPage(id)
		if err != nil {
			return root, deleted, err
		}
		for i, r := range leaf.Values {
			if pred.Eval(r) {
				matchKeys = append(matchKeys, leaf.Keys[i])
			}
		}
	}
	sort.Sort(sort.Reverse(uint64Slice(matchKeys)))
	for _, key := range matchKeys {
		newRoot, err := DeleteWithOrder(mgr, root, key, order)
		if err != nil {
			return root, deleted, err
		}
		root = newRoot
		deleted++
	}
	return root, deleted, nil
}
