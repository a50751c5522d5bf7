package store

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"github.com/ksred/tradeshield-api/internal/types"
)

// indexEntry is one pending order inside a trigger group. Entries order by
// trigger rate ascending; seq breaks rate ties in insertion order so equal
// rates stay FIFO.
type indexEntry struct {
	OrderID uint64
	Rate    decimal.Decimal
	seq     uint64
}

func lessByRateThenSeq(a, b indexEntry) bool {
	if !a.Rate.Equal(b.Rate) {
		return a.Rate.LessThan(b.Rate)
	}
	return a.seq < b.seq
}

// Group is one partition of the trigger index. All orders in a group share
// the same (position, order type, base denom, quote denom), which is what
// makes a single scalar rate comparison a total order.
type Group struct {
	Key        string
	BaseDenom  string
	QuoteDenom string
	Kind       types.OrderKind
	tree       *btree.BTreeG[indexEntry]
}

// TriggerIndex is the sorted secondary structure over pending non-market
// orders. It is not safe for concurrent use; the owning store serializes
// access.
type TriggerIndex struct {
	groups  map[string]*Group
	nextSeq uint64
}

func NewTriggerIndex() *TriggerIndex {
	return &TriggerIndex{groups: make(map[string]*Group)}
}

// Insert places the order id into its group, keeping the group ordered by
// rate ascending with FIFO tie-break. The group is created on first use.
func (ti *TriggerIndex) Insert(key, baseDenom, quoteDenom string, kind types.OrderKind, orderID uint64, rate decimal.Decimal) {
	g, ok := ti.groups[key]
	if !ok {
		g = &Group{
			Key:        key,
			BaseDenom:  baseDenom,
			QuoteDenom: quoteDenom,
			Kind:       kind,
			tree:       btree.NewBTreeGOptions(lessByRateThenSeq, btree.Options{NoLocks: true}),
		}
		ti.groups[key] = g
	}
	ti.nextSeq++
	g.tree.Set(indexEntry{OrderID: orderID, Rate: rate, seq: ti.nextSeq})
}

// Remove deletes the order id from its group. The id is located from the
// lower bound of its rate, scanning forward across rate ties until the
// exact id is found. An absent id is a consistency-check failure, not an
// expected outcome.
func (ti *TriggerIndex) Remove(key string, orderID uint64, rate decimal.Decimal) error {
	g, ok := ti.groups[key]
	if !ok {
		return types.ErrIndexNotFound
	}
	var found *indexEntry
	g.tree.Ascend(indexEntry{Rate: rate, seq: 0}, func(e indexEntry) bool {
		if !e.Rate.Equal(rate) {
			return false
		}
		if e.OrderID == orderID {
			found = &e
			return false
		}
		return true
	})
	if found == nil {
		return types.ErrIndexNotFound
	}
	g.tree.Delete(*found)
	if g.tree.Len() == 0 {
		delete(ti.groups, key)
	}
	return nil
}

// Range returns the group's order ids in trigger order (rate ascending,
// FIFO within equal rates). Read-only; the dispatcher iterates this.
func (ti *TriggerIndex) Range(key string) []uint64 {
	g, ok := ti.groups[key]
	if !ok {
		return nil
	}
	ids := make([]uint64, 0, g.tree.Len())
	g.tree.Scan(func(e indexEntry) bool {
		ids = append(ids, e.OrderID)
		return true
	})
	return ids
}

// Groups returns every non-empty group sorted by key for deterministic
// iteration
func (ti *TriggerIndex) Groups() []*Group {
	keys := make([]string, 0, len(ti.groups))
	for k := range ti.groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Group, 0, len(keys))
	for _, k := range keys {
		out = append(out, ti.groups[k])
	}
	return out
}

// Contains reports whether the order id is present in the group
func (ti *TriggerIndex) Contains(key string, orderID uint64) bool {
	g, ok := ti.groups[key]
	if !ok {
		return false
	}
	found := false
	g.tree.Scan(func(e indexEntry) bool {
		if e.OrderID == orderID {
			found = true
			return false
		}
		return true
	})
	return found
}

// Len returns the number of pending entries in the group
func (ti *TriggerIndex) Len(key string) int {
	g, ok := ti.groups[key]
	if !ok {
		return 0
	}
	return g.tree.Len()
}
