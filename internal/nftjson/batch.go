package nftjson

import "encoding/json"

// Batch accumulates add/delete operations to be applied to the kernel in a
// single `nft -j -f -` invocation (spec.md §4.2 "apply(batch)"). Operations
// execute in the order they were added.
type Batch struct {
	ops []wireEntry
}

// NewBatch returns an empty batch.
func NewBatch() *Batch { return &Batch{} }

// Add appends an "add" operation for a table, chain or rule.
func (b *Batch) Add(obj Object) {
	b.ops = append(b.ops, wireEntry{Add: &obj})
}

// Delete appends a "delete" operation. Deleting a rule requires Rule.Handle
// to be set, per spec.md §4.2 ("the delete batch then references that
// handle").
func (b *Batch) Delete(obj Object) {
	b.ops = append(b.ops, wireEntry{Delete: &obj})
}

// Empty reports whether the batch has no operations.
func (b *Batch) Empty() bool { return len(b.ops) == 0 }

// Each calls fn once per operation in order, reporting whether it is an add
// (true) or a delete (false). Lets a fake Executor apply a batch against an
// in-memory ruleset without re-parsing the wire JSON it would produce.
func (b *Batch) Each(fn func(add bool, obj Object)) {
	for _, op := range b.ops {
		if op.Add != nil {
			fn(true, *op.Add)
		} else if op.Delete != nil {
			fn(false, *op.Delete)
		}
	}
}

// MarshalJSON renders the batch as the {"nftables": [...]} envelope the nft
// binary expects on stdin.
func (b *Batch) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireDoc{Nftables: b.ops})
}
