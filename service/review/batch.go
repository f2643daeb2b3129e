package review

import "slices"

// Batch is the ordered list of transactions decoded from one upload, in review order.
// It is immutable once received; a new upload replaces it wholesale.
type Batch struct {
	items []Transaction
}

// NewBatch copies transactions into a batch.
func NewBatch(transactions []Transaction) Batch {
	return Batch{items: slices.Clone(transactions)}
}

// Len returns the number of transactions.
func (b Batch) Len() int {
	return len(b.items)
}

// At returns the transaction at index i and whether i is in range.
func (b Batch) At(i int) (Transaction, bool) {
	if i < 0 || i >= len(b.items) {
		return Transaction{}, false
	}
	return b.items[i], true
}
