package generator

import (
	"slices"
	"time"

	"github.com/boddenberg/txsim-bench-go/internal/domain"
)

// Assemble concatenates the per-customer rows (callers pass them in customer
// id order), stamps each row with start + Seconds, stable-sorts the table by
// timestamp and numbers the rows 0..len-1 in that order.
func Assemble(perCustomer [][]domain.Transaction, start time.Time) []domain.Transaction {
	total := 0
	for _, txs := range perCustomer {
		total += len(txs)
	}

	table := make([]domain.Transaction, 0, total)
	for _, txs := range perCustomer {
		table = append(table, txs...)
	}

	for i := range table {
		table[i].Timestamp = start.Add(time.Duration(table[i].Seconds) * time.Second)
	}

	slices.SortStableFunc(table, func(a, b domain.Transaction) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	for i := range table {
		table[i].ID = i
	}
	return table
}
