package generator

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/boddenberg/txsim-bench-go/internal/domain"

	"golang.org/x/sync/errgroup"
)

// FraudRules parameterizes the three injection scenarios.
type FraudRules struct {
	// Scenario 1: rows above this amount are fraudulent.
	HighAmountThreshold float64

	// Scenario 2: terminals drawn per day and how long they stay compromised.
	TerminalSampleSize int
	TerminalWindowDays int

	// Scenario 3: customers drawn per day, how long they stay compromised,
	// the share of their rows that is relabeled (1/CompromisedShare) and
	// the amount multiplier applied to those rows.
	CustomerSampleSize int
	CustomerWindowDays int
	CompromisedShare   int
	AmountMultiplier   float64
}

// DefaultFraudRules returns the benchmark's scenario parameters.
func DefaultFraudRules() FraudRules {
	return FraudRules{
		HighAmountThreshold: 220,
		TerminalSampleSize:  2,
		TerminalWindowDays:  28,
		CustomerSampleSize:  3,
		CustomerWindowDays:  14,
		CompromisedShare:    3,
		AmountMultiplier:    5,
	}
}

// LabelUpdate is one proposed mutation of a row. A zero AmountFactor leaves
// the amount untouched.
type LabelUpdate struct {
	Row          int
	Scenario     domain.FraudScenario
	AmountFactor float64
}

// ApplyUpdates applies updates in slice order; a later update to the same
// row overwrites the label of an earlier one.
func ApplyUpdates(table []domain.Transaction, updates []LabelUpdate) {
	for _, u := range updates {
		tx := &table[u.Row]
		if u.AmountFactor != 0 {
			tx.Amount = roundCents(tx.Amount * u.AmountFactor)
		}
		tx.Label(u.Scenario)
	}
}

// HighAmountUpdates proposes scenario 1 for every row above threshold.
func HighAmountUpdates(table []domain.Transaction, threshold float64) []LabelUpdate {
	var updates []LabelUpdate
	for i, tx := range table {
		if tx.Amount > threshold {
			updates = append(updates, LabelUpdate{Row: i, Scenario: domain.ScenarioHighAmount})
		}
	}
	return updates
}

// dayIndex lists row positions per day, each bucket in row order.
type dayIndex [][]int

func newDayIndex(table []domain.Transaction) dayIndex {
	maxDay := -1
	for _, tx := range table {
		maxDay = max(maxDay, tx.Day)
	}
	idx := make(dayIndex, maxDay+1)
	for i, tx := range table {
		idx[tx.Day] = append(idx[tx.Day], i)
	}
	return idx
}

// maxDay is the largest day present in the table, or 0 when it is empty.
func (idx dayIndex) maxDay() int {
	return max(len(idx)-1, 0)
}

// window returns the rows whose day lies in [from, from+days), by ascending
// day and then row order.
func (idx dayIndex) window(from, days int) []int {
	var rows []int
	for d := from; d < from+days && d < len(idx); d++ {
		rows = append(rows, idx[d]...)
	}
	return rows
}

// sampleDistinct picks min(k, len(ids)) distinct elements of ids with
// Floyd's algorithm.
func sampleDistinct(rng *rand.Rand, ids []int, k int) []int {
	n := len(ids)
	if k >= n {
		return append([]int(nil), ids...)
	}
	chosen := make(map[int]struct{}, k)
	picked := make([]int, 0, k)
	for j := n - k; j < n; j++ {
		t := rng.IntN(j + 1)
		if _, dup := chosen[t]; dup {
			t = j
		}
		chosen[t] = struct{}{}
		picked = append(picked, ids[t])
	}
	return picked
}

func toSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// CompromisedTerminalUpdates proposes scenario 2 for the given day: the
// terminals drawn with day as seed are compromised for the next
// rules.TerminalWindowDays days.
func CompromisedTerminalUpdates(table []domain.Transaction, idx dayIndex, terminalIDs []int, day int, rules FraudRules) []LabelUpdate {
	compromised := toSet(sampleDistinct(newRand(uint64(day), streamTerminalSample), terminalIDs, rules.TerminalSampleSize))

	var updates []LabelUpdate
	for _, row := range idx.window(day, rules.TerminalWindowDays) {
		if _, ok := compromised[table[row].TerminalID]; ok {
			updates = append(updates, LabelUpdate{Row: row, Scenario: domain.ScenarioCompromisedTerminal})
		}
	}
	return updates
}

// CompromisedCustomerUpdates proposes scenario 3 for the given day: among
// the rows of the customers drawn with day as seed within the next
// rules.CustomerWindowDays days, one in rules.CompromisedShare (rounded down)
// is picked, again seeded by day, and gets its amount multiplied.
func CompromisedCustomerUpdates(table []domain.Transaction, idx dayIndex, customerIDs []int, day int, rules FraudRules) []LabelUpdate {
	compromised := toSet(sampleDistinct(newRand(uint64(day), streamCustomerSample), customerIDs, rules.CustomerSampleSize))

	var candidates []int
	for _, row := range idx.window(day, rules.CustomerWindowDays) {
		if _, ok := compromised[table[row].CustomerID]; ok {
			candidates = append(candidates, row)
		}
	}

	share := rules.CompromisedShare
	if share <= 0 {
		share = 1
	}
	selected := sampleDistinct(newRand(uint64(day), streamTransactionSample), candidates, len(candidates)/share)

	updates := make([]LabelUpdate, 0, len(selected))
	for _, row := range selected {
		updates = append(updates, LabelUpdate{
			Row:          row,
			Scenario:     domain.ScenarioCompromisedCustomer,
			AmountFactor: rules.AmountMultiplier,
		})
	}
	return updates
}

// proposeByDay evaluates propose for every day in [0, days) concurrently.
// Proposals only read static columns (day, terminal, customer), so they do
// not depend on each other; the result is indexed by day.
func proposeByDay(ctx context.Context, days, workers int, propose func(day int) []LabelUpdate) ([][]LabelUpdate, error) {
	out := make([][]LabelUpdate, days)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit(workers))

	for day := range days {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			out[day] = propose(day)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func countFrauds(table []domain.Transaction) int {
	n := 0
	for _, tx := range table {
		if tx.Fraud {
			n++
		}
	}
	return n
}

// InjectFrauds resets every label and runs the three scenarios in order over
// table, mutating it in place. Within scenarios 2 and 3 the per-day updates
// are merged in ascending day order, so later days win. Amounts are not
// reset: table must be freshly assembled, since a second pass multiplies
// scenario 3 amounts again.
func InjectFrauds(ctx context.Context, table []domain.Transaction, customers []domain.CustomerProfile, terminals []domain.TerminalProfile, rules FraudRules, workers int) (domain.FraudReport, error) {
	for i := range table {
		table[i].Label(domain.ScenarioNone)
	}

	terminalIDs := make([]int, len(terminals))
	for i, t := range terminals {
		terminalIDs[i] = t.ID
	}
	customerIDs := make([]int, len(customers))
	for i, c := range customers {
		customerIDs[i] = c.ID
	}

	idx := newDayIndex(table)
	maxDay := idx.maxDay()

	steps := []func() error{
		func() error {
			ApplyUpdates(table, HighAmountUpdates(table, rules.HighAmountThreshold))
			return nil
		},
		func() error {
			proposals, err := proposeByDay(ctx, maxDay, workers, func(day int) []LabelUpdate {
				return CompromisedTerminalUpdates(table, idx, terminalIDs, day, rules)
			})
			if err != nil {
				return err
			}
			for _, updates := range proposals {
				ApplyUpdates(table, updates)
			}
			return nil
		},
		func() error {
			proposals, err := proposeByDay(ctx, maxDay, workers, func(day int) []LabelUpdate {
				return CompromisedCustomerUpdates(table, idx, customerIDs, day, rules)
			})
			if err != nil {
				return err
			}
			for _, updates := range proposals {
				ApplyUpdates(table, updates)
			}
			return nil
		},
	}

	report := domain.FraudReport{Scenarios: make([]domain.ScenarioReport, 0, len(steps))}
	flagged := 0
	for i, step := range steps {
		start := time.Now()
		if err := step(); err != nil {
			return domain.FraudReport{}, err
		}
		total := countFrauds(table)
		report.Scenarios = append(report.Scenarios, domain.ScenarioReport{
			Scenario:   domain.Scenarios[i],
			Introduced: total - flagged,
			Duration:   time.Since(start),
		})
		flagged = total
	}

	final := make(map[domain.FraudScenario]int, len(domain.Scenarios))
	for _, tx := range table {
		final[tx.Scenario]++
	}
	for i := range report.Scenarios {
		report.Scenarios[i].Final = final[report.Scenarios[i].Scenario]
	}
	return report, nil
}
