package generator

import (
	"context"
	"math"

	"github.com/boddenberg/txsim-bench-go/internal/domain"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	secondsPerDay = 86400

	// Transaction times cluster around noon.
	meanTimeOfDay = secondsPerDay / 2
	stdTimeOfDay  = 20000
)

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// SimulateCustomer draws numberOfDays days of transactions for c. Both of its
// generators are seeded with the customer id, so the output does not depend
// on which other customers are simulated or in what order.
//
// Candidates whose time of day falls outside [0, 86400) are dropped, not
// redrawn. The returned rows carry Day, Seconds, CustomerID, TerminalID and
// Amount; ids and timestamps are assigned by Assemble.
func SimulateCustomer(c domain.CustomerProfile, numberOfDays int) []domain.Transaction {
	if len(c.AvailableTerminals) == 0 {
		return nil
	}

	seed := uint64(c.ID)
	src := newSource(seed, streamDraws)
	choice := newRand(seed, streamTerminalChoice)

	perDay := distuv.Poisson{Lambda: c.MeanTxPerDay, Src: src}
	timeOfDay := distuv.Normal{Mu: meanTimeOfDay, Sigma: stdTimeOfDay, Src: src}
	amount := distuv.Normal{Mu: c.MeanAmount, Sigma: c.StdAmount, Src: src}
	fallback := distuv.Uniform{Min: 0, Max: 2 * c.MeanAmount, Src: src}

	var txs []domain.Transaction
	for day := 0; day < numberOfDays; day++ {
		n := int(perDay.Rand())
		for range n {
			offset := timeOfDay.Rand()
			if offset < 0 || offset >= secondsPerDay {
				continue
			}

			a := amount.Rand()
			if a < 0 {
				a = fallback.Rand()
			}

			terminal := c.AvailableTerminals[choice.IntN(len(c.AvailableTerminals))]
			txs = append(txs, domain.Transaction{
				CustomerID: c.ID,
				TerminalID: terminal,
				Amount:     roundCents(a),
				Day:        day,
				Seconds:    int(offset) + day*secondsPerDay,
			})
		}
	}
	return txs
}

// SimulateAll simulates every customer concurrently. Each customer's rows are
// written to its own slot, and the slots are returned in the order of
// customers.
func SimulateAll(ctx context.Context, customers []domain.CustomerProfile, numberOfDays, workers int) ([][]domain.Transaction, error) {
	out := make([][]domain.Transaction, len(customers))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit(workers))

	for i := range customers {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			out[i] = SimulateCustomer(customers[i], numberOfDays)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
