package generator

import (
	"context"
	"math"
	"slices"

	"github.com/boddenberg/txsim-bench-go/internal/domain"

	"golang.org/x/sync/errgroup"
)

func distance(x1, y1, x2, y2 float64) float64 {
	dx := x1 - x2
	dy := y1 - y2
	return math.Sqrt(dx*dx + dy*dy)
}

// TerminalsWithinRadius returns the ids of terminals strictly closer than
// radius to the customer, in terminal index order.
func TerminalsWithinRadius(c domain.CustomerProfile, terminals []domain.TerminalProfile, radius float64) []int {
	ids := []int{}
	for _, t := range terminals {
		if distance(c.X, c.Y, t.X, t.Y) < radius {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

type cellKey struct{ col, row int }

// GridIndex buckets terminals into square cells whose side equals the query
// radius, so a query only inspects the 3x3 cells around the customer.
// Within returns exactly what TerminalsWithinRadius returns.
type GridIndex struct {
	radius    float64
	terminals []domain.TerminalProfile
	cells     map[cellKey][]int
}

// NewGridIndex indexes terminals for queries with the given radius.
func NewGridIndex(terminals []domain.TerminalProfile, radius float64) *GridIndex {
	g := &GridIndex{
		radius:    radius,
		terminals: terminals,
		cells:     make(map[cellKey][]int),
	}
	for i, t := range terminals {
		k := g.key(t.X, t.Y)
		g.cells[k] = append(g.cells[k], i)
	}
	return g
}

func (g *GridIndex) key(x, y float64) cellKey {
	return cellKey{
		col: int(math.Floor(x / g.radius)),
		row: int(math.Floor(y / g.radius)),
	}
}

// Within returns the ids of terminals strictly closer than the index radius
// to (x, y), in terminal index order.
func (g *GridIndex) Within(x, y float64) []int {
	center := g.key(x, y)

	var hits []int
	for dc := -1; dc <= 1; dc++ {
		for dr := -1; dr <= 1; dr++ {
			for _, i := range g.cells[cellKey{col: center.col + dc, row: center.row + dr}] {
				t := g.terminals[i]
				if distance(x, y, t.X, t.Y) < g.radius {
					hits = append(hits, i)
				}
			}
		}
	}
	slices.Sort(hits)

	ids := make([]int, len(hits))
	for j, i := range hits {
		ids[j] = g.terminals[i].ID
	}
	return ids
}

// AssignTerminals fills AvailableTerminals for every customer. Customers are
// independent, so they are processed concurrently; each goroutine writes only
// its own element. The grid index is used once len(terminals) reaches
// gridThreshold (a threshold <= 0 disables it).
func AssignTerminals(ctx context.Context, customers []domain.CustomerProfile, terminals []domain.TerminalProfile, radius float64, gridThreshold, workers int) error {
	within := func(c domain.CustomerProfile) []int {
		return TerminalsWithinRadius(c, terminals, radius)
	}
	if gridThreshold > 0 && len(terminals) >= gridThreshold {
		idx := NewGridIndex(terminals, radius)
		within = func(c domain.CustomerProfile) []int {
			return idx.Within(c.X, c.Y)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit(workers))

	for i := range customers {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			customers[i].AvailableTerminals = within(customers[i])
			return nil
		})
	}
	return g.Wait()
}

func workerLimit(workers int) int {
	if workers <= 0 {
		return 1
	}
	return workers
}
