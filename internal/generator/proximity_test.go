package generator

import (
	"context"
	"testing"

	"github.com/boddenberg/txsim-bench-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalsWithinRadius(t *testing.T) {
	terminals := []domain.TerminalProfile{
		{ID: 0, X: 10, Y: 10},
		{ID: 1, X: 13, Y: 14}, // exactly 5 away
		{ID: 2, X: 12, Y: 12},
		{ID: 3, X: 50, Y: 50},
		{ID: 4, X: 9, Y: 10},
	}
	c := domain.CustomerProfile{X: 10, Y: 10}

	assert.Equal(t, []int{0, 2, 4}, TerminalsWithinRadius(c, terminals, 5))
	assert.Equal(t, []int{}, TerminalsWithinRadius(domain.CustomerProfile{X: 90, Y: 90}, terminals, 5))
}

func TestGridIndex_MatchesBruteForce(t *testing.T) {
	terminals, err := GenerateTerminalProfiles(3000, 1)
	require.NoError(t, err)
	customers, err := GenerateCustomerProfiles(400, 0)
	require.NoError(t, err)

	for _, radius := range []float64{0.5, 5, 17.3, 150} {
		idx := NewGridIndex(terminals, radius)
		for _, c := range customers {
			require.Equal(t,
				TerminalsWithinRadius(c, terminals, radius),
				idx.Within(c.X, c.Y),
				"customer %d radius %v", c.ID, radius,
			)
		}
	}
}

func TestAssignTerminals_GridAndBruteForceAgree(t *testing.T) {
	terminals, err := GenerateTerminalProfiles(500, 1)
	require.NoError(t, err)

	brute, err := GenerateCustomerProfiles(100, 0)
	require.NoError(t, err)
	grid, err := GenerateCustomerProfiles(100, 0)
	require.NoError(t, err)

	require.NoError(t, AssignTerminals(context.Background(), brute, terminals, 5, 0, 4))
	require.NoError(t, AssignTerminals(context.Background(), grid, terminals, 5, 1, 4))

	assert.Equal(t, brute, grid)
}

func TestAssignTerminals_NoTerminalsInRange(t *testing.T) {
	customers := []domain.CustomerProfile{{ID: 0, X: 0, Y: 0}}
	terminals := []domain.TerminalProfile{{ID: 0, X: 99, Y: 99}}

	require.NoError(t, AssignTerminals(context.Background(), customers, terminals, 5, 0, 1))
	assert.Equal(t, 0, customers[0].TerminalCount())
}

func TestAssignTerminals_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	customers, err := GenerateCustomerProfiles(10, 0)
	require.NoError(t, err)

	err = AssignTerminals(ctx, customers, nil, 5, 0, 2)
	assert.ErrorIs(t, err, context.Canceled)
}
