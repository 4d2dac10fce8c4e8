package generator

import (
	"testing"

	"github.com/boddenberg/txsim-bench-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCustomerProfiles_Deterministic(t *testing.T) {
	a, err := GenerateCustomerProfiles(200, 0)
	require.NoError(t, err)
	b, err := GenerateCustomerProfiles(200, 0)
	require.NoError(t, err)

	assert.Equal(t, a, b)

	c, err := GenerateCustomerProfiles(200, 7)
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "a different seed should move the customers")
}

func TestGenerateCustomerProfiles_Ranges(t *testing.T) {
	customers, err := GenerateCustomerProfiles(500, 0)
	require.NoError(t, err)
	require.Len(t, customers, 500)

	for i, c := range customers {
		assert.Equal(t, i, c.ID)
		assert.GreaterOrEqual(t, c.X, 0.0)
		assert.Less(t, c.X, areaSize)
		assert.GreaterOrEqual(t, c.Y, 0.0)
		assert.Less(t, c.Y, areaSize)
		assert.GreaterOrEqual(t, c.MeanAmount, minMeanAmount)
		assert.Less(t, c.MeanAmount, maxMeanAmount)
		assert.Equal(t, c.MeanAmount/2, c.StdAmount)
		assert.GreaterOrEqual(t, c.MeanTxPerDay, 0.0)
		assert.Less(t, c.MeanTxPerDay, maxMeanTxPerDay)
		assert.Empty(t, c.AvailableTerminals)
	}
}

func TestGenerateTerminalProfiles(t *testing.T) {
	a, err := GenerateTerminalProfiles(300, 1)
	require.NoError(t, err)
	b, err := GenerateTerminalProfiles(300, 1)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	for i, term := range a {
		assert.Equal(t, i, term.ID)
		assert.GreaterOrEqual(t, term.X, 0.0)
		assert.Less(t, term.X, areaSize)
		assert.GreaterOrEqual(t, term.Y, 0.0)
		assert.Less(t, term.Y, areaSize)
	}
}

func TestGenerateProfiles_NegativeCount(t *testing.T) {
	_, err := GenerateCustomerProfiles(-1, 0)
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "customers", verr.Field)

	_, err = GenerateTerminalProfiles(-3, 1)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "terminals", verr.Field)
}

func TestGenerateProfiles_Empty(t *testing.T) {
	customers, err := GenerateCustomerProfiles(0, 0)
	require.NoError(t, err)
	assert.Empty(t, customers)
}
