package generator

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/boddenberg/txsim-bench-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHighAmountUpdates(t *testing.T) {
	table := []domain.Transaction{
		{Amount: 250},
		{Amount: 220},
		{Amount: 219.99},
		{Amount: 220.01},
	}

	ApplyUpdates(table, HighAmountUpdates(table, DefaultFraudRules().HighAmountThreshold))

	assert.Equal(t, domain.ScenarioHighAmount, table[0].Scenario)
	assert.True(t, table[0].Fraud)
	assert.Equal(t, domain.ScenarioNone, table[1].Scenario)
	assert.False(t, table[1].Fraud)
	assert.Equal(t, domain.ScenarioNone, table[2].Scenario)
	assert.Equal(t, domain.ScenarioHighAmount, table[3].Scenario)
}

func TestApplyUpdates_LastWriterWins(t *testing.T) {
	table := []domain.Transaction{{Amount: 10}, {Amount: 20}}

	ApplyUpdates(table, []LabelUpdate{
		{Row: 0, Scenario: domain.ScenarioHighAmount},
		{Row: 1, Scenario: domain.ScenarioCompromisedTerminal},
		{Row: 0, Scenario: domain.ScenarioCompromisedCustomer, AmountFactor: 5},
		{Row: 1, Scenario: domain.ScenarioCompromisedCustomer, AmountFactor: 5},
		{Row: 1, Scenario: domain.ScenarioCompromisedCustomer, AmountFactor: 5},
	})

	assert.Equal(t, domain.ScenarioCompromisedCustomer, table[0].Scenario)
	assert.Equal(t, 50.0, table[0].Amount)
	assert.Equal(t, domain.ScenarioCompromisedCustomer, table[1].Scenario)
	assert.Equal(t, 500.0, table[1].Amount)
	for _, tx := range table {
		assert.Equal(t, tx.Scenario != domain.ScenarioNone, tx.Fraud)
	}
}

func TestSampleDistinct(t *testing.T) {
	ids := []int{10, 11, 12, 13, 14, 15, 16, 17}

	for seed := uint64(0); seed < 50; seed++ {
		picked := sampleDistinct(rand.New(rand.NewPCG(seed, 1)), ids, 3)
		require.Len(t, picked, 3)
		assert.Len(t, toSet(picked), 3, "duplicates in %v", picked)
		for _, id := range picked {
			assert.Contains(t, ids, id)
		}
	}

	assert.ElementsMatch(t, []int{1, 2}, sampleDistinct(rand.New(rand.NewPCG(0, 1)), []int{1, 2}, 5))
	assert.Empty(t, sampleDistinct(rand.New(rand.NewPCG(0, 1)), ids, 0))

	a := sampleDistinct(rand.New(rand.NewPCG(4, 1)), ids, 2)
	b := sampleDistinct(rand.New(rand.NewPCG(4, 1)), ids, 2)
	assert.Equal(t, a, b)
}

func TestCompromisedTerminalUpdates_Window(t *testing.T) {
	var table []domain.Transaction
	for day := 0; day < 40; day++ {
		table = append(table,
			domain.Transaction{Day: day, TerminalID: 7},
			domain.Transaction{Day: day, TerminalID: 8},
		)
	}
	idx := newDayIndex(table)

	// A single candidate terminal is always drawn.
	updates := CompromisedTerminalUpdates(table, idx, []int{7}, 5, DefaultFraudRules())

	require.Len(t, updates, 28)
	for _, u := range updates {
		tx := table[u.Row]
		assert.Equal(t, 7, tx.TerminalID)
		assert.GreaterOrEqual(t, tx.Day, 5)
		assert.Less(t, tx.Day, 33)
		assert.Equal(t, domain.ScenarioCompromisedTerminal, u.Scenario)
		assert.Zero(t, u.AmountFactor)
	}
}

func TestCompromisedCustomerUpdates_SelectsOneThird(t *testing.T) {
	var table []domain.Transaction
	for i := 0; i < 10; i++ {
		table = append(table, domain.Transaction{Day: i % 3, CustomerID: 0, Amount: 10})
	}
	table = append(table, domain.Transaction{Day: 0, CustomerID: 1, Amount: 10})
	idx := newDayIndex(table)

	updates := CompromisedCustomerUpdates(table, idx, []int{0}, 0, DefaultFraudRules())

	require.Len(t, updates, 3)
	rows := map[int]struct{}{}
	for _, u := range updates {
		rows[u.Row] = struct{}{}
		assert.Equal(t, 0, table[u.Row].CustomerID)
		assert.Equal(t, domain.ScenarioCompromisedCustomer, u.Scenario)
		assert.Equal(t, 5.0, u.AmountFactor)
	}
	assert.Len(t, rows, 3)

	again := CompromisedCustomerUpdates(table, idx, []int{0}, 0, DefaultFraudRules())
	assert.Equal(t, updates, again)
}

func TestInjectFrauds_PrecedenceAndAccounting(t *testing.T) {
	table := []domain.Transaction{
		{ID: 0, Day: 0, CustomerID: 0, TerminalID: 0, Amount: 300},
		{ID: 1, Day: 1, CustomerID: 0, TerminalID: 0, Amount: 10},
		{ID: 2, Day: 2, CustomerID: 0, TerminalID: 0, Amount: 10},
	}
	customers := []domain.CustomerProfile{{ID: 0}}
	terminals := []domain.TerminalProfile{{ID: 0}}

	report, err := InjectFrauds(context.Background(), table, customers, terminals, DefaultFraudRules(), 2)
	require.NoError(t, err)

	// Scenario 2 relabels the high-amount row; scenario 3 then picks one of
	// the three rows on day 0 and nothing on day 1 (2/3 rounds down).
	require.Len(t, report.Scenarios, 3)
	assert.Equal(t, domain.ScenarioReport{Scenario: domain.ScenarioHighAmount, Introduced: 1, Final: 0}, withoutDuration(report.Scenarios[0]))
	assert.Equal(t, domain.ScenarioReport{Scenario: domain.ScenarioCompromisedTerminal, Introduced: 2, Final: 2}, withoutDuration(report.Scenarios[1]))
	assert.Equal(t, domain.ScenarioReport{Scenario: domain.ScenarioCompromisedCustomer, Introduced: 0, Final: 1}, withoutDuration(report.Scenarios[2]))
	assert.Equal(t, 3, report.TotalFrauds())

	multiplied := 0
	for _, tx := range table {
		assert.True(t, tx.Fraud)
		if tx.Scenario == domain.ScenarioCompromisedCustomer {
			multiplied++
			assert.Contains(t, []float64{1500, 50}, tx.Amount)
		}
	}
	assert.Equal(t, 1, multiplied)
}

func TestInjectFrauds_ResetsLabelsAndHandlesEmptyTable(t *testing.T) {
	report, err := InjectFrauds(context.Background(), nil, nil, nil, DefaultFraudRules(), 1)
	require.NoError(t, err)
	assert.Zero(t, report.TotalFrauds())

	table := []domain.Transaction{{Amount: 10, Fraud: true, Scenario: domain.ScenarioCompromisedTerminal}}
	_, err = InjectFrauds(context.Background(), table, nil, nil, DefaultFraudRules(), 1)
	require.NoError(t, err)
	assert.False(t, table[0].Fraud)
	assert.Equal(t, domain.ScenarioNone, table[0].Scenario)
}

func TestInjectFrauds_FreshTablesAreReproducible(t *testing.T) {
	fresh := func() []domain.Transaction {
		return []domain.Transaction{
			{ID: 0, Day: 0, CustomerID: 0, TerminalID: 1, Amount: 40},
			{ID: 1, Day: 0, CustomerID: 0, TerminalID: 1, Amount: 20},
			{ID: 2, Day: 1, CustomerID: 0, TerminalID: 1, Amount: 30},
		}
	}
	customers := []domain.CustomerProfile{{ID: 0}}
	terminals := []domain.TerminalProfile{{ID: 1}}
	rules := DefaultFraudRules()
	rules.TerminalSampleSize = 0

	first := fresh()
	_, err := InjectFrauds(context.Background(), first, customers, terminals, rules, 1)
	require.NoError(t, err)
	second := fresh()
	_, err = InjectFrauds(context.Background(), second, customers, terminals, rules, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Amounts are left as scenario 3 wrote them, so a second pass on the
	// same table compounds the multiplier.
	before := 0.0
	for _, tx := range first {
		before += tx.Amount
	}
	require.Greater(t, before, 90.0)
	_, err = InjectFrauds(context.Background(), first, customers, terminals, rules, 1)
	require.NoError(t, err)
	after := 0.0
	for _, tx := range first {
		after += tx.Amount
	}
	assert.Greater(t, after, before)
}

func withoutDuration(r domain.ScenarioReport) domain.ScenarioReport {
	r.Duration = 0
	return r
}
