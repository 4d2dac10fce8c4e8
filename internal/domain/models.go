// Package domain defines the entities produced by the dataset generator.
// These models are independent of storage and transport and represent the
// canonical tables handed to the CSV writer, the graph loader and the API.
package domain

import "time"

// ============================================================
// Profiles
// ============================================================

// CustomerProfile describes a simulated customer. It is immutable once the
// proximity step has filled AvailableTerminals.
type CustomerProfile struct {
	ID                 int     `json:"customer_id"`
	X                  float64 `json:"x_customer_id"`
	Y                  float64 `json:"y_customer_id"`
	MeanAmount         float64 `json:"mean_amount"`
	StdAmount          float64 `json:"std_amount"`
	MeanTxPerDay       float64 `json:"mean_nb_tx_per_day"`
	AvailableTerminals []int   `json:"available_terminals"`
}

// TerminalCount returns the number of terminals within the customer's radius.
func (c CustomerProfile) TerminalCount() int {
	return len(c.AvailableTerminals)
}

// TerminalProfile describes a merchant terminal.
type TerminalProfile struct {
	ID int     `json:"terminal_id"`
	X  float64 `json:"x_terminal_id"`
	Y  float64 `json:"y_terminal_id"`
}

// ============================================================
// Transactions
// ============================================================

// FraudScenario identifies which injection scenario last labeled a transaction.
type FraudScenario int

const (
	ScenarioNone                FraudScenario = 0
	ScenarioHighAmount          FraudScenario = 1
	ScenarioCompromisedTerminal FraudScenario = 2
	ScenarioCompromisedCustomer FraudScenario = 3
)

// Scenarios lists the injection scenarios in execution order.
var Scenarios = []FraudScenario{
	ScenarioHighAmount,
	ScenarioCompromisedTerminal,
	ScenarioCompromisedCustomer,
}

func (s FraudScenario) String() string {
	switch s {
	case ScenarioNone:
		return "none"
	case ScenarioHighAmount:
		return "high_amount"
	case ScenarioCompromisedTerminal:
		return "compromised_terminal"
	case ScenarioCompromisedCustomer:
		return "compromised_customer"
	default:
		return "unknown"
	}
}

// Transaction is a single simulated payment. ID and Timestamp are zero until
// the assembler has sorted the full table.
type Transaction struct {
	ID         int           `json:"transaction_id"`
	Timestamp  time.Time     `json:"tx_datetime"`
	CustomerID int           `json:"customer_id"`
	TerminalID int           `json:"terminal_id"`
	Amount     float64       `json:"tx_amount"`
	Day        int           `json:"tx_time_days"`
	Seconds    int           `json:"tx_time_seconds"`
	Fraud      bool          `json:"tx_fraud"`
	Scenario   FraudScenario `json:"tx_fraud_scenario"`
}

// Label sets the fraud scenario and keeps Fraud consistent with it.
func (t *Transaction) Label(s FraudScenario) {
	t.Scenario = s
	t.Fraud = s != ScenarioNone
}
