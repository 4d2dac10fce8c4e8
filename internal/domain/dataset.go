package domain

import "time"

// ============================================================
// Generation input
// ============================================================

// GenerationParams is the externally supplied configuration of one run.
type GenerationParams struct {
	Customers    int       `json:"customers"`
	Terminals    int       `json:"terminals"`
	Days         int       `json:"days"`
	StartDate    time.Time `json:"start_date"`
	Radius       float64   `json:"radius"`
	CustomerSeed uint64    `json:"customer_seed"`
	TerminalSeed uint64    `json:"terminal_seed"`
}

// Validate reports the first precondition violation, if any.
func (p GenerationParams) Validate() error {
	switch {
	case p.Customers < 0:
		return &ErrValidation{Field: "customers", Message: "must not be negative"}
	case p.Terminals < 0:
		return &ErrValidation{Field: "terminals", Message: "must not be negative"}
	case p.Days <= 0:
		return &ErrValidation{Field: "days", Message: "must be positive"}
	case !(p.Radius > 0):
		return &ErrValidation{Field: "radius", Message: "must be positive"}
	case p.StartDate.IsZero():
		return &ErrValidation{Field: "start_date", Message: "is required"}
	}
	return nil
}

// DatasetTemplate names a dataset size and its generation counts.
type DatasetTemplate struct {
	Size      int `json:"size"`
	Customers int `json:"customers"`
	Terminals int `json:"terminals"`
	Days      int `json:"days"`
}

// ============================================================
// Generation output
// ============================================================

// Dataset holds the three tables produced by one generation run.
type Dataset struct {
	Customers    []CustomerProfile
	Terminals    []TerminalProfile
	Transactions []Transaction
	Fraud        FraudReport
}

// FraudReport summarises the injection pass.
type FraudReport struct {
	Scenarios []ScenarioReport `json:"scenarios"`
}

// ScenarioReport carries two counts per scenario. Introduced is the growth
// of the total fraud count while the scenario ran, so rows relabeled by a
// later scenario stay attributed to the earlier one. Final counts rows whose
// final label is this scenario.
type ScenarioReport struct {
	Scenario   FraudScenario `json:"scenario"`
	Introduced int           `json:"introduced"`
	Final      int           `json:"final"`
	Duration   time.Duration `json:"duration_ns"`
}

// TotalFrauds returns the number of fraud-labeled rows after injection.
func (r FraudReport) TotalFrauds() int {
	total := 0
	for _, s := range r.Scenarios {
		total += s.Final
	}
	return total
}

// DatasetSummary describes a generated dataset without its rows.
type DatasetSummary struct {
	ID           string           `json:"id"`
	Params       GenerationParams `json:"params"`
	Customers    int              `json:"customers"`
	Terminals    int              `json:"terminals"`
	Transactions int              `json:"transactions"`
	Frauds       int              `json:"frauds"`
	Fraud        FraudReport      `json:"fraud"`
	Location     string           `json:"location"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Summarize builds the summary of d.
func (d *Dataset) Summarize(id string, params GenerationParams, location string) DatasetSummary {
	return DatasetSummary{
		ID:           id,
		Params:       params,
		Customers:    len(d.Customers),
		Terminals:    len(d.Terminals),
		Transactions: len(d.Transactions),
		Frauds:       d.Fraud.TotalFrauds(),
		Fraud:        d.Fraud,
		Location:     location,
		CreatedAt:    time.Now().UTC(),
	}
}
