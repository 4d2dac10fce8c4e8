// Package csvstore writes generated tables as delimited files, one directory
// per dataset, and reads transaction tables back in batches for loaders.
package csvstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/txsim-bench-go/internal/domain"
)

// Table names, also used as file names (without extension).
const (
	TableCustomer    = "customer"
	TableTerminal    = "terminal"
	TableTransaction = "transaction"
)

// Tables lists every table a dataset directory holds.
var Tables = []string{TableCustomer, TableTerminal, TableTransaction}

// DateTimeLayout is the TX_DATETIME format.
const DateTimeLayout = "2006-01-02 15:04:05"

var (
	customerHeader    = []string{"CUSTOMER_ID", "x_customer_id", "y_customer_id", "mean_amount", "std_amount", "mean_nb_tx_per_day", "available_terminals", "nb_terminals"}
	terminalHeader    = []string{"TERMINAL_ID", "x_terminal_id", "y_terminal_id"}
	transactionHeader = []string{"TRANSACTION_ID", "TX_DATETIME", "CUSTOMER_ID", "TERMINAL_ID", "TX_AMOUNT", "TX_TIME_SECONDS", "TX_TIME_DAYS", "TX_FRAUD", "TX_FRAUD_SCENARIO"}
)

// Store lays datasets out under a root directory.
type Store struct {
	root string
}

// New creates a store rooted at dir.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Dir returns the directory of the named dataset.
func (s *Store) Dir(name string) string {
	return filepath.Join(s.root, name)
}

// Path returns the file of a table in the named dataset.
func (s *Store) Path(name, table string) string {
	return filepath.Join(s.Dir(name), table+".csv")
}

// Exists reports whether any table of the named dataset is on disk.
func (s *Store) Exists(name string) bool {
	for _, table := range Tables {
		if _, err := os.Stat(s.Path(name, table)); err == nil {
			return true
		}
	}
	return false
}

// Save writes the three tables of ds into the named dataset directory,
// creating it when needed, and returns the directory.
func (s *Store) Save(name string, ds *domain.Dataset) (string, error) {
	dir := s.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dataset dir: %w", err)
	}

	writers := map[string]func(io.Writer) error{
		TableCustomer:    func(w io.Writer) error { return WriteCustomers(w, ds.Customers) },
		TableTerminal:    func(w io.Writer) error { return WriteTerminals(w, ds.Terminals) },
		TableTransaction: func(w io.Writer) error { return WriteTransactions(w, ds.Transactions) },
	}
	for _, table := range Tables {
		if err := writeFile(s.Path(name, table), writers[table]); err != nil {
			return "", fmt.Errorf("write %s table: %w", table, err)
		}
	}
	return dir, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// WriteCustomers writes the customer table with its header.
func WriteCustomers(w io.Writer, customers []domain.CustomerProfile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(customerHeader); err != nil {
		return err
	}
	for _, c := range customers {
		err := cw.Write([]string{
			strconv.Itoa(c.ID),
			formatFloat(c.X),
			formatFloat(c.Y),
			formatFloat(c.MeanAmount),
			formatFloat(c.StdAmount),
			formatFloat(c.MeanTxPerDay),
			formatIDs(c.AvailableTerminals),
			strconv.Itoa(c.TerminalCount()),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTerminals writes the terminal table with its header.
func WriteTerminals(w io.Writer, terminals []domain.TerminalProfile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(terminalHeader); err != nil {
		return err
	}
	for _, t := range terminals {
		if err := cw.Write([]string{strconv.Itoa(t.ID), formatFloat(t.X), formatFloat(t.Y)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTransactions writes the transaction table with its header.
func WriteTransactions(w io.Writer, txs []domain.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(transactionHeader); err != nil {
		return err
	}
	for _, tx := range txs {
		err := cw.Write([]string{
			strconv.Itoa(tx.ID),
			tx.Timestamp.UTC().Format(DateTimeLayout),
			strconv.Itoa(tx.CustomerID),
			strconv.Itoa(tx.TerminalID),
			strconv.FormatFloat(tx.Amount, 'f', 2, 64),
			strconv.Itoa(tx.Seconds),
			strconv.Itoa(tx.Day),
			formatBool(tx.Fraud),
			strconv.Itoa(int(tx.Scenario)),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTransactions streams a transaction table, calling fn with batches of at
// most batchSize rows. The header is validated against the writer's.
func ReadTransactions(r io.Reader, batchSize int, fn func([]domain.Transaction) error) error {
	if batchSize <= 0 {
		return &domain.ErrValidation{Field: "batch_size", Message: "must be positive"}
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(transactionHeader)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	for i, name := range transactionHeader {
		if header[i] != name {
			return fmt.Errorf("unexpected column %d: got %q, want %q", i, header[i], name)
		}
	}

	batch := make([]domain.Transaction, 0, batchSize)
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read line %d: %w", line+1, err)
		}
		line++

		tx, err := parseTransaction(record)
		if err != nil {
			return fmt.Errorf("parse line %d: %w", line, err)
		}
		batch = append(batch, tx)

		if len(batch) == batchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([]domain.Transaction, 0, batchSize)
		}
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

func parseTransaction(record []string) (domain.Transaction, error) {
	var (
		tx   domain.Transaction
		errs []error
	)
	atoi := func(s string) int {
		v, err := strconv.Atoi(s)
		errs = append(errs, err)
		return v
	}

	tx.ID = atoi(record[0])
	ts, err := time.Parse(DateTimeLayout, record[1])
	errs = append(errs, err)
	tx.Timestamp = ts
	tx.CustomerID = atoi(record[2])
	tx.TerminalID = atoi(record[3])
	amount, err := strconv.ParseFloat(record[4], 64)
	errs = append(errs, err)
	tx.Amount = amount
	tx.Seconds = atoi(record[5])
	tx.Day = atoi(record[6])
	fraud := atoi(record[7])
	tx.Label(domain.FraudScenario(atoi(record[8])))

	if err := errors.Join(errs...); err != nil {
		return domain.Transaction{}, err
	}
	if tx.Fraud != (fraud == 1) {
		return domain.Transaction{}, fmt.Errorf("TX_FRAUD %d inconsistent with scenario %d", fraud, tx.Scenario)
	}
	return tx, nil
}
