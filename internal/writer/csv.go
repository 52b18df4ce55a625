// Package writer turns extracted transactions into the downstream file
// layouts: the canonical CSV and an Excel workbook.
package writer

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// csvRow is one line of the canonical layout: ISO date, description,
// signed amount and the running balance when the statement prints one.
type csvRow struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	Balance     string `csv:"balance"`
}

// CSVWriter writes transactions in the canonical CSV layout: a header row,
// UTF-8 without BOM and \n line endings.
type CSVWriter struct{}

// WriteToFile writes transactions to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, txns []models.Transaction) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	if err := w.Write(f, txns); err != nil {
		return err
	}
	return f.Close()
}

// Write writes transactions in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, txns []models.Transaction) error {
	rows := make([]*csvRow, 0, len(txns))
	for _, txn := range txns {
		rows = append(rows, &csvRow{
			Date:        txn.Date.Format(models.DateLayout),
			Description: txn.Description,
			Amount:      formatAmount(txn.Amount),
			Balance:     formatBalance(txn.Balance),
		})
	}
	if err := gocsv.Marshal(&rows, out); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// ReadCSV reads back a file in the canonical layout. Only the written
// columns survive the trip.
func ReadCSV(in io.Reader) ([]models.Transaction, error) {
	var rows []*csvRow
	if err := gocsv.Unmarshal(in, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	txns := make([]models.Transaction, 0, len(rows))
	for i, row := range rows {
		rowNum := i + 2 // 1-indexed, after the header
		date, err := time.Parse(models.DateLayout, row.Date)
		if err != nil {
			return nil, fmt.Errorf("row %d: date %q: %w", rowNum, row.Date, err)
		}
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("row %d: amount %q: %w", rowNum, row.Amount, err)
		}
		txn := models.Transaction{Date: date, Description: row.Description, Amount: amount}
		if row.Balance != "" {
			bal, err := decimal.NewFromString(row.Balance)
			if err != nil {
				return nil, fmt.Errorf("row %d: balance %q: %w", rowNum, row.Balance, err)
			}
			txn.Balance = decimal.NewNullDecimal(bal)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func formatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

func formatBalance(balance decimal.NullDecimal) string {
	if !balance.Valid {
		return ""
	}
	return formatAmount(balance.Decimal)
}
