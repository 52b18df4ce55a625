package writer

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// SheetName is the worksheet the transactions are written to.
const SheetName = "Transactions"

// numFmtFixed2 is excelize's built-in "0.00" number format.
const numFmtFixed2 = 2

var xlsxHeader = []interface{}{"date", "description", "amount", "balance"}

// XLSXWriter writes the canonical columns to an Excel workbook. Amounts
// and balances are numeric cells shown with two decimals.
type XLSXWriter struct{}

// WriteToFile writes transactions to an .xlsx file at the given path.
func (w *XLSXWriter) WriteToFile(path string, txns []models.Transaction) error {
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

// Write writes the workbook to out.
func (w *XLSXWriter) Write(out io.Writer, txns []models.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &xlsxHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, txn := range txns {
		row := []interface{}{
			txn.Date.Format(models.DateLayout),
			txn.Description,
			txn.Amount.InexactFloat64(),
			nil,
		}
		if txn.Balance.Valid {
			row[3] = txn.Balance.Decimal.InexactFloat64()
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	style, err := f.NewStyle(&excelize.Style{NumFmt: numFmtFixed2})
	if err != nil {
		return fmt.Errorf("failed to create number style: %w", err)
	}
	if err := f.SetColStyle(SheetName, "C:D", style); err != nil {
		return fmt.Errorf("failed to style money columns: %w", err)
	}
	if err := f.SetColWidth(SheetName, "B", "B", 48); err != nil {
		return err
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
