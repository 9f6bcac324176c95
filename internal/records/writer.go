// Package records appends customer rows to an xlsx workbook and
// optionally mirrors them to a Google Sheet. Rows are append-only; the
// workbook is never rewritten in place except for header formatting.
package records

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
)

// Writer owns the customer workbook. All mutation runs under one mutex
// so concurrent saves cannot interleave row writes in the same file.
type Writer struct {
	mu     sync.Mutex
	path   string
	mirror *sheetsMirror
	now    func() time.Time
}

// NewWriter returns a writer for the workbook at path. The workbook is
// created lazily on first use so a bad path degrades to failed appends
// instead of killing startup. sheetID and credentialsFile configure the
// optional Google Sheets mirror; an empty sheetID disables it.
func NewWriter(path, sheetID, credentialsFile string) *Writer {
	w := &Writer{
		path: path,
		now:  time.Now,
	}
	if sheetID != "" {
		w.mirror = newSheetsMirror(sheetID, credentialsFile)
	}
	return w
}

// Append writes one row. The timestamp is taken at append time and an
// empty status defaults to "pending". Any primary-store I/O failure is
// logged and reported as false; mirror failures are logged only.
func (w *Writer) Append(rec Record) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if rec.Timestamp == "" {
		rec.Timestamp = w.now().Format("2006/01/02 15:04:05")
	}
	row := rec.row()

	if err := w.appendLocked(row); err != nil {
		log.Printf("records: append to %s failed: %v", w.path, err)
		return false
	}

	if w.mirror != nil {
		if err := w.mirror.appendRow(row); err != nil {
			log.Printf("records: google sheets mirror failed: %v", err)
		}
	}
	return true
}

func (w *Writer) appendLocked(row []string) error {
	f, err := w.openOrCreate()
	if err != nil {
		return err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return fmt.Errorf("next cell: %w", err)
	}
	values := make([]any, len(row))
	for i, v := range row {
		values[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("set row: %w", err)
	}
	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// All returns every data row in append order, without the header.
func (w *Writer) All() ([][]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.openOrCreate()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	out := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		// Pad short rows so callers can index columns positionally.
		padded := make([]string, NumColumns)
		copy(padded, row)
		out = append(out, padded)
	}
	return out, nil
}

func (w *Writer) openOrCreate() (*excelize.File, error) {
	if _, err := os.Stat(w.path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat workbook: %w", err)
		}
		if err := w.createWorkbook(); err != nil {
			return nil, err
		}
	}
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return f, nil
}

func (w *Writer) createWorkbook() error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	values := make([]any, len(header))
	for i, h := range header {
		values[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &values); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := styleHeader(f, sheet); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	return nil
}

// Header formatting matches the sheet our support staff already use:
// bold white on brand blue, centered, with per-column widths.
func styleHeader(f *excelize.File, sheet string) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"366092"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(NumColumns, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}

	widths := []float64{15, 20, 25, 15, 30, 40, 30, 10, 15, 15, 40, 30}
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}
	return nil
}
