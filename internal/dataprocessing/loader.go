package dataprocessing

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	pipeerrors "retlab/internal/errors"
)

// Loader reads raw transaction rows from a CSV or Excel export.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new input loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load reads all rows from the given file, dispatching on extension.
// The Kaggle dataset ships as .xlsx; historical pipelines consumed a CSV
// export of it, so both are accepted.
func (l *Loader) Load(path string) ([]Row, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, pipeerrors.Wrap(pipeerrors.CodeInputNotFound, fmt.Sprintf("input dataset not found at %s", path), err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return l.loadExcel(path)
	default:
		return l.loadCSV(path)
	}
}

// loadCSV reads a delimited text file into header-keyed rows.
func (l *Loader) loadCSV(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, pipeerrors.Wrap(pipeerrors.CodeInputUnreadable, "open CSV file", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, pipeerrors.Wrap(pipeerrors.CodeInputUnreadable, "read CSV header", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Ragged or quoted-wrong lines are a data-quality problem,
			// not a fatal one. Skip and keep reading.
			l.logger.Warn("skipping malformed CSV record", "error", err)
			continue
		}
		rows = append(rows, recordToRow(header, record))
	}

	l.logger.Info("loaded CSV input", "path", path, "rows", len(rows))
	return rows, nil
}

// loadExcel reads the first sheet that looks like transaction data.
func (l *Loader) loadExcel(path string) ([]Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, pipeerrors.Wrap(pipeerrors.CodeInputUnreadable, "open Excel file", err)
	}
	defer f.Close()

	var header []string
	var data [][]string
	for _, sheet := range f.GetSheetList() {
		sheetRows, err := f.GetRows(sheet)
		if err != nil || len(sheetRows) < 2 {
			continue
		}
		if !looksLikeTransactionHeader(sheetRows[0]) {
			continue
		}
		header = sheetRows[0]
		data = sheetRows[1:]
		l.logger.Info("found transaction sheet", "sheet", sheet, "rows", len(data))
		break
	}

	if header == nil {
		return nil, pipeerrors.New(pipeerrors.CodeInputUnreadable, "no sheet with transaction headers found")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := make([]Row, 0, len(data))
	for _, record := range data {
		rows = append(rows, recordToRow(header, record))
	}
	return rows, nil
}

// looksLikeTransactionHeader reports whether a header row names the
// invoice and date columns under any of their known aliases.
func looksLikeTransactionHeader(header []string) bool {
	var hasInvoice, hasDate bool
	for _, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		if name == "invoice" || name == "invoiceno" {
			hasInvoice = true
		}
		if name == "invoicedate" {
			hasDate = true
		}
	}
	return hasInvoice && hasDate
}

// recordToRow zips a record with the header, tolerating short records.
func recordToRow(header, record []string) Row {
	row := make(Row, len(header))
	for i, name := range header {
		if i < len(record) {
			row[name] = record[i]
		}
	}
	return row
}
