package extract

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"ragify/types"
)

var spreadsheetExtensions = map[string]bool{
	"csv": true, "tsv": true, "xls": true, "xlsx": true, "ods": true,
}

// SpreadsheetHandler serializes every sheet to tab-separated text under a
// "# Sheet:" header, sheets joined by blank lines. Plain csv/tsv files are
// treated as a single unnamed sheet.
type SpreadsheetHandler struct{}

func (h *SpreadsheetHandler) ID() string { return "spreadsheet" }

func (h *SpreadsheetHandler) Supports(ext string) bool { return spreadsheetExtensions[ext] }

func (h *SpreadsheetHandler) Extract(filePath string) (string, error) {
	lower := strings.ToLower(filePath)
	if strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".tsv") {
		return h.extractDelimited(filePath, strings.HasSuffix(lower, ".tsv"))
	}
	return h.extractWorkbook(filePath)
}

func (h *SpreadsheetHandler) extractWorkbook(filePath string) (string, error) {
	wb, err := excelize.OpenFile(filePath)
	if err != nil {
		return "", types.WrapError(types.ErrDependencyMissing, err, "failed to open workbook %s; ensure the file is a valid xlsx/xls/ods document", filePath)
	}
	defer wb.Close()

	var segments []string
	for _, sheetName := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheetName)
		if err != nil {
			return "", fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
		}

		var b strings.Builder
		fmt.Fprintf(&b, "# Sheet: %s\n", sheetName)
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
		segments = append(segments, strings.TrimRight(b.String(), "\n"))
	}

	return strings.Join(segments, "\n\n"), nil
}

func (h *SpreadsheetHandler) extractDelimited(filePath string, tab bool) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", types.WrapError(types.ErrNotFound, err, "failed to read %s", filePath)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if tab {
		reader.Comma = '\t'
	}
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", filePath, err)
	}

	var b strings.Builder
	for _, record := range records {
		b.WriteString(strings.Join(record, "\t"))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
