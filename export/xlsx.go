package export

import (
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet every spreadsheet export writes to.
const SheetName = "Products"

const (
	defaultColWidth = 24.0
	maxColWidth     = 80.0
)

// ExcelWriter builds .xlsx workbooks with excelize's streaming writer.
type ExcelWriter struct{}

// NewExcelWriter returns the default spreadsheet backend.
func NewExcelWriter() *ExcelWriter { return &ExcelWriter{} }

// Write renders one worksheet named sheet: a bold, frozen header row then
// one row per record.
func (ExcelWriter) Write(sheet string, header []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx: stream writer: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx: header style: %w", err)
	}

	// Column widths must be set before the first row is written.
	for i, name := range header {
		if err := sw.SetColWidth(i+1, i+1, columnWidth(name, rows, i)); err != nil {
			return nil, fmt.Errorf("xlsx: column width: %w", err)
		}
	}
	if err := sw.SetPanes(&excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("xlsx: freeze header: %w", err)
	}

	headerCells := make([]interface{}, len(header))
	for i, name := range header {
		headerCells[i] = excelize.Cell{StyleID: bold, Value: name}
	}
	if err := sw.SetRow("A1", headerCells); err != nil {
		return nil, fmt.Errorf("xlsx: header row: %w", err)
	}

	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, fmt.Errorf("xlsx: cell name: %w", err)
		}
		values := make([]interface{}, len(row))
		for i, v := range row {
			values[i] = fitCell(v)
		}
		if err := sw.SetRow(cell, values); err != nil {
			return nil, fmt.Errorf("xlsx: row %d: %w", r+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("xlsx: flush: %w", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx: write: %w", err)
	}
	return buf.Bytes(), nil
}

// fitCell truncates v to the most characters a worksheet cell can hold.
func fitCell(v string) string {
	if utf8.RuneCountInString(v) <= excelize.TotalCellChars {
		return v
	}
	return string([]rune(v)[:excelize.TotalCellChars])
}

// columnWidth sizes a column to its longest value, within bounds.
func columnWidth(header string, rows [][]string, col int) float64 {
	width := float64(len(header)) + 2
	for _, row := range rows {
		if col < len(row) {
			if w := float64(len(row[col])) + 2; w > width {
				width = w
			}
		}
	}
	if width < defaultColWidth/2 {
		width = defaultColWidth / 2
	}
	if width > maxColWidth {
		width = maxColWidth
	}
	return width
}
