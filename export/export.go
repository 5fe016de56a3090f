package export

import (
	"fmt"
	"strings"

	"github.com/use-agent/shelfscrape/models"
)

// Format is an export target.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// filenameStem names every download.
const filenameStem = "shelfscrape-products"

// ErrUnsupportedFormat is the user-facing message for unknown formats.
const ErrUnsupportedFormat = "Unsupported format"

// ParseFormat validates a caller-supplied format name. Unknown names are
// rejected; there is no default.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	default:
		return "", models.NewScrapeError(models.ErrCodeUnsupportedFormat, ErrUnsupportedFormat,
			fmt.Errorf("format %q", name))
	}
}

// Payload is an encoded export ready for download.
type Payload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// SpreadsheetWriter renders a header plus rows into a workbook file.
type SpreadsheetWriter interface {
	Write(sheet string, header []string, rows [][]string) ([]byte, error)
}

// Transformer converts record lists into export payloads. The spreadsheet
// backend is fixed at construction; a Transformer without one refuses xlsx.
type Transformer struct {
	spreadsheet SpreadsheetWriter
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithSpreadsheet sets the xlsx backend. Passing nil disables xlsx.
func WithSpreadsheet(w SpreadsheetWriter) Option {
	return func(t *Transformer) { t.spreadsheet = w }
}

// New returns a Transformer with the excelize spreadsheet backend unless
// overridden.
func New(opts ...Option) *Transformer {
	t := &Transformer{spreadsheet: NewExcelWriter()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform encodes records. fields orders the tabular columns; JSON keeps
// each record's own key order.
func (t *Transformer) Transform(records []*models.Record, fields models.FieldSet, format Format) (*Payload, error) {
	switch format {
	case FormatCSV:
		return &Payload{
			Data:        encodeCSV(records, fields),
			ContentType: models.ContentTypeCSV,
			Filename:    filename(format),
		}, nil

	case FormatJSON:
		data, err := encodeJSON(records)
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeExportFailed, "failed to encode JSON", err)
		}
		return &Payload{Data: data, ContentType: models.ContentTypeJSON, Filename: filename(format)}, nil

	case FormatXLSX:
		if t.spreadsheet == nil {
			return nil, models.NewScrapeError(models.ErrCodeExportFailed, "spreadsheet export is not available", nil)
		}
		data, err := t.spreadsheet.Write(SheetName, fields.Names(), tableRows(records, fields))
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeExportFailed, "failed to build spreadsheet", err)
		}
		return &Payload{Data: data, ContentType: models.ContentTypeXLSX, Filename: filename(format)}, nil

	default:
		return nil, models.NewScrapeError(models.ErrCodeUnsupportedFormat, ErrUnsupportedFormat,
			fmt.Errorf("format %q", format))
	}
}

func filename(f Format) string {
	return filenameStem + "." + string(f)
}

// tableRows flattens records into rows in field order. Sequences are
// pipe-joined; missing fields become empty cells.
func tableRows(records []*models.Record, fields models.FieldSet) [][]string {
	cols := fields.Fields()
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(cols))
		for i, f := range cols {
			row[i] = rec.Flat(f)
		}
		rows = append(rows, row)
	}
	return rows
}
