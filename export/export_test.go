package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/shelfscrape/models"
	"github.com/xuri/excelize/v2"
)

func sampleRecords() []*models.Record {
	a := models.NewRecord()
	a.SetText(models.FieldTitle, `Oak "Classic" Desk, large`)
	a.SetText(models.FieldPrice, "1,250.00")
	a.SetList(models.FieldImages, []string{"https://shop.example/a.jpg", "https://shop.example/b.jpg"})
	a.SetText(models.FieldDescription, "Two drawers.\nSolid oak.")

	b := models.NewRecord()
	b.SetText(models.FieldPrice, "9")
	b.SetText(models.FieldTitle, "Rope")
	b.SetList(models.FieldCategories, []string{"Marine", "Tools"})
	return []*models.Record{a, b}
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"csv", "JSON", " xlsx "} {
		_, err := ParseFormat(name)
		assert.NoError(t, err, name)
	}

	_, err := ParseFormat("xml")
	require.Error(t, err)
	var se *models.ScrapeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, models.ErrCodeUnsupportedFormat, se.Code)
	assert.Equal(t, "Unsupported format", se.Message)
}

func TestTransform_UnsupportedFormat(t *testing.T) {
	_, err := New().Transform(sampleRecords(), models.NewFieldSet(models.FieldTitle), Format("xml"))
	require.Error(t, err)
	assert.Equal(t, "Unsupported format", models.AsScrapeError(err).Message)
}

func TestTransform_CSV(t *testing.T) {
	fields := models.NewFieldSet(models.FieldTitle, models.FieldPrice, models.FieldImages, models.FieldSKU)
	p, err := New().Transform(sampleRecords(), fields, FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "shelfscrape-products.csv", p.Filename)
	assert.Equal(t, models.ContentTypeCSV, p.ContentType)

	want := "title,price,images,sku\n" +
		`"Oak ""Classic"" Desk, large","1,250.00","https://shop.example/a.jpg|https://shop.example/b.jpg",""` + "\n" +
		`"Rope","9","",""`
	assert.Equal(t, want, string(p.Data))
}

func TestTransform_CSVRoundTrip(t *testing.T) {
	records := sampleRecords()
	fields := models.NewFieldSet(models.FieldDescription, models.FieldTitle, models.FieldCategories, models.FieldImages)
	p, err := New().Transform(records, fields, FormatCSV)
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(p.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(records)+1)

	assert.Equal(t, fields.Names(), rows[0])
	for i, rec := range records {
		for j, f := range fields.Fields() {
			assert.Equal(t, rec.Flat(f), rows[i+1][j], "record %d field %s", i, f)
		}
	}
}

func TestTransform_CSVHeaderOnly(t *testing.T) {
	p, err := New().Transform(nil, models.NewFieldSet(models.FieldURL, models.FieldTitle), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "url,title", string(p.Data))
}

func TestTransform_JSONKeepsRecordKeyOrder(t *testing.T) {
	// Field order must not reorder JSON keys.
	fields := models.NewFieldSet(models.FieldURL, models.FieldTitle)
	p, err := New().Transform(sampleRecords(), fields, FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, models.ContentTypeJSON, p.ContentType)
	assert.Contains(t, string(p.Data), "\n  {\n    \"title\"")

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(p.Data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "Rope", decoded[1]["title"])
	assert.Equal(t, []any{"Marine", "Tools"}, decoded[1]["categories"])

	second := bytes.Index(p.Data, []byte(`"price": "9"`))
	title := bytes.Index(p.Data, []byte(`"title": "Rope"`))
	assert.Less(t, second, title, "insertion order price before title")
}

func TestTransform_JSONEmpty(t *testing.T) {
	p, err := New().Transform(nil, models.NewFieldSet(models.FieldTitle), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(p.Data))
}

func TestTransform_XLSX(t *testing.T) {
	fields := models.NewFieldSet(models.FieldTitle, models.FieldImages, models.FieldCategories)
	p, err := New().Transform(sampleRecords(), fields, FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "shelfscrape-products.xlsx", p.Filename)
	assert.Equal(t, models.ContentTypeXLSX, p.ContentType)

	f, err := excelize.OpenReader(bytes.NewReader(p.Data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"title", "images", "categories"}, rows[0])
	assert.Equal(t, "https://shop.example/a.jpg|https://shop.example/b.jpg", rows[1][1])
	assert.Equal(t, "Marine|Tools", rows[2][2])
}

func TestTransform_XLSXTruncatesOversizedCells(t *testing.T) {
	rec := models.NewRecord()
	rec.SetText(models.FieldTitle, "Datasheet")
	rec.SetText(models.FieldDescription, strings.Repeat("é", excelize.TotalCellChars+500))

	fields := models.NewFieldSet(models.FieldTitle, models.FieldDescription)
	p, err := New().Transform([]*models.Record{rec}, fields, FormatXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(p.Data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Datasheet", rows[1][0])
	assert.Equal(t, excelize.TotalCellChars, utf8.RuneCountInString(rows[1][1]))
}

type failingSheet struct{}

func (failingSheet) Write(string, []string, [][]string) ([]byte, error) {
	return nil, errors.New("disk full")
}

func TestTransform_SpreadsheetBackend(t *testing.T) {
	fields := models.NewFieldSet(models.FieldTitle)

	_, err := New(WithSpreadsheet(nil)).Transform(sampleRecords(), fields, FormatXLSX)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeExportFailed, models.AsScrapeError(err).Code)

	_, err = New(WithSpreadsheet(failingSheet{})).Transform(sampleRecords(), fields, FormatXLSX)
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")

	// Text formats do not need the backend.
	_, err = New(WithSpreadsheet(nil)).Transform(sampleRecords(), fields, FormatCSV)
	assert.NoError(t, err)
}
