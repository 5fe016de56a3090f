package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldSet(t *testing.T) {
	fs, err := ParseFieldSet(nil)
	require.NoError(t, err)
	assert.Equal(t, AllFields, fs.Fields())

	fs, err = ParseFieldSet([]string{" Price", "title", "price"})
	require.NoError(t, err)
	assert.Equal(t, []string{"price", "title"}, fs.Names())
	assert.True(t, fs.Has(FieldTitle))
	assert.False(t, fs.Has(FieldSKU))

	_, err = ParseFieldSet([]string{"title", "colour"})
	var se *ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeInvalidInput, se.Code)
}

func TestRecord_KeepsInsertionOrder(t *testing.T) {
	r := NewRecord()
	r.SetText(FieldPrice, "12.50")
	r.SetText(FieldTitle, "Mug")
	r.SetList(FieldImages, nil)
	r.SetText(FieldPrice, "11.00")

	assert.Equal(t, []Field{FieldPrice, FieldTitle, FieldImages}, r.Keys())

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"price":"11.00","title":"Mug","images":[]}`, string(data))
}

func TestRecord_Populated(t *testing.T) {
	r := NewRecord()
	r.SetText(FieldSKU, "")
	r.SetList(FieldCategories, []string{})
	assert.True(t, r.Empty())

	r.SetList(FieldCategories, []string{"Kitchen", "Mugs"})
	assert.Equal(t, 1, r.Populated())
	assert.Equal(t, "Kitchen|Mugs", r.Flat(FieldCategories))
}

func TestRecord_UnmarshalSkipsUnknownKeys(t *testing.T) {
	var r Record
	require.NoError(t, json.Unmarshal([]byte(`{"title":"Mug","rating":4.5,"images":["https://shop.example/a.jpg"]}`), &r))
	assert.Equal(t, []Field{FieldTitle, FieldImages}, r.Keys())
	assert.Equal(t, []string{"https://shop.example/a.jpg"}, r.List(FieldImages))
}

func TestScrapeResult_MarshalJSON(t *testing.T) {
	text, err := json.Marshal(ScrapeResult{Success: true, Data: []byte("title\n\"Mug\""), ContentType: ContentTypeCSV})
	require.NoError(t, err)
	assert.Contains(t, string(text), `"data":"title\n\"Mug\""`)
	assert.Contains(t, string(text), `"encoding":"utf-8"`)

	bin, err := json.Marshal(ScrapeResult{Success: true, Data: []byte{0x50, 0x4b, 0x03, 0x04}, ContentType: ContentTypeXLSX})
	require.NoError(t, err)
	assert.Contains(t, string(bin), `"data":"UEsDBA=="`)
	assert.Contains(t, string(bin), `"encoding":"base64"`)
}

func TestScrapeResult_CountOnlyOnSuccess(t *testing.T) {
	empty, err := json.Marshal(ScrapeResult{Success: true, Data: []byte("[]"), ContentType: ContentTypeJSON})
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"count":0`)

	var back ScrapeResult
	full, err := json.Marshal(ScrapeResult{Success: true, Count: 4, Data: []byte("[]")})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(full, &back))
	assert.Equal(t, 4, back.Count)

	failed, err := json.Marshal(Failure(errors.New("boom")))
	require.NoError(t, err)
	assert.NotContains(t, string(failed), `"count"`)
}

func TestFailure(t *testing.T) {
	res := Failure(errors.New("boom"))
	assert.False(t, res.Success)
	assert.Equal(t, ErrCodeInternal, res.ErrorCode)
	assert.Equal(t, "boom", res.Error)

	res = Failure(NewScrapeError(ErrCodeUnsupportedFormat, "Unsupported format", nil))
	assert.Equal(t, "Unsupported format", res.Error)
}

func TestJob_Lifecycle(t *testing.T) {
	j := NewJob("j1", 100)
	assert.Equal(t, JobProcessing, j.Snapshot().Status)
	_, done := j.FinishedAt()
	assert.False(t, done)

	j.SetProgress(Progress{Current: 2, Total: 5})
	j.Finish(&ScrapeResult{Success: false, Error: "Unsupported format"})

	snap := j.Snapshot()
	assert.Equal(t, JobFailed, snap.Status)
	assert.Equal(t, Progress{Current: 2, Total: 5}, snap.Progress)
	at, done := j.FinishedAt()
	assert.True(t, done)
	assert.NotZero(t, at)
}
