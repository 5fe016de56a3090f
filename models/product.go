package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Field is one of the fixed product attributes a scrape can request.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldPrice       Field = "price"
	FieldImages      Field = "images"
	FieldStockStatus Field = "stock_status"
	FieldSKU         Field = "sku"
	FieldCategories  Field = "categories"
	FieldURL         Field = "url"
)

// AllFields is the canonical field order, used when the caller selects none.
var AllFields = []Field{
	FieldTitle,
	FieldDescription,
	FieldPrice,
	FieldImages,
	FieldStockStatus,
	FieldSKU,
	FieldCategories,
	FieldURL,
}

// ListSeparator joins sequence values in the tabular export formats.
const ListSeparator = "|"

// IsList reports whether the field holds an ordered sequence instead of text.
func (f Field) IsList() bool {
	return f == FieldImages || f == FieldCategories
}

// Valid reports whether f belongs to the fixed enumeration.
func (f Field) Valid() bool {
	for _, known := range AllFields {
		if f == known {
			return true
		}
	}
	return false
}

// FieldSet is an ordered, duplicate-free selection of fields.
// Its order drives the column order of tabular exports.
type FieldSet struct {
	order []Field
	index map[Field]struct{}
}

// NewFieldSet builds a FieldSet, dropping duplicates but keeping first-seen order.
func NewFieldSet(fields ...Field) FieldSet {
	fs := FieldSet{index: make(map[Field]struct{}, len(fields))}
	for _, f := range fields {
		if _, dup := fs.index[f]; dup {
			continue
		}
		fs.index[f] = struct{}{}
		fs.order = append(fs.order, f)
	}
	return fs
}

// ParseFieldSet converts caller-supplied names into a FieldSet.
// An empty list selects every field.
func ParseFieldSet(names []string) (FieldSet, error) {
	if len(names) == 0 {
		return NewFieldSet(AllFields...), nil
	}
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		f := Field(strings.ToLower(strings.TrimSpace(name)))
		if !f.Valid() {
			return FieldSet{}, NewScrapeError(ErrCodeInvalidInput, fmt.Sprintf("unknown field %q", name), nil)
		}
		fields = append(fields, f)
	}
	return NewFieldSet(fields...), nil
}

// Has reports whether f was selected.
func (fs FieldSet) Has(f Field) bool {
	_, ok := fs.index[f]
	return ok
}

// Fields returns the selection in caller order.
func (fs FieldSet) Fields() []Field {
	out := make([]Field, len(fs.order))
	copy(out, fs.order)
	return out
}

// Len returns the number of selected fields.
func (fs FieldSet) Len() int { return len(fs.order) }

// Names returns the selection as plain strings.
func (fs FieldSet) Names() []string {
	out := make([]string, len(fs.order))
	for i, f := range fs.order {
		out[i] = string(f)
	}
	return out
}

// Record is one extracted product. Keys keep insertion order so that JSON
// output mirrors the order in which the extractor filled them.
type Record struct {
	keys  []Field
	text  map[Field]string
	lists map[Field][]string
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{
		text:  make(map[Field]string),
		lists: make(map[Field][]string),
	}
}

func (r *Record) touch(f Field) {
	if r.Has(f) {
		return
	}
	r.keys = append(r.keys, f)
}

// SetText stores a text value.
func (r *Record) SetText(f Field, v string) {
	r.touch(f)
	r.text[f] = v
}

// SetList stores a sequence value. A nil slice is stored as empty.
func (r *Record) SetList(f Field, v []string) {
	r.touch(f)
	if v == nil {
		v = []string{}
	}
	r.lists[f] = v
}

// Has reports whether the field was set, even to an empty value.
func (r *Record) Has(f Field) bool {
	if _, ok := r.text[f]; ok {
		return true
	}
	_, ok := r.lists[f]
	return ok
}

// Text returns a text value.
func (r *Record) Text(f Field) string { return r.text[f] }

// List returns a sequence value.
func (r *Record) List(f Field) []string { return r.lists[f] }

// Keys returns the fields in insertion order.
func (r *Record) Keys() []Field {
	out := make([]Field, len(r.keys))
	copy(out, r.keys)
	return out
}

// Flat renders a field as a single string: text as-is, sequences pipe-joined.
func (r *Record) Flat(f Field) string {
	if f.IsList() {
		return strings.Join(r.lists[f], ListSeparator)
	}
	return r.text[f]
}

// Populated counts fields holding a non-empty value.
func (r *Record) Populated() int {
	n := 0
	for _, f := range r.keys {
		if f.IsList() {
			if len(r.lists[f]) > 0 {
				n++
			}
			continue
		}
		if r.text[f] != "" {
			n++
		}
	}
	return n
}

// Empty reports whether the record carries no data and must be discarded.
func (r *Record) Empty() bool { return r.Populated() == 0 }

// MarshalJSON writes the record as an object in key insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(f))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var val []byte
		if f.IsList() {
			val, err = json.Marshal(r.lists[f])
		} else {
			val, err = json.Marshal(r.text[f])
		}
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object produced by MarshalJSON. Unknown keys are ignored.
func (r *Record) UnmarshalJSON(data []byte) error {
	*r = *NewRecord()
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record: expected object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		f := Field(key)
		if !f.Valid() {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return err
			}
			continue
		}
		if f.IsList() {
			var v []string
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("record: field %s: %w", f, err)
			}
			r.SetList(f, v)
			continue
		}
		var v string
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("record: field %s: %w", f, err)
		}
		r.SetText(f, v)
	}
	_, err = dec.Token()
	return err
}
