package export

import (
	"bytes"
	"strings"

	"github.com/use-agent/shelfscrape/models"
)

// encodeCSV writes a bare header line followed by one line per record. Every
// value is double-quoted with inner quotes doubled, and lines are joined by
// "\n" without a trailing newline.
func encodeCSV(records []*models.Record, fields models.FieldSet) []byte {
	var buf bytes.Buffer
	buf.WriteString(strings.Join(fields.Names(), ","))
	for _, row := range tableRows(records, fields) {
		buf.WriteByte('\n')
		for i, v := range row {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeQuoted(&buf, v)
		}
	}
	return buf.Bytes()
}

func writeQuoted(buf *bytes.Buffer, v string) {
	buf.WriteByte('"')
	buf.WriteString(strings.ReplaceAll(v, `"`, `""`))
	buf.WriteByte('"')
}
