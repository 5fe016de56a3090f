package export

import (
	"encoding/json"

	"github.com/use-agent/shelfscrape/models"
)

// encodeJSON renders the record list with two-space indentation. Records
// marshal their keys in insertion order.
func encodeJSON(records []*models.Record) ([]byte, error) {
	if records == nil {
		records = []*models.Record{}
	}
	return json.MarshalIndent(records, "", "  ")
}
