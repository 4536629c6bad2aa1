// Package leads reads uploaded lead lists and keeps the numbers that normalize.
package leads

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"whatsapp-sender/internal/phone"
)

// Lead is one accepted row of an upload.
type Lead struct {
	Raw    string `json:"input"`
	Number string `json:"normalized"`
}

// Batch is the result of parsing one upload. Rows that do not normalize are
// counted in Rejected and otherwise dropped.
type Batch struct {
	Leads    []Lead `json:"leads"`
	Rejected int    `json:"rejected"`
}

// Numbers returns the normalized numbers in upload order. Duplicates are kept.
func (b Batch) Numbers() []string {
	numbers := make([]string, 0, len(b.Leads))
	for _, l := range b.Leads {
		numbers = append(numbers, l.Number)
	}
	return numbers
}

// Parse reads a headerless single-column CSV. Blank rows are skipped and only
// the first field of a row is used.
func Parse(r io.Reader) (Batch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	batch := Batch{Leads: []Lead{}}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Batch{}, fmt.Errorf("failed to read CSV: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		raw := strings.TrimSpace(record[0])
		if raw == "" {
			continue
		}
		number, ok := phone.Normalize(raw)
		if !ok {
			batch.Rejected++
			continue
		}
		batch.Leads = append(batch.Leads, Lead{Raw: raw, Number: number})
	}
	return batch, nil
}
