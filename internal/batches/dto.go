package batches

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"row-analyzer/internal/analysis"
)

// rowID accepts either a JSON string or a number.
type rowID string

func (id *rowID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = rowID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("row id must be a string or number")
	}
	*id = rowID(n.String())
	return nil
}

type rowPayload struct {
	ID                   rowID  `json:"id"`
	PrimaryText          string `json:"primaryText"`
	SecondaryText        string `json:"secondaryText"`
	JustificationMaker   string `json:"justificationMaker"`
	JustificationChecker string `json:"justificationChecker"`
	Selected             *bool  `json:"selected"`
}

type analyzeRequest struct {
	Rows []rowPayload `json:"rows"`
}

// requests converts the payload rows. Rows without an id are named Row-N by
// position, suffixed when that name is already taken by an explicit id, and
// rows are included unless selected is explicitly false.
func (r analyzeRequest) requests() []analysis.Request {
	taken := make(map[string]bool, len(r.Rows))
	for _, row := range r.Rows {
		if id := strings.TrimSpace(string(row.ID)); id != "" {
			taken[id] = true
		}
	}
	out := make([]analysis.Request, 0, len(r.Rows))
	for i, row := range r.Rows {
		id := strings.TrimSpace(string(row.ID))
		if id == "" {
			id = fallbackID(i, taken)
		}
		primary := row.PrimaryText
		if primary == "" {
			primary = row.JustificationMaker
		}
		secondary := row.SecondaryText
		if secondary == "" {
			secondary = row.JustificationChecker
		}
		included := true
		if row.Selected != nil {
			included = *row.Selected
		}
		out = append(out, analysis.Request{
			ID:            id,
			PrimaryText:   strings.TrimSpace(primary),
			SecondaryText: strings.TrimSpace(secondary),
			Included:      included,
		})
	}
	return out
}

func fallbackID(i int, taken map[string]bool) string {
	id := fmt.Sprintf("Row-%d", i+1)
	for n := 2; taken[id]; n++ {
		id = fmt.Sprintf("Row-%d-%d", i+1, n)
	}
	taken[id] = true
	return id
}

type analyzeResponse struct {
	Results []analysis.Outcome `json:"results"`
	Summary analysis.Summary   `json:"summary"`
}

type createBatchResponse struct {
	BatchID  string `json:"batchId"`
	Status   string `json:"status"`
	RowCount int    `json:"rowCount"`
}

type batchListItem struct {
	BatchID     string            `json:"batchId"`
	Status      string            `json:"status"`
	RowCount    int               `json:"rowCount"`
	Summary     *analysis.Summary `json:"summary,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   string            `json:"createdAt"`
	CompletedAt string            `json:"completedAt,omitempty"`
}
