package batches

import (
	"encoding/json"
	"testing"
)

func decodeRows(t *testing.T, body string) analyzeRequest {
	t.Helper()
	var req analyzeRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return req
}

func TestRequestsFallbackIDsAvoidExplicitIDs(t *testing.T) {
	req := decodeRows(t, `{"rows":[
		{"primaryText":"a"},
		{"id":"Row-1","primaryText":"b"},
		{"id":"  ","primaryText":"c"}
	]}`)

	got := req.requests()
	want := []string{"Row-1-2", "Row-1", "Row-3"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("row %d: expected id %q, got %q", i, id, got[i].ID)
		}
	}
	if err := (&Service{}).Validate(got); err != nil {
		t.Fatalf("expected generated ids to validate, got %v", err)
	}
}

func TestRequestsAliasesAndSelection(t *testing.T) {
	req := decodeRows(t, `{"rows":[
		{"id":7,"justificationMaker":" maker ","justificationChecker":"checker","selected":false},
		{"id":"b","primaryText":"p","justificationMaker":"ignored"}
	]}`)

	got := req.requests()
	if got[0].ID != "7" || got[0].PrimaryText != "maker" || got[0].SecondaryText != "checker" || got[0].Included {
		t.Fatalf("unexpected first row %+v", got[0])
	}
	if got[1].PrimaryText != "p" || !got[1].Included {
		t.Fatalf("unexpected second row %+v", got[1])
	}
}
