package replication

import (
	"testing"
	"time"
)

func TestParseState(t *testing.T) {
	s, err := parseState([]byte(`---
last_run: 2024-05-01 12:00:01.500000000 +00:00
sequence: 6460395
`))
	if err != nil {
		t.Fatal(err)
	}
	if s.Sequence != 6460395 {
		t.Error("unexpected sequence", s)
	}
	expected := time.Date(2024, 5, 1, 12, 0, 1, 500000000, time.UTC)
	if !s.Time.Time.Equal(expected) {
		t.Error("unexpected time", s)
	}
}

func TestStateURL(t *testing.T) {
	if got := stateURL("https://example.org/replication/minute"); got != "https://example.org/replication/minute/state.yaml" {
		t.Error("unexpected url", got)
	}
	if got := stateURL("https://example.org/replication/minute/"); got != "https://example.org/replication/minute/state.yaml" {
		t.Error("unexpected url", got)
	}
}
