package recorder

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewRecordPreviewTruncation(t *testing.T) {
	payload := strings.Repeat("x", 1500)
	rec := NewRecord("web-01", "r1", payload, []string{"web-01"}, 0)

	if len(rec.Content) != DefaultPreviewLimit {
		t.Fatalf("preview should be capped at %d, got %d", DefaultPreviewLimit, len(rec.Content))
	}
	if rec.RawData != payload {
		t.Fatal("raw data must keep the full payload")
	}
	if rec.ID == "" || !rec.Processed || rec.AlertTime.IsZero() {
		t.Fatalf("record fields not populated: %+v", rec)
	}
}

func TestNewRecordPreviewKeepsRunesWhole(t *testing.T) {
	// 3 bytes per rune; a limit of 10 falls mid-rune and must back off to 9
	payload := strings.Repeat("服", 20)
	rec := NewRecord("web-01", "r1", payload, nil, 10)

	if !utf8.ValidString(rec.Content) {
		t.Fatalf("preview split a rune: %q", rec.Content)
	}
	if rec.Content != strings.Repeat("服", 3) {
		t.Fatalf("unexpected preview: %q", rec.Content)
	}
	if rec.RawData != payload {
		t.Fatal("raw data must keep the full payload")
	}
}

func TestNewRecordCopiesExtracted(t *testing.T) {
	extracted := []string{"a", "b"}
	rec := NewRecord("a", "r1", "payload", extracted, 100)
	extracted[0] = "mutated"
	if rec.ExtractedValues[0] != "a" {
		t.Fatal("record must not alias the caller's slice")
	}
}

func TestMemoryRecorder(t *testing.T) {
	r := NewMemoryRecorder()
	r.Append(context.Background(), "web-01", "r1", "payload", []string{"web-01"})
	r.Append(context.Background(), "web-02", "r1", "payload", []string{"web-02"})

	records := r.Records()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Instance != "web-01" || records[1].Instance != "web-02" {
		t.Fatalf("unexpected order: %+v", records)
	}
}
