package tool

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestTimeTool(t *testing.T) {
	tt := NewTimeTool(newTestLogger())
	tt.now = func() time.Time {
		return time.Date(2026, 8, 29, 14, 30, 5, 0, time.UTC)
	}

	res, err := tt.Execute(context.Background(), json.RawMessage(`{}`), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := "Current UTC time: 2026-08-29 14:30:05 UTC"
	if res.Content != want {
		t.Errorf("Content = %q, want %q", res.Content, want)
	}
}

func TestTimeToolConvertsToUTC(t *testing.T) {
	tt := NewTimeTool(newTestLogger())
	loc := time.FixedZone("UTC+7", 7*3600)
	tt.now = func() time.Time {
		return time.Date(2026, 1, 1, 7, 0, 0, 0, loc)
	}

	res, err := tt.Execute(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := "Current UTC time: 2026-01-01 00:00:00 UTC"
	if res.Content != want {
		t.Errorf("Content = %q, want %q", res.Content, want)
	}
}
