package templates

import (
	"context"
	"strings"
	"testing"

	"github.com/datadesk/datadesk/internal/session"
)

func TestErrorAlertEscapes(t *testing.T) {
	var sb strings.Builder
	err := ErrorAlert(`<script>alert(1)</script>`, "retry", "ERR000").Render(context.Background(), &sb)
	if err != nil {
		t.Fatalf("render error = %v", err)
	}
	out := sb.String()
	if strings.Contains(out, "<script>") {
		t.Errorf("message not escaped: %s", out)
	}
	if !strings.Contains(out, "(Code: ERR000)") {
		t.Errorf("output missing code: %s", out)
	}
}

func TestPreviewTableMarksMissingCells(t *testing.T) {
	snap := session.Snapshot{
		Columns: []string{"a", "b"},
		Preview: [][]string{{"1", "NaN"}, {"", "2"}},
	}

	var sb strings.Builder
	if err := PreviewTable(snap).Render(context.Background(), &sb); err != nil {
		t.Fatalf("render error = %v", err)
	}
	out := sb.String()
	if got := strings.Count(out, "∅"); got != 2 {
		t.Errorf("missing-cell markers = %d, want 2", got)
	}
	if !strings.Contains(out, "<th>a</th>") {
		t.Errorf("output missing header: %s", out)
	}
}

func TestDashboardInjectsStylesheet(t *testing.T) {
	var sb strings.Builder
	if err := Dashboard(".container{max-width:60rem}").Render(context.Background(), &sb); err != nil {
		t.Fatalf("render error = %v", err)
	}
	out := sb.String()
	if !strings.Contains(out, "<style>.container{max-width:60rem}</style>") {
		t.Error("stylesheet not injected")
	}
	if !strings.Contains(out, "/api/upload") {
		t.Error("dashboard script missing upload endpoint")
	}
}
