package out_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	adapterout "focuslog/internal/modules/tracker/adapter/out"
	"focuslog/internal/modules/tracker/domain"
)

func TestConsoleListenerPrintsOneLinePerChange(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := adapterout.NewConsoleListener(&buf)
	start := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	l.OnStateChanged(domain.NewProgram("s1", "/usr/bin/code", "code", "", start))
	l.OnStateChanged(domain.NewBrowserDomain("s2", "netflix.com", "", start).WithVideo(domain.VideoInfo{Platform: "netflix", MediaID: "X"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "code") || !strings.Contains(lines[0], "14:00:00") {
		t.Fatalf("unexpected program line %q", lines[0])
	}
	// Untitled media fall back to the media id.
	if !strings.Contains(lines[1], "netflix.com") || !strings.Contains(lines[1], "X") {
		t.Fatalf("unexpected video line %q", lines[1])
	}
}
