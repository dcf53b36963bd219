package out_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	adapterout "focuslog/internal/modules/tracker/adapter/out"
	"focuslog/internal/modules/tracker/domain"
	"focuslog/internal/platform/config"
	"focuslog/internal/platform/logging"
)

func TestStaticClassifierMatchesProgramsAndParentDomains(t *testing.T) {
	t.Parallel()
	c := adapterout.NewStaticClassifier([]string{"code", "/opt/idea/bin/idea"}, []string{"GitHub.com"})

	cases := []struct {
		kind     domain.Kind
		identity string
		want     bool
	}{
		{domain.KindProgram, "/usr/share/code/code", true},
		{domain.KindProgram, "/opt/idea/bin/idea", true},
		{domain.KindProgram, "/usr/bin/slack", false},
		{domain.KindDomain, "github.com", true},
		{domain.KindDomain, "gist.github.com", true},
		{domain.KindDomain, "notgithub.com", false},
		{domain.KindDomain, "youtube.com", false},
	}
	for _, tc := range cases {
		if got := c.IsProductive(tc.kind, tc.identity); got != tc.want {
			t.Fatalf("IsProductive(%s, %q) = %v, want %v", tc.kind, tc.identity, got, tc.want)
		}
	}
}

func TestWatchedClassifierReloadsOnWrite(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("productive_domains: [golang.org]\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	c := adapterout.NewWatchedClassifier(cfg, logging.Discard())
	if !c.IsProductive(domain.KindDomain, "pkg.golang.org") {
		t.Fatalf("expected initial list to apply")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(5 * time.Second)
	for !c.IsProductive(domain.KindDomain, "github.com") {
		if time.Now().After(deadline) {
			t.Fatalf("classifier did not pick up the rewritten config")
		}
		// Rewrite until the watcher, which may still be starting, sees it.
		if err := os.WriteFile(path, []byte("productive_domains: [github.com]\n"), 0o644); err != nil {
			t.Fatalf("rewrite config: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	if c.IsProductive(domain.KindDomain, "golang.org") {
		t.Fatalf("old list must be replaced")
	}
}

func TestWatchedClassifierKeepsListsOnBrokenFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("productive_programs: [code]\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	c := adapterout.NewWatchedClassifier(cfg, logging.Discard())
	if err := os.WriteFile(path, []byte("productive_programs: [code\n"), 0o644); err != nil {
		t.Fatalf("break config: %v", err)
	}
	c.Reload()
	if !c.IsProductive(domain.KindProgram, "code") {
		t.Fatalf("broken config must keep the previous lists")
	}
}
