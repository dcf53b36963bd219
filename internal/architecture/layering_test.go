package architecture_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const modulePrefix = "focuslog/internal/"

// layerImports lists the module layers each layer may depend on. Platform
// packages are shared by everything and never listed.
var layerImports = map[string][]string{
	"domain":      {"domain"},
	"dto":         {},
	"port/in":     {"dto"},
	"port/out":    {"domain"},
	"service":     {"domain", "dto", "port/out"},
	"usecase":     {"domain", "dto", "port/in", "port/out", "service"},
	"adapter/in":  {"dto", "port/in"},
	"adapter/out": {"domain", "dto", "port/out"},
}

var layerOrder = []string{"adapter/in", "adapter/out", "usecase", "service", "domain", "port/in", "port/out", "dto"}

func TestInternalImportRules(t *testing.T) {
	t.Parallel()
	fset := token.NewFileSet()
	root := ".."
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		slash := filepath.ToSlash(path)
		node, parseErr := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if parseErr != nil {
			return parseErr
		}
		for _, imp := range node.Imports {
			importPath := strings.Trim(imp.Path.Value, `"`)
			if !strings.HasPrefix(importPath, modulePrefix) {
				continue
			}
			if reason := violation(slash, importPath); reason != "" {
				t.Errorf("%s imports %s: %s", slash, importPath, reason)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk internal: %v", err)
	}
}

func TestViolationRules(t *testing.T) {
	t.Parallel()
	const tracker = "focuslog/internal/modules/tracker/"
	cases := []struct {
		file string
		imp  string
		ok   bool
	}{
		{"../modules/tracker/domain/activity.go", "focuslog/internal/platform/errors", true},
		{"../modules/tracker/domain/activity.go", tracker + "dto", false},
		{"../modules/tracker/domain/activity.go", tracker + "port/out", false},
		{"../modules/tracker/dto/types.go", tracker + "domain", false},
		{"../modules/tracker/port/out/tracker.go", tracker + "domain", true},
		{"../modules/tracker/port/out/tracker.go", tracker + "dto", false},
		{"../modules/tracker/port/in/tracker.go", tracker + "dto", true},
		{"../modules/tracker/service/recorder.go", tracker + "port/out", true},
		{"../modules/tracker/service/recorder.go", tracker + "port/in", false},
		{"../modules/tracker/service/recorder.go", tracker + "adapter/out", false},
		{"../modules/tracker/usecase/arbiter.go", tracker + "service", true},
		{"../modules/tracker/usecase/arbiter.go", tracker + "adapter/out", false},
		{"../modules/tracker/adapter/in/http_handler.go", tracker + "port/in", true},
		{"../modules/tracker/adapter/in/http_handler.go", tracker + "usecase", false},
		{"../modules/tracker/adapter/out/sqlite_store.go", tracker + "domain", true},
		{"../modules/tracker/adapter/out/sqlite_store.go", tracker + "service", false},
		{"../modules/tracker/adapter/out/sqlite_store.go", "focuslog/internal/modules/other/domain", false},
		{"../platform/retry/retry.go", "focuslog/internal/platform/errors", true},
		{"../platform/retry/retry.go", tracker + "domain", false},
		{"../platform/config/config.go", "focuslog/internal/bootstrap", false},
		{"../ui/app/model.go", tracker + "dto", true},
		{"../ui/app/model.go", tracker + "service", false},
		{"../bootstrap/bootstrap.go", tracker + "adapter/out", true},
	}
	for _, tc := range cases {
		got := violation(tc.file, tc.imp) == ""
		if got != tc.ok {
			t.Errorf("%s -> %s: allowed=%v, want %v", tc.file, tc.imp, got, tc.ok)
		}
	}
}

// violation explains why file may not import importPath, or returns "".
func violation(file, importPath string) string {
	rel := strings.TrimPrefix(importPath, modulePrefix)
	switch {
	case strings.HasPrefix(file, "../platform/"):
		if !strings.HasPrefix(rel, "platform/") {
			return "platform packages depend only on other platform packages"
		}
		return ""
	case strings.HasPrefix(file, "../ui/"):
		if strings.HasPrefix(rel, "modules/") && layerOf(rel) != "dto" {
			return "the UI talks to modules only through dto"
		}
		if strings.HasPrefix(rel, "bootstrap") {
			return "the UI is wired by bootstrap, not the reverse"
		}
		return ""
	case strings.HasPrefix(file, "../modules/"):
		if strings.HasPrefix(rel, "platform/") {
			return ""
		}
		if !strings.HasPrefix(rel, "modules/") {
			return "modules depend only on platform and their own layers"
		}
		if moduleOf(file) != moduleOf(rel) {
			return "modules do not import each other"
		}
		from, to := layerOf(file), layerOf(rel)
		if from == "" {
			return ""
		}
		for _, allowed := range layerImports[from] {
			if allowed == to {
				return ""
			}
		}
		return from + " may not depend on " + to
	default:
		return ""
	}
}

func moduleOf(path string) string {
	parts := strings.Split(path, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "modules" {
			return parts[i+1]
		}
	}
	return ""
}

func layerOf(path string) string {
	for _, layer := range layerOrder {
		if strings.Contains(path+"/", "/"+layer+"/") {
			return layer
		}
	}
	return ""
}
