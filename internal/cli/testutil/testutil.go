// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/polyglot/internal/cli/output"
)

// Catalog is the entity catalog written by SetupTestProject.
const Catalog = `entities:
  - name: Author
    plain: true
    shared:
      - {name: name, type: string, max_length: 100}

  - name: Publishable
    abstract: true
    shared:
      - {name: published, type: time, null: true}
    translated:
      - {name: title, type: string, max_length: 200}

  - name: Article
    bases: [Publishable]
    ordering: ["id"]
    display: '{{.Get "title"}} [{{.Language}}]'
    slug: {field: slug, from: title}
    shared:
      - {name: author, type: fk, target: Author, related_name: articles, null: true}
      - {name: views, type: int, default: 0}
    translated:
      - {name: slug, type: string, max_length: 200}
      - {name: body, type: text, null: true}
`

// ProjectConfig is the polyglot.yaml written by SetupTestProject.
const ProjectConfig = `catalog: entities.yaml
state_path: .polyglot/state.db
target:
  type: sqlite
  database: app.db
languages:
  default: en
  fallbacks: [fr]
`

// SetupTestProject creates a temporary project with a config file and an
// entity catalog, and returns its directory.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	files := map[string]string{
		"polyglot.yaml": ProjectConfig,
		"entities.yaml": Catalog,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}
	return tmpDir
}

// TestRenderer is a Renderer writing into buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer captures output in the given mode. Text mode behaves as on
// a terminal; the machine readable modes behave as when piped.
func NewTestRenderer(mode output.OutputMode) *TestRenderer {
	tr := &TestRenderer{Out: &bytes.Buffer{}, ErrOut: &bytes.Buffer{}}
	tr.Renderer = output.NewRendererWithTTY(tr.Out, tr.ErrOut, mode == output.ModeText, mode)
	return tr
}

// Output returns what was written to stdout.
func (tr *TestRenderer) Output() string { return tr.Out.String() }

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI fails the test when s contains terminal escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if loc := ansiEscape.FindStringIndex(s); loc != nil {
		t.Errorf("unexpected ANSI escape at offset %d in %q", loc[0], s)
	}
}

// AssertValidMarkdown checks the markdown renderers' output for balanced
// code fences, headers with text and pipe tables with a separator row.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences: %d markers", n)
	}

	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("line %d: header without text", i+1)
		}
		if isTableRow(trimmed) && (i == 0 || !isTableRow(strings.TrimSpace(lines[i-1]))) {
			if i+1 >= len(lines) || !strings.Contains(lines[i+1], "---") {
				t.Errorf("line %d: table header without separator row", i+1)
			}
		}
	}
}

func isTableRow(line string) bool {
	return strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|")
}
