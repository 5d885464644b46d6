package contextbuilder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestExtractKeywords_FiltersStopwordsAndShortWords(t *testing.T) {
	kws := extractKeywords("fix the login button and add a spinner for this form")
	assert.Equal(t, []string{"login", "button", "spinner", "form"}, kws)
}

func TestExtractKeywords_CapsAtFive(t *testing.T) {
	kws := extractKeywords("alpha beta gamma delta epsilon zeta eta")
	assert.Len(t, kws, 5)
}

func TestBuild_FindsFileByKeyword(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/login.js", "function login() { return checkout(); }")
	writeFile(t, root, "src/unrelated.js", "function noop() {}")

	b := New(50000)
	bundle := b.Build(root, "fix the login bug")

	assert.Contains(t, bundle.Files, "src/login.js")
	assert.NotContains(t, bundle.Files, "src/unrelated.js")
	assert.False(t, bundle.Truncated)
}

func TestBuild_FallsBackToEntryPoints(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.js", "console.log('hi')")

	b := New(50000)
	bundle := b.Build(root, "zzzz qqqq wwww")

	assert.Contains(t, bundle.Files, "index.js")
}

func TestBuild_FollowsLocalImports(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/widget.js", "import { helper } from './helper'; function widget() { helper(); }")
	writeFile(t, root, "src/helper.js", "export function helper() {}")

	b := New(50000)
	bundle := b.Build(root, "fix the widget rendering")

	assert.Contains(t, bundle.Files, "src/widget.js")
	assert.Contains(t, bundle.Files, "src/helper.js")
}

func TestBuild_TruncatesAtMaxChars(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/widget.js", "widget content padded out with extra text to exceed the bound")
	writeFile(t, root, "index.js", "index content")

	b := New(10) // far smaller than any single file's section
	bundle := b.Build(root, "fix the widget rendering")

	assert.True(t, bundle.Truncated)
}

func TestBuild_Deterministic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b_file.js", "widget widget widget")
	writeFile(t, root, "a_file.js", "widget widget widget")

	b := New(50000)
	bundle1 := b.Build(root, "fix the widget")
	bundle2 := b.Build(root, "fix the widget")

	assert.Equal(t, bundle1.Text, bundle2.Text)
	assert.Equal(t, []string{"a_file.js", "b_file.js"}, bundle1.Files)
}
