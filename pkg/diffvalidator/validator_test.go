package diffvalidator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	err error
}

func (s stubChecker) ApplyCheck(context.Context, string) error { return s.err }

func validDiff(body string) string {
	return "diff --git a/foo.txt b/foo.txt\n" +
		"index 1111111..2222222 100644\n" +
		"--- a/foo.txt\n" +
		"+++ b/foo.txt\n" +
		"@@ -1,1 +1,1 @@\n" +
		body + "\n"
}

func TestValidate_NoChangesSentinel(t *testing.T) {
	v := New(5000)
	out := v.Validate(context.Background(), "  NO_CHANGES  ", "", t.TempDir(), nil)
	assert.True(t, out.Accepted)
	assert.True(t, out.NoChanges)
	assert.Empty(t, out.Diff)
}

func TestValidate_NoChangesEmbeddedAnywhere(t *testing.T) {
	v := New(5000)
	out := v.Validate(context.Background(), "well, NO_CHANGES are needed here", "", t.TempDir(), nil)
	assert.True(t, out.Accepted)
	assert.True(t, out.NoChanges)
}

func TestValidate_RejectsNonDiffGarbage(t *testing.T) {
	v := New(5000)
	out := v.Validate(context.Background(), "I think the answer is 42.", "", t.TempDir(), nil)
	assert.False(t, out.Accepted)
	require.NotEmpty(t, out.Errors)
}

func TestValidate_AcceptsFencedDiff(t *testing.T) {
	raw := "```diff\n" + validDiff("-old\n+new") + "```"
	v := New(5000)
	out := v.Validate(context.Background(), raw, "", t.TempDir(), stubChecker{})
	assert.True(t, out.Accepted)
	assert.False(t, out.NoChanges)
	assert.True(t, strings.HasPrefix(out.Diff, "diff --git "))
}

func TestValidate_RejectsCommentaryPreamble(t *testing.T) {
	raw := "Here's the diff:\n" + validDiff("-old\n+new")
	v := New(5000)
	out := v.Validate(context.Background(), raw, "", t.TempDir(), stubChecker{})
	assert.False(t, out.Accepted)
	assert.Contains(t, out.Errors[0], "commentary")
}

func TestValidate_RejectsTooFewLines(t *testing.T) {
	v := New(5000)
	out := v.Validate(context.Background(), "diff --git a/x b/x\nfoo\n", "", t.TempDir(), nil)
	assert.False(t, out.Accepted)
}

func TestValidate_RejectsMissingHunkMarker(t *testing.T) {
	raw := "diff --git a/foo.txt b/foo.txt\n--- a/foo.txt\n+++ b/foo.txt\nnot a hunk\n"
	v := New(5000)
	out := v.Validate(context.Background(), raw, "", t.TempDir(), nil)
	assert.False(t, out.Accepted)
	assert.Contains(t, out.Errors[0], "hunk")
}

func TestValidate_RejectsOversizedDiff(t *testing.T) {
	var b strings.Builder
	b.WriteString("diff --git a/foo.txt b/foo.txt\n--- a/foo.txt\n+++ b/foo.txt\n@@ -1,1 +1,1 @@\n")
	for i := 0; i < 10; i++ {
		b.WriteString("+line\n")
	}
	v := New(5) // smaller than the body we just built
	out := v.Validate(context.Background(), b.String(), "", t.TempDir(), nil)
	assert.False(t, out.Accepted)
	assert.Contains(t, out.Errors[0], "maximum size")
}

func TestValidate_RejectsNewFileThatAlreadyExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.txt"), []byte("existing"), 0o644))

	raw := "diff --git a/foo.txt b/foo.txt\n" +
		"new file mode 100644\n" +
		"--- /dev/null\n" +
		"+++ b/foo.txt\n" +
		"@@ -0,0 +1,1 @@\n" +
		"+new content\n"

	v := New(5000)
	out := v.Validate(context.Background(), raw, "add a file", dir, nil)
	assert.False(t, out.Accepted)
	assert.Contains(t, out.Errors[0], "already exists")
}

func TestValidate_RejectsDeleteWithoutDeletionKeyword(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.txt"), []byte("existing"), 0o644))

	raw := "diff --git a/foo.txt b/foo.txt\n" +
		"deleted file mode 100644\n" +
		"--- a/foo.txt\n" +
		"+++ /dev/null\n" +
		"@@ -1,1 +0,0 @@\n" +
		"-existing\n"

	v := New(5000)
	out := v.Validate(context.Background(), raw, "please refactor this", dir, nil)
	assert.False(t, out.Accepted)
	assert.Contains(t, out.Errors[0], "deletion keyword")
}

func TestValidate_AllowsDeleteWithDeletionKeyword(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.txt"), []byte("existing"), 0o644))

	raw := "diff --git a/foo.txt b/foo.txt\n" +
		"deleted file mode 100644\n" +
		"--- a/foo.txt\n" +
		"+++ /dev/null\n" +
		"@@ -1,1 +0,0 @@\n" +
		"-existing\n"

	v := New(5000)
	out := v.Validate(context.Background(), raw, "please delete foo.txt", dir, stubChecker{})
	assert.True(t, out.Accepted)
}

func TestValidate_AppliesApplicabilityProbe(t *testing.T) {
	v := New(5000)
	out := v.Validate(context.Background(), validDiff("-old\n+new"), "", t.TempDir(), stubChecker{err: assert.AnError})
	assert.False(t, out.Accepted)
	assert.Contains(t, out.Errors[0], "does not apply")
}

func TestNormalise_Idempotent(t *testing.T) {
	text, _, _, ok := normalise(validDiff("-old\n+new"))
	require.True(t, ok)

	text2, _, _, ok2 := normalise(text)
	require.True(t, ok2)
	assert.Equal(t, text, text2)
}

func TestStructuralValidate_BoundaryExactMax(t *testing.T) {
	var b strings.Builder
	b.WriteString("diff --git a/foo.txt b/foo.txt\n--- a/foo.txt\n+++ b/foo.txt\n@@ -1,1 +1,1 @@\n")
	lines := 4
	for lines < 6 {
		b.WriteString("+line\n")
		lines++
	}
	text := b.String()
	totalLines := len(strings.Split(strings.TrimSuffix(text, "\n"), "\n"))

	_, out := structuralValidate(text, totalLines)
	assert.Nil(t, out)

	_, out = structuralValidate(text, totalLines-1)
	assert.NotNil(t, out)
}
