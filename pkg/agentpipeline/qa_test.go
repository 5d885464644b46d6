package agentpipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterNonTestFiles_ExcludesTestPaths(t *testing.T) {
	in := []string{
		"src/widget.js",
		"src/widget_test.go",
		"src/widget.test.ts",
		"test/helpers.js",
		"tests/helpers.js",
		"src/helper.py",
	}
	out := filterNonTestFiles(in)
	assert.Equal(t, []string{"src/widget.js", "src/helper.py"}, out)
}

func TestFilterNonTestFiles_EmptyWhenAllTests(t *testing.T) {
	out := filterNonTestFiles([]string{"a_test.go", "b.test.ts"})
	assert.Empty(t, out)
}

func TestTruncate_ShorterThanLimit(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
}

func TestTruncate_LongerThanLimit(t *testing.T) {
	assert.Equal(t, "abc", truncate("abcdef", 3))
}
