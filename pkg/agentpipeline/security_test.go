package agentpipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSecFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRunSecurityAgent_FlagsHardcodedSecret(t *testing.T) {
	root := t.TempDir()
	writeSecFile(t, root, "config.js", `const apiKey = "sk_live_abcdefgh12345678"`)

	report := RunSecurityAgent(root)
	assert.True(t, report.Blocked)
	assert.Equal(t, 1, report.CriticalCount)
}

func TestRunSecurityAgent_FlagsRouteWithoutAuthAsWarning(t *testing.T) {
	root := t.TempDir()
	writeSecFile(t, root, "routes.js", `router.get('/admin', async (req, res) => { res.send('ok') })`)

	report := RunSecurityAgent(root)
	assert.False(t, report.Blocked)
	assert.Equal(t, 1, report.WarningCount)
}

func TestRunSecurityAgent_RouteWithAuthMiddlewareReferenceNotFlagged(t *testing.T) {
	root := t.TempDir()
	writeSecFile(t, root, "routes.js", `
router.use(requireAuth)
router.get('/admin', async (req, res) => { res.send('ok') })
`)

	report := RunSecurityAgent(root)
	assert.Equal(t, 0, report.WarningCount)
	assert.Empty(t, report.Findings)
}

func TestRunSecurityAgent_SkipsNodeModulesAndFixtures(t *testing.T) {
	root := t.TempDir()
	writeSecFile(t, root, "node_modules/pkg/config.js", `const secret = "abcdefgh12345678"`)
	writeSecFile(t, root, "testdata/fixture.js", `const password = "abcdefgh12345678"`)

	report := RunSecurityAgent(root)
	assert.Equal(t, 0, report.CriticalCount)
	assert.False(t, report.Blocked)
}

func TestRunSecurityAgent_CleanTreeHasNoFindings(t *testing.T) {
	root := t.TempDir()
	writeSecFile(t, root, "app.js", `console.log("hello world")`)

	report := RunSecurityAgent(root)
	assert.Empty(t, report.Findings)
	assert.False(t, report.Blocked)
}
