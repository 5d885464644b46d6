// Package agentpipeline runs the post-build supplementary agents —
// debug, QA, UX, security — described in spec §4.5, each with its own
// contract and failure semantics.
package agentpipeline

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// securityRule is one fixed rule in the security agent's scan table,
// mirroring the named-pattern-table shape of pkg/masking's builtin
// pattern registry. unless, when set, suppresses a match: the rule only
// fires when regex matches AND unless does not, so a rule can flag "X
// without Y" instead of just "X".
type securityRule struct {
	name     string
	regex    *regexp.Regexp
	unless   *regexp.Regexp
	critical bool
}

// authMiddlewareReference matches common auth/middleware identifiers a
// route handler file would reference if it were actually protected —
// router.use(...) guards, passport/jwt helpers, or a same-file
// requireAuth/isAuthenticated-style function — even when that reference
// isn't the literal second argument to the route call itself.
var authMiddlewareReference = regexp.MustCompile(`(?i)(require|ensure|is)?auth(enticat(e|ion|ed))?|passport\.|jwt\.verify|verifyToken|\.use\(\s*(requireAuth|authMiddleware|protect)\b`)

var securityRules = []securityRule{
	{name: "hardcoded-secret-assignment", regex: regexp.MustCompile(`(?i)(key|secret|password|token)\s*[:=]\s*['"][A-Za-z0-9+/_=-]{8,}['"]`), critical: true},
	{name: "aws-access-key", regex: regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), critical: true},
	{name: "pem-private-key", regex: regexp.MustCompile(`-----BEGIN (RSA |EC )?PRIVATE KEY-----`), critical: true},
	{name: "env-var-exposed-in-response", regex: regexp.MustCompile(`(?i)(res\.(json|send)|console\.log|log\.(info|error|print))\([^)]*process\.env`), critical: true},
	{name: "rls-disabled", regex: regexp.MustCompile(`(?i)disable\s+row\s+level\s+security|force\s+row\s+level\s+security\s+off`), critical: true},
	{
		name:     "route-without-auth-middleware",
		regex:    regexp.MustCompile(`(?i)(router|app)\.(get|post|put|delete|patch)\(\s*['"][^'"]+['"]\s*,\s*(async\s*)?\(`),
		unless:   authMiddlewareReference,
		critical: false,
	},
}

var skipSecurityDirs = map[string]bool{
	"node_modules": true, ".git": true, "dist": true, "build": true, ".next": true, "coverage": true,
}

// SecurityFinding is one match against the rule table. Kept internal to
// the process log — never forwarded to the event stream, per spec §4.5
// ("finding details ... never appear in the event stream").
type SecurityFinding struct {
	Rule     string
	Path     string
	Critical bool
}

// SecurityReport summarises a worktree scan: counts are safe to log to
// the user-visible event stream, Findings are not.
type SecurityReport struct {
	CriticalCount int
	WarningCount  int
	Findings      []SecurityFinding
	Blocked       bool
}

// RunSecurityAgent walks worktreeDir and scans every file against the
// fixed rule table, skipping build/vendor directories and test fixture
// files (paths containing "fixture" or "testdata").
func RunSecurityAgent(worktreeDir string) SecurityReport {
	var report SecurityReport

	_ = filepath.Walk(worktreeDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil //nolint:nilerr
		}
		if info.IsDir() {
			if skipSecurityDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if isTestFixture(path) {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(worktreeDir, path)
		scanFile(rel, string(content), &report)
		return nil
	})

	report.Blocked = report.CriticalCount > 0
	return report
}

func isTestFixture(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "fixture") || strings.Contains(lower, "testdata")
}

func scanFile(relPath, content string, report *SecurityReport) {
	for _, rule := range securityRules {
		if !rule.regex.MatchString(content) {
			continue
		}
		if rule.unless != nil && rule.unless.MatchString(content) {
			continue
		}
		report.Findings = append(report.Findings, SecurityFinding{Rule: rule.name, Path: relPath, Critical: rule.critical})
		if rule.critical {
			report.CriticalCount++
		} else {
			report.WarningCount++
		}
	}
}
