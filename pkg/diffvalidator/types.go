// Package diffvalidator turns a raw LLM completion into either a
// normalised, apply-ready unified diff, the literal sentinel
// "NO_CHANGES", or a structured rejection an engine can feed back into
// the next prompt.
package diffvalidator

// Outcome is the result of running Validate over a raw LLM completion.
type Outcome struct {
	// Accepted is true when Diff (or NoChanges) may be used.
	Accepted bool

	// NoChanges is true when the model explicitly reported no diff was
	// needed. Diff is empty in that case.
	NoChanges bool

	// Diff is the normalised unified diff text, present only when
	// Accepted && !NoChanges.
	Diff string

	// Errors holds one or more human-readable rejection reasons. Always
	// non-empty when !Accepted, per the "R is non-empty and identifies
	// the failing rule" testable property.
	Errors []string
}

func rejected(reason string) *Outcome {
	return &Outcome{Errors: []string{reason}}
}

// fileBlock is one `diff --git a/x b/x` section of a unified diff.
type fileBlock struct {
	header  string // the "diff --git a/x b/x" line
	body    []string
	isNew   bool
	isDel   bool
	devNull struct {
		source bool // "--- /dev/null"
		target bool // "+++ /dev/null"
	}
	sourcePath string // path with a/ prefix stripped
	targetPath string // path with b/ prefix stripped
}
