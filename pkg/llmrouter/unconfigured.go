package llmrouter

import (
	"context"
	"fmt"
)

// UnconfiguredTransport is registered for a model variant when no real
// provider client has been wired at the composition root yet (spec
// §1 explicitly keeps concrete provider HTTP clients out of scope). It
// fails clearly instead of silently fabricating a response, so a
// deployment that forgot to call Register for a model learns about it
// on the first job rather than from a confusing downstream error.
type UnconfiguredTransport struct {
	Model string
}

// Complete always fails with a message naming the unconfigured model.
func (t UnconfiguredTransport) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, error) {
	return "", Usage{}, fmt.Errorf("llmrouter: no provider client configured for model %q", t.Model)
}
