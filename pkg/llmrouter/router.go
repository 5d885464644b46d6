// Package llmrouter adapts the two supported LLM provider variants
// (claude, gpt) behind one synchronous interface returning text plus
// token usage, per spec §4.1c/§6. Concrete provider HTTP clients are
// out of scope (spec §1); callers inject a Transport.
package llmrouter

import (
	"context"
	"fmt"

	"github.com/vibe-engine/vibe-engine/pkg/config"
)

// Usage reports token consumption for a single completion, the figures
// BillingMeter turns into a cost.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Transport performs the actual provider call. Implementations are
// injected per model variant; this package owns only routing and
// variant validation, matching spec §1's exclusion of "concrete LLM
// provider HTTP clients" from scope.
type Transport interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (text string, usage Usage, err error)
}

// Router dispatches a completion request to the Transport registered
// for the job's configured model, falling back to claude's transport
// for unrecognised variants (mirroring BillingMeter's rate-table
// fallback in spec §4.8, so routing and billing never disagree about
// "which model was actually used").
type Router struct {
	transports map[config.LLMModel]Transport
}

// New returns a Router with no transports registered. Register must be
// called for every model variant the deployment supports before Route
// is used.
func New() *Router {
	return &Router{transports: make(map[config.LLMModel]Transport)}
}

// Register binds a Transport to a model variant.
func (r *Router) Register(model config.LLMModel, t Transport) {
	r.transports[model] = t
}

// Route performs a single completion call for model, using systemPrompt
// (built by the caller from the iteration's feedback/fallback state)
// and userPrompt (the ContextBuilder bundle plus the original request).
func (r *Router) Route(ctx context.Context, model config.LLMModel, systemPrompt, userPrompt string) (string, Usage, error) {
	t, ok := r.transports[model]
	if !ok {
		t, ok = r.transports[config.ModelClaude]
		if !ok {
			return "", Usage{}, fmt.Errorf("llmrouter: no transport registered for %q and no claude fallback available", model)
		}
	}
	text, usage, err := t.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", Usage{}, fmt.Errorf("llmrouter: completion failed for model %q: %w", model, err)
	}
	return text, usage, nil
}
