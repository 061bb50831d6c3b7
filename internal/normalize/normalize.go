// Package normalize repairs common authoring mistakes in strategy source
// before it reaches a compiler backend.
//
// The repairs are heuristic and unsound. A rewritten source that still fails
// to compile is simply reported by the backend; only a successful compile says
// anything about the source. Every rule is a pure string rewrite, so a single
// Normalizer may be shared by any number of concurrent compiles.
package normalize

import (
	"context"
	"fmt"

	"github.com/vk/hotswap/internal/ctxlog"
)

// maxPasses bounds the fixpoint loop in Normalize.
const maxPasses = 4

// Rule is one named rewrite step of the pipeline.
type Rule struct {
	Name  string
	Apply func(src string) string
}

// Normalizer applies an ordered list of rules.
type Normalizer struct {
	rules []Rule
}

// New creates a Normalizer. With no rules it uses DefaultRules.
func New(rules ...Rule) *Normalizer {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Normalizer{rules: rules}
}

// Rules returns the names of the configured rules in application order.
func (n *Normalizer) Rules() []string {
	names := make([]string, len(n.rules))
	for i, r := range n.rules {
		names[i] = r.Name
	}
	return names
}

// Normalize runs the rule pipeline until the text stops changing. It never
// fails: a rule that panics is skipped for that pass and the text it was
// given flows on to the next rule.
func (n *Normalizer) Normalize(ctx context.Context, raw string) string {
	out := raw
	for pass := 0; pass < maxPasses; pass++ {
		next := n.apply(ctx, out)
		if next == out {
			return out
		}
		out = next
	}
	return out
}

func (n *Normalizer) apply(ctx context.Context, src string) string {
	for _, rule := range n.rules {
		src = n.applyRule(ctx, rule, src)
	}
	return src
}

func (n *Normalizer) applyRule(ctx context.Context, rule Rule, src string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Warn("Normalization rule skipped.",
				"kind", "NormalizationRuleSkipped",
				"rule", rule.Name,
				"error", fmt.Sprint(r),
			)
			out = src
		}
	}()
	return rule.Apply(src)
}
