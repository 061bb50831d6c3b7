package normalize

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/hotswap/internal/ctxlog"
	"github.com/vk/hotswap/internal/dsl"
)

func TestNormalize_Rules(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "canonical lambda is untouched",
			input:    "(series, params) -> crossUp(sma(series,9), sma(series,21))",
			expected: "(series, params) -> crossUp(sma(series,9), sma(series,21))",
		},
		{
			name:     "legacy lambda with missing series and paren",
			input:    "(s, p) => crossover(SMA(9), SMA(21)",
			expected: "(s, p) -> crossUp(sma(s, 9), sma(s, 21))",
		},
		{
			name:     "typed single parameter header",
			input:    "(series: Series) -> rsi(series) < 30",
			expected: "(series, params) -> rsi(series, 14) < 30",
		},
		{
			name:     "bare expression gets a header",
			input:    "crossUp(ema(9), ema(21))",
			expected: "(series, params) -> crossUp(ema(series, 9), ema(series, 21))",
		},
		{
			name:     "swapped indicator arguments",
			input:    "(series, params) -> sma(params.fast, series.high) > 0",
			expected: "(series, params) -> sma(series.high, params.fast) > 0",
		},
		{
			name:  "bare body is wrapped in a strategy block",
			input: "entry = crossover(sma(series, 9), sma(series, 21));\r\nexit = crossunder(sma(series, 9), sma(series, 21));\r\n",
			expected: "strategy \"main\" {\n" +
				"  entry = crossUp(sma(series, 9), sma(series, 21))\n" +
				"  exit = crossDown(sma(series, 9), sma(series, 21))\n" +
				"}",
		},
		{
			name:     "foreign block name and keyword operators",
			input:    "rule \"golden\" {\n  entry = sma(series, 9) > sma(series, 21) and not bar.close() < 1\n}",
			expected: "strategy \"golden\" {\n  entry = sma(series, 9) > sma(series, 21) && !bar.close < 1\n}",
		},
		{
			name:     "unlabelled strategy block",
			input:    "strategy {\n  entry = ta.crossover(series.close, sma(series, 5))\n}",
			expected: "strategy \"main\" {\n  entry = crossUp(series.close, sma(series, 5))\n}",
		},
		{
			name: "parens balanced per statement",
			input: "strategy \"x\" {\n" +
				"  entry = crossUp(sma(series, 9), sma(series, 21)\n" +
				"  exit = false))\n" +
				"}",
			expected: "strategy \"x\" {\n" +
				"  entry = crossUp(sma(series, 9), sma(series, 21))\n" +
				"  exit = false\n" +
				"}",
		},
		{
			name:     "closing paren goes before a trailing comment",
			input:    "(series, params) -> crossUp(series.close, sma(series, 5) # fast cross",
			expected: "(series, params) -> crossUp(series.close, sma(series, 5)) # fast cross",
		},
		{
			name:     "string contents are left alone",
			input:    "(series, params) -> \"buy and hold\" == \"x\" and true",
			expected: "(series, params) -> \"buy and hold\" == \"x\" && true",
		},
		{
			name:     "unicode operators",
			input:    "(series, params) → bar.close ≥ 10",
			expected: "(series, params) -> bar.close >= 10",
		},
		{
			name:     "paren in a block comment is not counted",
			input:    "strategy \"x\" {\n  entry = last(series) > 1 /* was: crossUp( */\n}",
			expected: "strategy \"x\" {\n  entry = last(series) > 1 /* was: crossUp( */\n}",
		},
		{
			name:     "closing paren goes before a block comment",
			input:    "(series, params) -> crossUp(series.close, sma(series, 5) /* fast ( */",
			expected: "(series, params) -> crossUp(series.close, sma(series, 5)) /* fast ( */",
		},
		{
			name:     "heredoc contents are left alone",
			input:    "strategy \"x\" {\n  description = <<EOT\nrule {\nbuy and (hold\nEOT\n  entry = true\n}",
			expected: "strategy \"x\" {\n  description = <<EOT\nrule {\nbuy and (hold\nEOT\n  entry = true\n}",
		},
		{
			name:     "smart quotes inside a string are left alone",
			input:    "strategy \"x\" {\n  description = \"say \u201chi\u201d\"\n  entry = true\n}",
			expected: "strategy \"x\" {\n  description = \"say \u201chi\u201d\"\n  entry = true\n}",
		},
		{
			name:     "keywords used as object keys",
			input:    "strategy \"x\" {\n  params = { and = 1, not = 2 }\n  entry = params.and > 0\n}",
			expected: "strategy \"x\" {\n  params = { and = 1, not = 2 }\n  entry = params.and > 0\n}",
		},
		{
			name:     "identifier label is not wrapped again",
			input:    "strategy plain {\n  entry = true\n}",
			expected: "strategy plain {\n  entry = true\n}",
		},
		{
			name:     "semicolon ending a heredoc line is kept",
			input:    "strategy \"x\" {\n  description = <<EOT\nbuy;\nEOT\n  entry = true;\n}",
			expected: "strategy \"x\" {\n  description = <<EOT\nbuy;\nEOT\n  entry = true\n}",
		},
		{
			name:     "empty input",
			input:    "  \n\t ",
			expected: "",
		},
	}

	n := New()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := n.Normalize(context.Background(), tc.input)
			if diff := cmp.Diff(tc.expected, got); diff != "" {
				t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

var idempotenceCorpus = []string{
	"",
	"(",
	")",
	"\"",
	"(series, params) -> crossUp(sma(series,9), sma(series,21))",
	"(s, p) => crossover(SMA(9), SMA(21)",
	"entry = crossover(sma(series, 9), sma(series, 21));",
	"rule {\n entry = a and b or not c\n}",
	"strategy \"x\" {\n entry = ((((\n}",
	"(a) ->",
	"(a, b, c) -> a",
	"((((series))) -> 1",
	"entry = \"unterminated (",
	"sma(9) # comment (",
	"x = 1\ny == 2\n(z",
	"strategy_v2 \"old\" {\r\n  params = { fast = 9 }\r\n  entry = crossUp(sma(9), sma(params.fast));\r\n}",
	"→ ≥ ≤ ≠ “quoted”",
	"\ufeff(series, params) -> rsi(series.close) < 30",
	"strategy \"x\" {\n  entry = last(series) > 1 /* was: crossUp( */\n}",
	"entry = f( /* unterminated",
	"description = <<EOT\n(\n",
	"x = \"${sma(9)\"",
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	n := New()
	ctx := context.Background()
	for _, input := range idempotenceCorpus {
		once := n.Normalize(ctx, input)
		twice := n.Normalize(ctx, once)
		require.Equal(t, once, twice, "normalize is not idempotent for %q", input)
	}
}

func FuzzNormalize_Idempotent(f *testing.F) {
	for _, seed := range idempotenceCorpus {
		f.Add(seed)
	}
	n := New()
	f.Fuzz(func(t *testing.T, input string) {
		once := n.Normalize(context.Background(), input)
		twice := n.Normalize(context.Background(), once)
		if once != twice {
			t.Fatalf("normalize is not idempotent for %q:\nonce:  %q\ntwice: %q", input, once, twice)
		}
	})
}

func TestNormalize_PanickingRuleIsSkipped(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	n := New(
		Rule{Name: "upper", Apply: strings.ToUpper},
		Rule{Name: "explode", Apply: func(string) string { panic("boom") }},
		Rule{Name: "suffix", Apply: func(s string) string {
			if strings.HasSuffix(s, "!") {
				return s
			}
			return s + "!"
		}},
	)

	// --- Act ---
	got := n.Normalize(ctx, "abc")

	// --- Assert ---
	assert.Equal(t, "ABC!", got)
	assert.Contains(t, buf.String(), "NormalizationRuleSkipped")
	assert.Contains(t, buf.String(), "rule=explode")
}

func TestNormalize_ConcurrentUse(t *testing.T) {
	t.Parallel()

	n := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := n.Normalize(context.Background(), "(s, p) => crossover(SMA(9), SMA(21)")
			assert.Equal(t, "(s, p) -> crossUp(sma(s, 9), sma(s, 21))", got)
		}()
	}
	wg.Wait()
}

func TestDefaultRules_Order(t *testing.T) {
	t.Parallel()

	names := New().Rules()
	index := func(name string) int {
		for i, n := range names {
			if n == name {
				return i
			}
		}
		t.Fatalf("rule %q not found", name)
		return -1
	}

	assert.Less(t, index("block-name"), index("missing-declaration"))
	assert.Less(t, index("missing-declaration"), index("indicator-arity"))
	assert.Less(t, index("paren-balance"), index("indicator-arity"))
}

func TestFixIndicatorArity_EveryIndicator(t *testing.T) {
	t.Parallel()

	for _, name := range dsl.IndicatorNames() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			// --- Arrange ---
			src := "(series, params) -> " + name + "(10) > 0"

			// --- Act ---
			got := fixIndicatorArity(src)

			// --- Assert ---
			assert.Equal(t, "(series, params) -> "+name+"(series, 10) > 0", got)
		})
	}
}
