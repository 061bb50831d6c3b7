package normalize

import (
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/hotswap/internal/dsl"
)

// DefaultRules returns the rewrite pipeline in the order it must run. Later
// rules rely on earlier ones: block-name must settle the block header before
// missing-declaration decides whether a body needs wrapping, and
// indicator-arity only recognises calls once paren-balance has closed them.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "line-endings", Apply: fixLineEndings},
		{Name: "unicode-operators", Apply: fixUnicodeOperators},
		{Name: "statement-terminators", Apply: stripTerminators},
		{Name: "lambda-header", Apply: fixLambdaHeader},
		{Name: "legacy-calls", Apply: fixLegacyCalls},
		{Name: "logical-keywords", Apply: fixLogicalKeywords},
		{Name: "block-name", Apply: fixBlockName},
		{Name: "missing-declaration", Apply: insertDeclaration},
		{Name: "paren-balance", Apply: balanceParens},
		{Name: "indicator-arity", Apply: fixIndicatorArity},
	}
}

const (
	defaultSeriesName = "series"
	defaultParamsName = "params"
	defaultBlockLabel = "main"
)

var (
	identRe         = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	lambdaHeaderRe  = regexp.MustCompile(`^\(([^()]*)\)\s*(?:->|=>)\s*`)
	strategyBlockRe = regexp.MustCompile(`(?m)^\s*strategy\s+(?:"[^"\n]*"|[A-Za-z_][A-Za-z0-9_-]*)\s*\{`)
	attrLineRe      = regexp.MustCompile(`^\s*[A-Za-z_][A-Za-z0-9_]*\s*=(?:[^=>]|$)`)
	blockHeaderRe   = regexp.MustCompile(`(?m)^([ \t]*)(rule|signal|algo|Strategy|STRATEGY|strategy_v[0-9]+|strategy)[ \t]*("[^"\n]*")?[ \t]*\{`)
	callRe          = regexp.MustCompile(`\b(ta\.)?([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	accessorCallRe  = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\.(open|high|low|close|volume|length)\s*\(\s*\)`)
	// The keyword must be followed by an operand, so "and = 1" stays a key.
	andRe = regexp.MustCompile(`\s+and\s+([^=\s])`)
	orRe  = regexp.MustCompile(`\s+or\s+([^=\s])`)
	notRe = regexp.MustCompile(`\bnot\s+([^=\s])`)
)

var unicodeOperators = strings.NewReplacer(
	"\u2192", "->",
	"\u21d2", "=>",
	"\u2265", ">=",
	"\u2264", "<=",
	"\u2260", "!=",
	"\u201c", `"`,
	"\u201d", `"`,
	"\u00a0", " ",
)

// legacyNames maps outdated or foreign spellings onto the current function
// table.
var legacyNames = map[string]string{
	"crossover":   "crossUp",
	"crossunder":  "crossDown",
	"cross_over":  "crossUp",
	"cross_under": "crossDown",
	"cross_up":    "crossUp",
	"cross_down":  "crossDown",
	"crossAbove":  "crossUp",
	"crossBelow":  "crossDown",
	"SMA":         "sma",
	"EMA":         "ema",
	"RSI":         "rsi",
	"Highest":     "highest",
	"Lowest":      "lowest",
}

func fixLineEndings(src string) string {
	s := strings.TrimPrefix(src, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func fixUnicodeOperators(src string) string {
	return mapCode(src, unicodeOperators.Replace)
}

func stripTerminators(src string) string {
	runs, _ := lexRuns(src)
	lines := strings.Split(src, "\n")
	offset := 0
	for i, line := range lines {
		start := offset
		offset += len(line) + 1
		trimmed := strings.TrimRight(line, " \t;")
		// A semicolon closing a heredoc or comment line is content.
		if semi := strings.IndexByte(line[len(trimmed):], ';'); semi >= 0 && !codeAt(runs, start+len(trimmed)+semi) {
			continue
		}
		lines[i] = trimmed
	}
	return strings.Join(lines, "\n")
}

// fixLambdaHeader canonicalises "(a: T, b: U) => body" into "(a, b) -> body"
// and fills in a missing params argument.
func fixLambdaHeader(src string) string {
	m := lambdaHeaderRe.FindStringSubmatchIndex(src)
	if m == nil {
		return src
	}
	names, ok := parseLambdaParams(src[m[2]:m[3]])
	if !ok {
		return src
	}
	switch len(names) {
	case 0:
		names = []string{defaultSeriesName, defaultParamsName}
	case 1:
		if names[0] == defaultParamsName {
			names = []string{defaultSeriesName, defaultParamsName}
		} else {
			names = append(names, defaultParamsName)
		}
	case 2:
	default:
		return src
	}

	header := "(" + names[0] + ", " + names[1] + ") ->"
	body := src[m[1]:]
	if body == "" {
		return header
	}
	return header + " " + body
}

func parseLambdaParams(inner string) ([]string, bool) {
	if strings.TrimSpace(inner) == "" {
		return nil, true
	}
	parts := strings.Split(inner, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		name, _, _ := strings.Cut(p, ":")
		name = strings.TrimSpace(name)
		if !identRe.MatchString(name) {
			return nil, false
		}
		names = append(names, name)
	}
	return names, true
}

// lambdaNames returns the series and params names bound by a lambda header,
// or the defaults when src is not in lambda form.
func lambdaNames(src string) (series, params string, isLambda bool) {
	m := lambdaHeaderRe.FindStringSubmatch(src)
	if m == nil {
		return defaultSeriesName, defaultParamsName, false
	}
	names, ok := parseLambdaParams(m[1])
	if !ok || len(names) != 2 {
		return defaultSeriesName, defaultParamsName, true
	}
	return names[0], names[1], true
}

func fixLegacyCalls(src string) string {
	return mapCode(src, func(code string) string {
		code = accessorCallRe.ReplaceAllString(code, "$1.$2")
		return callRe.ReplaceAllStringFunc(code, func(match string) string {
			sub := callRe.FindStringSubmatch(match)
			prefix, name := sub[1], sub[2]
			canonical, renamed := legacyNames[name]
			if !renamed {
				canonical = name
			}
			if !renamed && (prefix == "" || !dsl.IsFunction(canonical)) {
				return match
			}
			return canonical + "("
		})
	})
}

func fixLogicalKeywords(src string) string {
	return mapCode(src, func(code string) string {
		code = andRe.ReplaceAllString(code, " && $1")
		code = orRe.ReplaceAllString(code, " || $1")
		return notRe.ReplaceAllString(code, "!$1")
	})
}

// fixBlockName renames foreign block types to "strategy" and labels an
// unlabelled strategy block.
func fixBlockName(src string) string {
	runs, _ := lexRuns(src)
	var b strings.Builder
	last := 0
	for _, m := range blockHeaderRe.FindAllStringSubmatchIndex(src, -1) {
		if !codeAt(runs, m[4]) {
			continue
		}
		indent, kind, label := src[m[2]:m[3]], src[m[4]:m[5]], ""
		if m[6] >= 0 {
			label = src[m[6]:m[7]]
		}
		if kind == "strategy" && label != "" {
			continue
		}
		if label == "" {
			label = `"` + defaultBlockLabel + `"`
		}
		b.WriteString(src[last:m[0]])
		b.WriteString(indent + "strategy " + label + " {")
		last = m[1]
	}
	b.WriteString(src[last:])
	return b.String()
}

// insertDeclaration wraps a bare attribute body in a strategy block, and
// gives a bare expression the default lambda header.
func insertDeclaration(src string) string {
	if strings.TrimSpace(src) == "" || lambdaHeaderRe.MatchString(src) || strategyBlockRe.MatchString(src) || hasBlock(src) {
		return src
	}
	if !hasAttributeLine(src) {
		return "(" + defaultSeriesName + ", " + defaultParamsName + ") -> " + src
	}

	lines := strings.Split(src, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = "  " + line
		}
	}
	return `strategy "` + defaultBlockLabel + "\" {\n" + strings.Join(lines, "\n") + "\n}"
}

// hasBlock reports whether src parses as a body with at least one block.
func hasBlock(src string) bool {
	f, diags := hclsyntax.ParseConfig([]byte(src), "", hcl.InitialPos)
	if diags.HasErrors() {
		return false
	}
	body, ok := f.Body.(*hclsyntax.Body)
	return ok && len(body.Blocks) > 0
}

func hasAttributeLine(src string) bool {
	for _, line := range strings.Split(src, "\n") {
		if attrLineRe.MatchString(line) {
			return true
		}
	}
	return false
}

// balanceParens closes unclosed parentheses at the end of the statement that
// opened them and drops closing parentheses that match nothing.
func balanceParens(src string) string {
	runs, _ := lexRuns(src)
	if parenBalanced(src, runs) {
		return src
	}
	if lambdaHeaderRe.MatchString(src) {
		return balanceStatement(src)
	}

	lines := strings.Split(src, "\n")
	out := make([]string, 0, len(lines))
	var stmt []string
	flush := func() {
		if len(stmt) == 0 {
			return
		}
		out = append(out, strings.Split(balanceStatement(strings.Join(stmt, "\n")), "\n")...)
		stmt = nil
	}
	offset := 0
	for _, line := range lines {
		// A line inside a block comment or heredoc never starts a statement.
		if codeAt(runs, offset) && startsStatement(line) {
			flush()
		}
		stmt = append(stmt, line)
		offset += len(line) + 1
	}
	flush()
	return strings.Join(out, "\n")
}

func startsStatement(line string) bool {
	trimmed := strings.TrimSpace(line)
	return attrLineRe.MatchString(line) ||
		strings.HasPrefix(trimmed, "}") ||
		strings.HasSuffix(trimmed, "{")
}

func balanceStatement(s string) string {
	runs, closed := lexRuns(s)
	// An unterminated string hides where the statement really ends.
	if !closed {
		return s
	}

	var b strings.Builder
	depth := 0
	lastCode := 0
	for _, r := range runs {
		text := s[r.start:r.end]
		switch r.kind {
		case runComment:
			b.WriteString(text)
		case runText:
			b.WriteString(text)
			lastCode = b.Len()
		default:
			for i := 0; i < len(text); i++ {
				c := text[i]
				switch c {
				case '(':
					depth++
				case ')':
					if depth == 0 {
						continue
					}
					depth--
				}
				b.WriteByte(c)
				if c != ' ' && c != '\t' && c != '\n' {
					lastCode = b.Len()
				}
			}
		}
	}

	out := b.String()
	if depth == 0 {
		return out
	}
	return out[:lastCode] + strings.Repeat(")", depth) + out[lastCode:]
}

// fixIndicatorArity repairs indicator calls that omit the series argument,
// pass it second, or omit the conventional RSI period.
func fixIndicatorArity(src string) string {
	series, params, _ := lambdaNames(src)
	seriesArg := regexp.QuoteMeta(series) + `(?:\.[A-Za-z_][A-Za-z0-9_]*)?`
	periodArg := `[0-9]+|` + regexp.QuoteMeta(params) + `\.[A-Za-z_][A-Za-z0-9_]*`
	indicators := `(` + strings.Join(dsl.IndicatorNames(), "|") + `)`

	missingSeries := regexp.MustCompile(`\b` + indicators + `\(\s*(` + periodArg + `)\s*\)`)
	swapped := regexp.MustCompile(`\b` + indicators + `\(\s*(` + periodArg + `)\s*,\s*(` + seriesArg + `)\s*\)`)
	rsiNoPeriod := regexp.MustCompile(`\brsi\(\s*(` + seriesArg + `)\s*\)`)

	return mapCode(src, func(code string) string {
		code = missingSeries.ReplaceAllString(code, "$1("+series+", $2)")
		code = swapped.ReplaceAllString(code, "$1($3, $2)")
		return rsiNoPeriod.ReplaceAllString(code, "rsi($1, 14)")
	})
}
