package normalize

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

type runKind int

const (
	runCode runKind = iota
	// runText is a quoted template or heredoc, delimiters included.
	runText
	runComment
)

// run is a stretch of source of one kind, as byte offsets.
type run struct {
	kind       runKind
	start, end int
}

// lexRuns splits src into code, literal text and comments using the HCL
// scanner, which tokenizes input that does not parse. Whitespace between
// tokens counts as code. closed is false when a quoted string or heredoc is
// never terminated; everything from its opening on is then text.
func lexRuns(src string) (runs []run, closed bool) {
	if src == "" {
		return nil, true
	}
	tokens, _ := hclsyntax.LexConfig([]byte(src), "", hcl.InitialPos)

	kinds := make([]runKind, len(src))
	mark := func(start, end int, kind runKind) {
		start, end = max(start, 0), min(end, len(src))
		for i := start; i < end; i++ {
			kinds[i] = kind
		}
	}

	depth, prevEnd := 0, 0
	for _, tok := range tokens {
		start, end := tok.Range.Start.Byte, tok.Range.End.Byte
		if depth > 0 {
			mark(prevEnd, end, runText)
		}
		switch tok.Type {
		case hclsyntax.TokenComment:
			if depth == 0 {
				mark(start, end, runComment)
			}
		case hclsyntax.TokenOQuote, hclsyntax.TokenOHeredoc:
			mark(start, end, runText)
			depth++
		case hclsyntax.TokenCQuote, hclsyntax.TokenCHeredoc:
			mark(start, end, runText)
			if depth > 0 {
				depth--
			}
		}
		prevEnd = max(prevEnd, end)
	}
	if depth > 0 {
		mark(prevEnd, len(src), runText)
	}

	cur := run{kind: kinds[0]}
	for i := 1; i < len(src); i++ {
		if kinds[i] != cur.kind {
			cur.end = i
			runs = append(runs, cur)
			cur = run{kind: kinds[i], start: i}
		}
	}
	cur.end = len(src)
	runs = append(runs, cur)
	return runs, depth == 0
}

// codeAt reports whether the byte at off is code. Offsets past the end are.
func codeAt(runs []run, off int) bool {
	for _, r := range runs {
		if off >= r.start && off < r.end {
			return r.kind == runCode
		}
	}
	return true
}

// parenBalanced reports whether every parenthesis in code closes one opened
// before it and none is left open.
func parenBalanced(src string, runs []run) bool {
	depth := 0
	for _, r := range runs {
		if r.kind != runCode {
			continue
		}
		for i := r.start; i < r.end; i++ {
			switch src[i] {
			case '(':
				depth++
			case ')':
				if depth == 0 {
					return false
				}
				depth--
			}
		}
	}
	return depth == 0
}

// mapCode applies fn to every code run of src, leaving strings, heredocs and
// comments as they are.
func mapCode(src string, fn func(code string) string) string {
	runs, _ := lexRuns(src)
	var b strings.Builder
	for _, r := range runs {
		text := src[r.start:r.end]
		if r.kind == runCode {
			text = fn(text)
		}
		b.WriteString(text)
	}
	return b.String()
}
