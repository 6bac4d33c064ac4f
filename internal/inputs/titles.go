package inputs

import (
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// markdownTitle parses the page with Goldmark and returns the text of the
// first level-1 heading, or "" when the document has none.
func markdownTitle(body []byte) string {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(body))

	var title string
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering || title != "" {
			return gmast.WalkContinue, nil
		}
		if h, ok := n.(*gmast.Heading); ok && h.Level == 1 {
			var sb strings.Builder
			for c := h.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*gmast.Text); ok {
					sb.Write(t.Segment.Value(body))
				}
			}
			title = strings.TrimSpace(sb.String())
			return gmast.WalkStop, nil
		}
		return gmast.WalkContinue, nil
	})
	return title
}

// restTitle scans for the first reStructuredText section title: a non-empty
// line followed by an adornment line of punctuation at least as long as the
// title. Overline form (adornment above and below) is also accepted.
func restTitle(body []byte) string {
	lines := strings.Split(string(body), "\n")
	for i := 0; i < len(lines)-1; i++ {
		line := strings.TrimRight(lines[i], " \t")
		if line == "" {
			continue
		}
		next := strings.TrimRight(lines[i+1], " \t")
		if isAdornment(next) && len(next) >= len(line) {
			if isAdornment(line) {
				// Overline form: the real title is the line below this one.
				continue
			}
			return strings.TrimSpace(line)
		}
	}
	return ""
}

// isAdornment reports whether the line consists solely of one repeated
// reST section punctuation character.
func isAdornment(line string) bool {
	if len(line) < 2 {
		return false
	}
	first := line[0]
	if !strings.ContainsRune(`=-~^"'`+"`"+`#*+.:_`, rune(first)) {
		return false
	}
	for i := 1; i < len(line); i++ {
		if line[i] != first {
			return false
		}
	}
	return true
}
