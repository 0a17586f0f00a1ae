package internal

import (
	"regexp"
	"strings"
)

var (
	mdImagePattern   = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLinkPattern    = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdHeadingPattern = regexp.MustCompile(`^#{1,6}\s+`)
	mdListPattern    = regexp.MustCompile(`^(\s*)[-*+]\s+`)

	// Matched delimiter pairs only; a stray * or _ stays in the text.
	mdEmphasisPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\*\*([^*]+)\*\*`),
		regexp.MustCompile(`__([^_]+)__`),
		regexp.MustCompile(`\*([^*]+)\*`),
		regexp.MustCompile(`_([^_]+)_`),
	}
)

// FlattenMarkdown strips markdown syntax down to readable plain text, the
// same pass the corpus goes through before chunking. Fenced code blocks are
// kept verbatim, fences included, so the chunker can treat them as atomic.
func FlattenMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	inFence := false

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			out = append(out, line)
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}
		out = append(out, flattenLine(line))
	}

	return strings.Join(out, "\n")
}

func flattenLine(line string) string {
	line = mdImagePattern.ReplaceAllString(line, "$1")
	line = mdLinkPattern.ReplaceAllString(line, "$1")
	line = mdHeadingPattern.ReplaceAllString(line, "")
	line = mdListPattern.ReplaceAllString(line, "$1")
	for _, pattern := range mdEmphasisPatterns {
		line = pattern.ReplaceAllString(line, "$1")
	}
	line = strings.ReplaceAll(line, "`", "")
	line = strings.TrimPrefix(line, "> ")
	return line
}
