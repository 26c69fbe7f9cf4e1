package reader

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

// MarkdownFormat implements Format for Markdown files.
type MarkdownFormat struct{}

func init() {
	Register(&MarkdownFormat{})
}

func (f *MarkdownFormat) Name() string         { return "Markdown" }
func (f *MarkdownFormat) Extensions() []string { return []string{".md", ".markdown"} }

var (
	// headerRegex matches markdown headers (# to ######)
	headerRegex = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*$`)
	listRegex   = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+`)
	quoteRegex  = regexp.MustCompile(`^\s*>\s?`)
	fenceRegex  = regexp.MustCompile("^\\s*(```|~~~)")
	ruleRegex   = regexp.MustCompile(`^\s*([-*_])(\s*([-*_]))*\s*$`)
	imageRegex  = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkRegex   = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	emphRegex   = regexp.MustCompile("(\\*{1,3}|_{1,3}|`+|~~)")
)

// Extract returns the prose of a Markdown file. Headers, list items and
// quotes become paragraphs of their own, consecutive lines of running text
// are joined, and code blocks are skipped.
func (f *MarkdownFormat) Extract(filename string) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var out []string
	var para []string
	flush := func() {
		if len(para) > 0 {
			out = append(out, strings.Join(para, " "))
			para = para[:0]
		}
	}

	inFence := false
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if fenceRegex.MatchString(line) {
			flush()
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if strings.TrimSpace(line) == "" || ruleRegex.MatchString(line) {
			flush()
			continue
		}

		// Check if line is a header
		if match := headerRegex.FindStringSubmatch(line); match != nil {
			flush()
			out = append(out, stripInline(match[2]))
			continue
		}
		if listRegex.MatchString(line) {
			flush()
			line = listRegex.ReplaceAllString(line, "")
		}
		line = quoteRegex.ReplaceAllString(line, "")
		if text := stripInline(line); text != "" {
			para = append(para, text)
		}
	}
	flush()
	return strings.Join(out, "\n"), scanner.Err()
}

// stripInline removes emphasis markers and reduces links and images to
// their text.
func stripInline(s string) string {
	s = imageRegex.ReplaceAllString(s, "$1")
	s = linkRegex.ReplaceAllString(s, "$1")
	s = emphRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
