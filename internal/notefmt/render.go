package notefmt

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	boldRe    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe  = regexp.MustCompile(`\*(.+?)\*`)
	codeRe    = regexp.MustCompile("`([^`]+)`")
	linkRe    = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+)\)`)
	listRe    = regexp.MustCompile(`^[-*]\s+(.*)$`)
)

// Render converts Markdown to HTML. It is a deliberately small
// regexp-replacement renderer covering headings, emphasis, inline code,
// fenced code blocks, links, and unordered lists; any conforming renderer
// may be substituted.
func Render(markdown string) string {
	if markdown == "" {
		return ""
	}

	var out []string
	var inCode, inList bool

	closeList := func() {
		if inList {
			out = append(out, "</ul>")
			inList = false
		}
	}

	for _, line := range strings.Split(markdown, "\n") {
		if strings.HasPrefix(line, "```") {
			closeList()
			if inCode {
				out = append(out, "</code></pre>")
			} else {
				out = append(out, "<pre><code>")
			}
			inCode = !inCode
			continue
		}
		if inCode {
			out = append(out, html.EscapeString(line))
			continue
		}

		if m := headingRe.FindStringSubmatch(line); m != nil {
			closeList()
			level := len(m[1])
			out = append(out, fmt.Sprintf("<h%d>%s</h%d>", level, inline(m[2]), level))
			continue
		}
		if m := listRe.FindStringSubmatch(line); m != nil {
			if !inList {
				out = append(out, "<ul>")
				inList = true
			}
			out = append(out, "<li>"+inline(m[1])+"</li>")
			continue
		}

		closeList()
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, "<p>"+inline(line)+"</p>")
	}
	if inCode {
		out = append(out, "</code></pre>")
	}
	closeList()

	return strings.Join(out, "\n")
}

// inline applies span-level replacements to already block-parsed text.
func inline(s string) string {
	s = html.EscapeString(s)
	s = codeRe.ReplaceAllString(s, "<code>$1</code>")
	s = boldRe.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicRe.ReplaceAllString(s, "<em>$1</em>")
	s = linkRe.ReplaceAllString(s, `<a href="$2">$1</a>`)
	return s
}
