package chapterprovider

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hxann/radiotruyen/internal/domain"
)

// Common boilerplate found on story sites that should not be read aloud.
var textCleanupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^\s*Nguồn:.*$`),
	regexp.MustCompile(`(?im)^\s*(Text được lấy tại|Đọc truyện tại|Tìm truyện tại).*$`),
	regexp.MustCompile(`(?m)^\s*([=\-*_—–]){3,}\s*$`),
	regexp.MustCompile(`(?im)^\s*(o o o)\s*$`),
	regexp.MustCompile(`(?i)\b(truyenfull|sstruyen|tangthuvien|metruyencv)\.(vn|com)\b`),
}

var excessiveNewlines = regexp.MustCompile(`\n{3,}`)

var nextLinkText = regexp.MustCompile(`(?i)(chương\s+sau|chapter\s+sau|tiếp\s+theo|next)`)

var prevLinkText = regexp.MustCompile(`(?i)(chương\s+trước|chapter\s+trước|previous|prev)`)

// Elements whose text must never leak into the spoken content.
var junkElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Aside:    true,
	atom.Form:     true,
	atom.Button:   true,
	atom.Select:   true,
}

var blockElements = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.Br:         true,
	atom.Li:         true,
	atom.Tr:         true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.Blockquote: true,
}

// extractChapter pulls title, body text and navigation links out of a parsed
// chapter page. Story sites share no markup contract, so this works on
// structure: the first heading is the title, the element containing the most
// text is the chapter body, and next/prev come from rel attributes or link
// text.
func extractChapter(root *html.Node, base *url.URL) domain.Chapter {
	title := findTitle(root)
	content := extractText(findContentNode(root))

	if title != "" {
		content = strings.Replace(content, title, "", 1)
	}
	for _, pattern := range textCleanupPatterns {
		content = pattern.ReplaceAllString(content, "")
	}
	content = strings.TrimSpace(excessiveNewlines.ReplaceAllString(content, "\n\n"))

	nextURL, prevURL := findNavLinks(root, base)

	return domain.Chapter{
		Title:   title,
		Content: content,
		NextURL: nextURL,
		PrevURL: prevURL,
	}
}

func findTitle(root *html.Node) string {
	for _, heading := range []atom.Atom{atom.H1, atom.H2} {
		if node := findFirst(root, heading); node != nil {
			if title := strings.TrimSpace(nodeText(node)); title != "" {
				return title
			}
		}
	}
	if node := findFirst(root, atom.Title); node != nil {
		return strings.TrimSpace(nodeText(node))
	}
	return ""
}

// findContentNode returns the candidate container holding the most direct
// text. Scoring only text owned by the candidate itself (not its element
// children) keeps a wrapper div from always beating the actual chapter body
// nested inside it.
func findContentNode(root *html.Node) *html.Node {
	var best *html.Node
	bestScore := 0

	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && junkElements[node.DataAtom] {
			return
		}
		if isContentCandidate(node) {
			if score := directTextLength(node); score > bestScore {
				best = node
				bestScore = score
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	return best
}

func isContentCandidate(node *html.Node) bool {
	if node.Type != html.ElementNode {
		return false
	}
	switch node.DataAtom {
	case atom.Div, atom.Article, atom.Section, atom.Main:
		return true
	}
	return false
}

// directTextLength counts text reachable from node without crossing into
// another content candidate.
func directTextLength(node *html.Node) int {
	total := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			total += len(strings.TrimSpace(n.Data))
			return
		}
		if n.Type == html.ElementNode && junkElements[n.DataAtom] {
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.ElementNode && isContentCandidate(child) {
				continue
			}
			walk(child)
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && isContentCandidate(child) {
			continue
		}
		walk(child)
	}
	return total
}

// extractText flattens a subtree to plain text with newlines at block
// element boundaries.
func extractText(node *html.Node) string {
	if node == nil {
		return ""
	}

	var builder strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			builder.WriteString(n.Data)
			return
		}
		if n.Type != html.ElementNode {
			return
		}
		if junkElements[n.DataAtom] {
			return
		}
		if blockElements[n.DataAtom] {
			builder.WriteByte('\n')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if blockElements[n.DataAtom] {
			builder.WriteByte('\n')
		}
	}
	walk(node)

	lines := strings.Split(builder.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func findNavLinks(root *html.Node, base *url.URL) (nextURL string, prevURL string) {
	var relNext, relPrev, textNext, textPrev string

	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.DataAtom == atom.A {
			href := resolveHref(attrValue(node, "href"), base)
			if href != "" {
				rel := strings.ToLower(attrValue(node, "rel"))
				hints := strings.ToLower(attrValue(node, "id") + " " + attrValue(node, "class"))
				text := nodeText(node)
				switch {
				case rel == "next" || strings.Contains(hints, "next"):
					if relNext == "" {
						relNext = href
					}
				case rel == "prev" || rel == "previous" || strings.Contains(hints, "prev"):
					if relPrev == "" {
						relPrev = href
					}
				case nextLinkText.MatchString(text):
					if textNext == "" {
						textNext = href
					}
				case prevLinkText.MatchString(text):
					if textPrev == "" {
						textPrev = href
					}
				}
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	nextURL = relNext
	if nextURL == "" {
		nextURL = textNext
	}
	prevURL = relPrev
	if prevURL == "" {
		prevURL = textPrev
	}
	return nextURL, prevURL
}

// resolveHref turns an anchor href into an absolute URL, discarding
// placeholder links that only exist for javascript handlers.
func resolveHref(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}

func findFirst(root *html.Node, target atom.Atom) *html.Node {
	if root.Type == html.ElementNode && root.DataAtom == target {
		return root
	}
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if found := findFirst(child, target); found != nil {
			return found
		}
	}
	return nil
}

func nodeText(node *html.Node) string {
	var builder strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			builder.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return builder.String()
}

func attrValue(node *html.Node, key string) string {
	for _, attr := range node.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
