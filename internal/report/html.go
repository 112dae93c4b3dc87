package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// Load reads a report from disk. HTML reports are reduced to text first.
func Load(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return HTMLText(f)
	default:
		data, err := io.ReadAll(f)
		if err != nil {
			return "", fmt.Errorf("read report: %w", err)
		}
		return string(data), nil
	}
}

// HTMLText renders the visible text of an HTML report. Anchors become
// [text](href) so citations survive; h1-h6 become markdown headers.
func HTMLText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			case "a":
				text := strings.TrimSpace(innerText(n))
				if href := attr(n, "href"); href != "" && !strings.HasPrefix(text, "[") {
					fmt.Fprintf(&buf, "[%s](%s)", text, href)
				} else if href != "" {
					// Link text is already a citation such as [f.txt:L3-L4]
					fmt.Fprintf(&buf, "%s(%s)", text, href)
				} else {
					buf.WriteString(text)
				}
				return
			case "h1", "h2", "h3", "h4", "h5", "h6":
				level := int(n.Data[1] - '0')
				fmt.Fprintf(&buf, "\n%s %s\n", strings.Repeat("#", level), strings.TrimSpace(innerText(n)))
				return
			case "br":
				buf.WriteString("\n")
			}
		}

		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && isBlock(n.Data) {
			buf.WriteString("\n")
		}
	}
	walk(doc)
	return buf.String(), nil
}

func innerText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "tr", "section", "article", "blockquote", "ul", "ol", "table", "pre":
		return true
	}
	return false
}
