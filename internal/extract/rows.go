package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/kidregistry/internal/model"
)

// HrefSuffix is appended to a column key to hold the first link inside that cell
const HrefSuffix = "_href"

// Table maps each <tr> holding at least minCells <td> cells onto columns.
// Header rows (containing <th>) are skipped. Cells beyond len(columns) are ignored.
func Table(doc *html.Node, base *url.URL, columns []string, minCells int) []model.RawRecord {
	var out []model.RawRecord
	for _, tr := range FindAll(doc, func(n *html.Node) bool { return IsElement(n, "tr") }) {
		if FindFirst(tr, func(n *html.Node) bool { return IsElement(n, "th") }) != nil {
			continue
		}
		cells := directChildren(tr, func(n *html.Node) bool { return IsElement(n, "td") })
		if len(cells) < minCells {
			continue
		}
		out = append(out, cellsToRecord(cells, base, columns))
	}
	return out
}

// Grid reads ARIA div grids: elements with role=row whose cells carry role=cell
// or the td class. Rows containing headerMarker are skipped.
func Grid(doc *html.Node, base *url.URL, columns []string, headerMarker string) []model.RawRecord {
	isRow := func(n *html.Node) bool {
		return n.Type == html.ElementNode && (Attr(n, "role") == "row" || HasClass(n, "tr"))
	}
	isCell := func(n *html.Node) bool {
		return n.Type == html.ElementNode && (Attr(n, "role") == "cell" || HasClass(n, "td"))
	}
	var out []model.RawRecord
	for _, row := range FindAll(doc, isRow) {
		if headerMarker != "" && strings.Contains(strings.ReplaceAll(Text(row), " ", ""), headerMarker) {
			continue
		}
		cells := FindAll(row, isCell)
		if len(cells) == 0 {
			continue
		}
		out = append(out, cellsToRecord(cells, base, columns))
	}
	return out
}

func cellsToRecord(cells []*html.Node, base *url.URL, columns []string) model.RawRecord {
	rec := make(model.RawRecord, len(columns))
	for i, col := range columns {
		if i >= len(cells) {
			break
		}
		rec[col] = Text(cells[i])
		if a := FindFirst(cells[i], func(n *html.Node) bool { return IsElement(n, "a") }); a != nil && base != nil {
			if href := Resolve(base, Attr(a, "href")); href != "" {
				rec[col+HrefSuffix] = href
			}
		}
	}
	return rec
}

func directChildren(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if pred(c) {
			out = append(out, c)
		}
	}
	return out
}

// Links returns {text, href} for anchors whose text contains any keyword
func Links(doc *html.Node, base *url.URL, keywords []string) []model.RawRecord {
	var out []model.RawRecord
	seen := make(map[string]bool)
	for _, a := range FindAll(doc, func(n *html.Node) bool { return IsElement(n, "a") }) {
		text := Text(a)
		if !containsAny(text, keywords) {
			continue
		}
		href := Resolve(base, Attr(a, "href"))
		if href == "" || seen[href] {
			continue
		}
		seen[href] = true
		out = append(out, model.RawRecord{"text": text, "href": href})
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

var pageCountRe = regexp.MustCompile(`共\s*(\d+)\s*頁`)

// PageCount reads the "共 N 頁" pager label; 1 when absent
func PageCount(doc *html.Node) int {
	m := pageCountRe.FindStringSubmatch(Text(doc))
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}
