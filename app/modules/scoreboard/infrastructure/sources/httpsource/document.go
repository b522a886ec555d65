package httpsource

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Table is the text content of an HTML table, one slice per row.
type Table [][]string

// Document is the part of a scoreboard page the source understands.
type Document struct {
	Tables  []Table
	Scripts []string
}

// DocumentParser turns a scoreboard page into a Document.
type DocumentParser interface {
	Parse(r io.Reader) (*Document, error)
}

// HTMLDocumentParser is the default DocumentParser.
type HTMLDocumentParser struct{}

// Parse walks the HTML tree collecting every table and inline script.
// Nested tables are flattened into their own entries.
func (HTMLDocumentParser) Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc := &Document{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Table:
				doc.Tables = append(doc.Tables, tableRows(n))
			case atom.Script:
				if text := nodeText(n); text != "" {
					doc.Scripts = append(doc.Scripts, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return doc, nil
}

// tableRows collects the rows belonging to table, skipping rows of nested tables.
func tableRows(table *html.Node) Table {
	var rows Table
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Table:
				continue
			case atom.Tr:
				var cells []string
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.DataAtom == atom.Td || cell.DataAtom == atom.Th) {
						cells = append(cells, nodeText(cell))
					}
				}
				if len(cells) > 0 {
					rows = append(rows, cells)
				}
			default:
				walk(c)
			}
		}
	}
	walk(table)
	return rows
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
