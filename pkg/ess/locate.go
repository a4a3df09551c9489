package ess

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/ess-reader/ess-reader/pkg/errdefs"
)

// Markers identifying the tables of interest on the status page.
const (
	MarkerEMS = "EMS Control MODE"
	MarkerPCS = "PCS Sensing Data"
)

// LocateTable returns the first table in document order that owns a row
// containing a text node equal to marker. Rows of nested tables belong to the
// nested table, not to the outer one.
func LocateTable(doc *goquery.Document, marker string) (*goquery.Selection, error) {
	var found *goquery.Selection

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		table.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
			if !row.Closest("table").IsSelection(table) {
				return true
			}
			if containsText(row, marker) {
				found = table
				return false
			}
			return true
		})
		return found == nil
	})

	if found == nil {
		return nil, errdefs.Extraction(fmt.Errorf("%w: no table contains %q", errdefs.ErrTableNotFound, marker))
	}
	return found, nil
}

func containsText(s *goquery.Selection, text string) bool {
	for _, n := range s.Nodes {
		if hasTextNode(n, text) {
			return true
		}
	}
	return false
}

func hasTextNode(n *html.Node, text string) bool {
	if n.Type == html.TextNode && strings.TrimSpace(n.Data) == text {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasTextNode(c, text) {
			return true
		}
	}
	return false
}

// cellTexts returns the text of every td below s, in document order.
func cellTexts(s *goquery.Selection) []string {
	cells := s.Find("td")
	texts := make([]string, 0, cells.Length())
	cells.Each(func(_ int, td *goquery.Selection) {
		texts = append(texts, td.Text())
	})
	return texts
}
