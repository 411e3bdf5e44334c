package htmlutil

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText collapses inner whitespace and strips non-printable runes,
// which GeneXus grids are full of.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}

// CellTexts returns the cleaned text of every <td> in a table row.
func CellTexts(row *goquery.Selection) []string {
	var texts []string
	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		texts = append(texts, CleanText(cell.Text()))
	})
	return texts
}

// HeaderTexts returns the cleaned text of every <th> in a selection.
func HeaderTexts(sel *goquery.Selection) []string {
	var texts []string
	sel.Find("th").Each(func(_ int, cell *goquery.Selection) {
		texts = append(texts, CleanText(cell.Text()))
	})
	return texts
}
