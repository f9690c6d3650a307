package profile

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/aluiziolira/go-scrape-whisky/parser"
)

// FirstText returns the first non-blank text node beneath the first node
// of sel, trimmed.
func FirstText(sel *goquery.Selection) (string, bool) {
	if sel.Length() == 0 {
		return "", false
	}
	var found string
	walkText(sel.Get(0), func(text string) bool {
		text = strings.TrimSpace(text)
		if text == "" {
			return true
		}
		found = text
		return false
	})
	return found, found != ""
}

// FirstTextWithin is FirstText of the first match of selector beneath sel.
func FirstTextWithin(sel *goquery.Selection, selector string) (string, bool) {
	return FirstText(sel.Find(selector).First())
}

// FullText returns all text beneath the first node of sel with whitespace
// runs collapsed.
func FullText(sel *goquery.Selection) (string, bool) {
	if sel.Length() == 0 {
		return "", false
	}
	text := parser.CollapseSpace(sel.First().Text())
	return text, text != ""
}

// TextTokens flattens the subtree of the first node of sel into trimmed
// tokens in document order. Each leaf element yields one token, empty when
// the element has no text, so a blank value cell never lets the next label
// stand in for it. Loose text beside elements yields a token only when it is
// not blank.
func TextTokens(sel *goquery.Selection) []string {
	if sel.Length() == 0 {
		return nil
	}
	tokens := []string{}
	collectTokens(sel.Get(0), &tokens)
	return tokens
}

func collectTokens(node *html.Node, tokens *[]string) {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.TextNode:
			if text := strings.TrimSpace(child.Data); text != "" {
				*tokens = append(*tokens, text)
			}
		case html.ElementNode:
			if skipTokens[child.Data] {
				continue
			}
			if hasElementChild(child) {
				collectTokens(child, tokens)
				continue
			}
			*tokens = append(*tokens, strings.TrimSpace(nodeText(child)))
		}
	}
}

// skipTokens lists elements that never carry a label or value.
var skipTokens = map[string]bool{
	"br": true, "hr": true, "img": true, "input": true, "wbr": true,
	"meta": true, "link": true, "script": true, "style": true,
}

func hasElementChild(node *html.Node) bool {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode {
			return true
		}
	}
	return false
}

func nodeText(node *html.Node) string {
	var b strings.Builder
	walkText(node, func(text string) bool {
		b.WriteString(text)
		return true
	})
	return b.String()
}

// walkText visits text nodes depth-first until visit returns false.
func walkText(node *html.Node, visit func(string) bool) bool {
	if node == nil {
		return true
	}
	if node.Type == html.TextNode {
		return visit(node.Data)
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if !walkText(child, visit) {
			return false
		}
	}
	return true
}
