// Package htmlutils turns scraped HTML into plain text and sizes text for
// Telegram, which counts message length in UTF-16 code units.
package htmlutils

import (
	"strings"
	"unicode/utf16"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const ellipsis = "…"

// skippedElements never contribute visible text.
var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// blockElements end a line of text.
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
	atom.Pre:        true,
}

// StripHTMLTags removes markup from text, decodes entities and collapses
// whitespace. Block elements become single spaces so words do not run together.
func StripHTMLTags(text string) string {
	if !strings.ContainsAny(text, "<&") {
		return CollapseSpace(text)
	}

	z := html.NewTokenizer(strings.NewReader(text))

	var (
		sb   strings.Builder
		skip int
	)

	for {
		switch z.Next() {
		case html.ErrorToken:
			return CollapseSpace(sb.String())
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		case html.StartTagToken:
			tok := z.Token()
			if skippedElements[tok.DataAtom] {
				skip++
			} else if blockElements[tok.DataAtom] {
				sb.WriteByte(' ')
			}
		case html.EndTagToken:
			tok := z.Token()
			if skippedElements[tok.DataAtom] && skip > 0 {
				skip--
			} else if blockElements[tok.DataAtom] {
				sb.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			if blockElements[z.Token().DataAtom] {
				sb.WriteByte(' ')
			}
		case html.CommentToken, html.DoctypeToken:
		}
	}
}

// CollapseSpace trims s and replaces every whitespace run with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// UTF16Len returns the number of UTF-16 code units needed to encode s.
func UTF16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// TruncateUTF16 shortens s to at most maxUnits UTF-16 code units, ending
// with an ellipsis when anything was cut. Surrogate pairs are never split.
func TruncateUTF16(s string, maxUnits int) string {
	if maxUnits <= 0 {
		return ""
	}

	if UTF16Len(s) <= maxUnits {
		return s
	}

	budget := maxUnits - UTF16Len(ellipsis)
	if budget <= 0 {
		return utf16Prefix(s, maxUnits)
	}

	return strings.TrimRightFunc(utf16Prefix(s, budget), isSpace) + ellipsis
}

// EscapeTruncateUTF16 HTML-escapes s so that the escaped text, ellipsis
// included, is at most maxUnits UTF-16 code units. Entities are never split.
func EscapeTruncateUTF16(s string, maxUnits int) string {
	if maxUnits <= 0 {
		return ""
	}

	if escaped := html.EscapeString(s); UTF16Len(escaped) <= maxUnits {
		return escaped
	}

	budget := max(maxUnits-UTF16Len(ellipsis), 0)

	var sb strings.Builder

	units := 0

	for _, r := range strings.TrimRightFunc(s, isSpace) {
		piece := html.EscapeString(string(r))

		pieceUnits := UTF16Len(piece)
		if units+pieceUnits > budget {
			break
		}

		sb.WriteString(piece)
		units += pieceUnits
	}

	out := strings.TrimRightFunc(sb.String(), isSpace)
	if budget == 0 {
		return out
	}

	return out + ellipsis
}

func utf16Prefix(s string, maxUnits int) string {
	units := 0

	for i, r := range s {
		runeUnits := 1
		if r > 0xFFFF {
			runeUnits = 2 // Surrogate pair
		}

		if units+runeUnits > maxUnits {
			return s[:i]
		}

		units += runeUnits
	}

	return s
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}
