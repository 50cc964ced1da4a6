// Package sentence splits plain text and markdown into utterances.
package sentence

import (
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// DefaultMaxLength bounds an utterance. Remote voices carry the text in
// the request URL, so long sentences are split at word boundaries.
const DefaultMaxLength = 750

// Parser extracts utterances from documents.
type Parser struct {
	md goldmark.Markdown

	// MaxLength is the longest utterance in runes; zero disables chunking.
	MaxLength int

	// SkipCodeBlocks drops fenced and indented code from markdown.
	SkipCodeBlocks bool

	abbreviations map[string]bool
}

// NewParser creates a parser with default settings.
func NewParser() *Parser {
	return &Parser{
		md:             goldmark.New(),
		MaxLength:      DefaultMaxLength,
		SkipCodeBlocks: true,
		abbreviations:  makeAbbreviationMap(),
	}
}

// Markdown returns the utterances of a markdown document. Each block
// (heading, paragraph, list item, quote) is split on its own.
func (p *Parser) Markdown(src string) []string {
	var out []string
	for _, block := range p.blocks(src) {
		out = append(out, p.Text(block)...)
	}
	return out
}

// Text returns the utterances of plain text.
func (p *Parser) Text(s string) []string {
	var out []string
	for _, sentence := range p.Sentences(s) {
		out = append(out, chunk(sentence, p.MaxLength)...)
	}
	return out
}

// PlainText renders markdown as speakable text, one block per line.
func (p *Parser) PlainText(src string) string {
	return strings.Join(p.blocks(src), "\n")
}

func (p *Parser) blocks(src string) []string {
	source := []byte(src)
	doc := p.md.Parser().Parse(text.NewReader(source))

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if p.SkipCodeBlocks {
				return ast.WalkSkipChildren, nil
			}
			blocks = append(blocks, strings.TrimSpace(string(n.Lines().Value(source))))
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
			var b strings.Builder
			inlineText(n, source, &b)
			if s := collapseSpace(b.String()); s != "" {
				blocks = append(blocks, s)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return blocks
}

func inlineText(n ast.Node, source []byte, b *strings.Builder) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.AutoLink:
			b.Write(t.Label(source))
		case *ast.RawHTML:
		default:
			inlineText(c, source, b)
		}
	}
}

// Sentences splits s at sentence boundaries.
func (p *Parser) Sentences(s string) []string {
	runes := []rune(collapseSpace(s))
	var out []string
	start := 0

	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		end := i + 1
		for end < len(runes) && isTerminal(runes[end]) {
			end++
		}
		run := string(runes[i:end])
		for end < len(runes) && isCloser(runes[end]) {
			end++
		}

		if !strings.HasPrefix(run, "...") && p.isBoundary(runes, i, end) {
			if s := strings.TrimSpace(string(runes[start:end])); s != "" {
				out = append(out, s)
			}
			start = end
		}
		i = end - 1
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}

// isBoundary reports whether the punctuation run starting at pos and
// ending before end closes a sentence.
func (p *Parser) isBoundary(runes []rune, pos, end int) bool {
	if end >= len(runes) {
		return true
	}
	if !unicode.IsSpace(runes[end]) {
		return false
	}

	if runes[pos] == '.' && end == pos+1 {
		wordStart := pos
		for wordStart > 0 && !unicode.IsSpace(runes[wordStart-1]) {
			wordStart--
		}
		word := strings.ToLower(strings.TrimLeft(string(runes[wordStart:pos]), "(\"'["))
		if p.abbreviations[word] {
			return false
		}
		// Initials such as "J." or dotted forms such as "U.S."
		if isInitials(word) {
			return false
		}
	}

	next := end
	for next < len(runes) && unicode.IsSpace(runes[next]) {
		next++
	}
	if next >= len(runes) {
		return true
	}
	r := runes[next]
	return unicode.IsUpper(r) || unicode.IsDigit(r) || !unicode.IsLetter(r) || runes[pos] != '.'
}

// chunk splits s into pieces of at most max runes, preferring commas,
// then spaces.
func chunk(s string, max int) []string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return []string{s}
	}

	var out []string
	for len(runes) > max {
		cut := lastIndex(runes[:max+1], func(r rune) bool { return r == ',' || r == ';' || r == ':' })
		if cut > max/2 {
			cut++
		} else {
			cut = lastIndex(runes[:max+1], unicode.IsSpace)
			if cut <= 0 {
				cut = max
			}
		}
		if piece := strings.TrimSpace(string(runes[:cut])); piece != "" {
			out = append(out, piece)
		}
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

func lastIndex(runes []rune, match func(rune) bool) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if match(runes[i]) {
			return i
		}
	}
	return -1
}

func isInitials(word string) bool {
	if word == "" {
		return false
	}
	letters := 0
	for _, r := range word {
		switch {
		case unicode.IsLetter(r):
			letters++
		case r != '.':
			return false
		}
	}
	return letters == 1 || strings.Contains(word, ".")
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '。' || r == '！' || r == '？'
}

func isCloser(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == ']' || r == '”' || r == '’'
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func makeAbbreviationMap() map[string]bool {
	abbrevs := []string{
		"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st", "mt",
		"inc", "ltd", "co", "corp", "llc",
		"etc", "vs", "cf", "al", "approx", "no", "vol", "fig",
		"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
		"ave", "blvd", "rd",
	}
	m := make(map[string]bool, len(abbrevs))
	for _, a := range abbrevs {
		m[a] = true
	}
	return m
}
