package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/c360studio/semcnl/identity"
	"github.com/c360studio/semcnl/markup"
	"github.com/c360studio/semcnl/source"
)

// headingPattern matches an ATX heading. A closing run of '#' is only
// stripped when whitespace separates it from the text.
var (
	headingPattern       = regexp.MustCompile(`^ {0,3}(#{1,6})[ \t]+(.*\S)[ \t]*$`)
	closingHashesPattern = regexp.MustCompile(`[ \t]+#+$`)
)

// SegmentResult is the outcome of splitting a document body into sections.
type SegmentResult struct {
	GraphDescription string
	Sections         []source.Section
	Diagnostics      []source.Diagnostic
}

// chunk is the text between two headings.
type chunk struct {
	headingLine string
	heading     string
	level       int
	line        int

	pre   []string
	post  []string
	block []source.Line

	hasBlock   bool
	inBlock    bool
	openLine   int
	blockLine  int
	terminated bool
}

func (c *chunk) addText(text string) {
	if c.hasBlock {
		c.post = append(c.post, text)
		return
	}
	c.pre = append(c.pre, text)
}

// Segment splits body into a graph description and the sections that own
// a CNL block. firstLine is the line number of the first body line.
//
// A heading only becomes a section when a ::: fence opens before the next
// heading. Headings without a block are decorative: they and their text
// are kept verbatim in the preceding description.
func Segment(body string, firstLine int) SegmentResult {
	var (
		res    SegmentResult
		chunks []*chunk
		inCode bool
	)
	if firstLine < 1 {
		firstLine = 1
	}

	cur := &chunk{}
	closeChunk := func() {
		if cur.inBlock {
			cur.inBlock = false
			cur.terminated = false
			res.Diagnostics = append(res.Diagnostics, source.Diagnostic{
				Line:     cur.openLine,
				Severity: source.SeverityError,
				Kind:     source.KindUnterminatedBlock,
				Message:  fmt.Sprintf("CNL block under %q is not closed with :::", cur.heading),
			})
		}
		chunks = append(chunks, cur)
	}

	for i, text := range splitLines(body) {
		num := firstLine + i
		trimmed := strings.TrimSpace(text)

		if cur.inBlock {
			if trimmed == ":::" {
				cur.inBlock = false
				continue
			}
			if level, heading, ok := parseHeading(text); ok {
				closeChunk()
				cur = &chunk{headingLine: text, heading: heading, level: level, line: num}
				continue
			}
			cur.block = append(cur.block, source.Line{Number: num, Text: text})
			continue
		}

		if inCode {
			if isCodeFence(trimmed) {
				inCode = false
			}
			cur.addText(text)
			continue
		}

		switch {
		case isCodeFence(trimmed):
			inCode = true
			cur.addText(text)
		case isHeadingLine(text):
			level, heading, _ := parseHeading(text)
			closeChunk()
			cur = &chunk{headingLine: text, heading: heading, level: level, line: num}
		case cur.level > 0 && isCNLFence(trimmed):
			if !cur.hasBlock {
				cur.hasBlock = true
				cur.terminated = true
				cur.openLine = num
				cur.blockLine = num + 1
			}
			cur.inBlock = true
		default:
			cur.addText(text)
		}
	}
	closeChunk()

	preamble := chunks[0].pre
	var last *chunk
	var trailing [][]string

	flush := func() {
		if last == nil {
			return
		}
		post := last.post
		for _, t := range trailing {
			post = append(post, t...)
		}
		res.Sections = append(res.Sections, buildSection(last, post))
	}

	for _, c := range chunks[1:] {
		if !c.hasBlock {
			text := append([]string{c.headingLine}, c.pre...)
			if last == nil {
				preamble = append(preamble, text...)
			} else {
				trailing = append(trailing, text)
			}
			continue
		}
		flush()
		last = c
		trailing = nil
	}
	flush()

	res.GraphDescription = strings.TrimSpace(strings.Join(preamble, "\n"))
	return res
}

func buildSection(c *chunk, post []string) source.Section {
	id := identity.Compose(c.heading)

	var parts []string
	if pre := strings.TrimSpace(strings.Join(c.pre, "\n")); pre != "" {
		parts = append(parts, pre)
	}
	if after := strings.TrimSpace(strings.Join(post, "\n")); after != "" {
		parts = append(parts, after)
	}

	blockText := make([]string, len(c.block))
	for i, l := range c.block {
		blockText[i] = l.Text
	}

	return source.Section{
		HeadingText:  c.heading,
		Level:        c.level,
		Line:         c.line,
		Identity:     id,
		NodeType:     id.Type,
		Description:  strings.Join(parts, "\n\n"),
		CNLBlockText: strings.Join(blockText, "\n"),
		BlockLines:   c.block,
		BlockLine:    c.blockLine,
		Terminated:   c.terminated,
	}
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}

// isCodeFence checks if a trimmed line opens or closes a code block.
func isCodeFence(trimmed string) bool {
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

// isCNLFence checks if a trimmed line opens a CNL block: ":::" or ":::cnl".
func isCNLFence(trimmed string) bool {
	if !strings.HasPrefix(trimmed, ":::") {
		return false
	}
	info := strings.TrimSpace(trimmed[3:])
	return info == "" || strings.EqualFold(info, "cnl")
}

func isHeadingLine(line string) bool {
	_, _, ok := parseHeading(line)
	return ok
}

// parseHeading extracts the level and text from a heading line.
func parseHeading(line string) (int, string, bool) {
	m := headingPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, "", false
	}
	text := closingHashesPattern.ReplaceAllString(m[2], "")
	text = markup.Collapse(text)
	if text == "" {
		return 0, "", false
	}
	return len(m[1]), text, true
}
