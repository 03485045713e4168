package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/c360studio/semcnl/identity"
	"github.com/c360studio/semcnl/markup"
	"github.com/c360studio/semcnl/source"
)

var (
	attributePattern = regexp.MustCompile(`(?i)^has\s+([^:]*):(.*)$`)
	relationPattern  = regexp.MustCompile(`^<([^<>]*)>(.*)$`)
)

// BlockResult holds the statements parsed from one CNL block.
type BlockResult struct {
	Attributes  []source.AttributeEdge
	Relations   []source.RelationEdge
	Targets     []identity.NodeIdentity
	Diagnostics []source.Diagnostic
}

// ParseBlockText parses a CNL block given as text. firstLine is the line
// number of the first block line.
func ParseBlockText(sourceID, text string, firstLine int) BlockResult {
	raw := splitLines(text)
	lines := make([]source.Line, len(raw))
	for i, t := range raw {
		lines[i] = source.Line{Number: firstLine + i, Text: t}
	}
	return ParseBlock(sourceID, lines)
}

// ParseBlock parses the statements of a CNL block owned by sourceID.
//
// Every line is independent. A line that is neither an attribute nor a
// relation produces a diagnostic and is skipped; the remaining lines
// still parse.
func ParseBlock(sourceID string, lines []source.Line) BlockResult {
	var res BlockResult
	for _, l := range lines {
		stmt := strings.TrimSpace(l.Text)
		if stmt == "" {
			continue
		}
		parseStatement(&res, sourceID, l.Number, stmt)
	}
	return res
}

func parseStatement(res *BlockResult, sourceID string, line int, stmt string) {
	malformed := func(format string, args ...any) {
		res.Diagnostics = append(res.Diagnostics, source.Diagnostic{
			Line:     line,
			Severity: source.SeverityWarning,
			Kind:     source.KindMalformedStatement,
			Message:  fmt.Sprintf(format, args...),
			Text:     stmt,
		})
	}

	adverb, rest := leadingAdverb(stmt)

	if strings.HasPrefix(rest, "<") {
		m := relationPattern.FindStringSubmatch(rest)
		if m == nil {
			malformed("relation name is not closed with '>'")
			return
		}
		name := markup.Collapse(m[1])
		if name == "" {
			malformed("relation name is empty")
			return
		}
		parseRelation(res, sourceID, line, stmt, adverb, name, m[2])
		return
	}

	if m := attributePattern.FindStringSubmatch(rest); m != nil {
		parseAttribute(res, sourceID, line, adverb, m[1], m[2], malformed)
		return
	}

	if hasKeyword(rest) {
		malformed("attribute is missing ':' between name and value")
		return
	}
	malformed("statement is neither an attribute (has name: value) nor a relation (<name> target)")
}

func parseRelation(res *BlockResult, sourceID string, line int, stmt, adverb, name, targetText string) {
	if adverb == "" {
		adverb, targetText = markup.ExtractAdverb(targetText)
	}
	modality, targetText := markup.ExtractModality(targetText)

	target := identity.Compose(targetText)
	if !target.Valid() {
		res.Diagnostics = append(res.Diagnostics, source.Diagnostic{
			Line:     line,
			Severity: source.SeverityWarning,
			Kind:     source.KindUnresolvableTarget,
			Message:  fmt.Sprintf("relation %q has no target name", name),
			Text:     stmt,
		})
		return
	}

	res.Relations = append(res.Relations, source.RelationEdge{
		SourceID:     sourceID,
		TargetID:     target.ID,
		RelationName: name,
		Adverb:       adverb,
		Modality:     modality,
		Quantifier:   target.Quantifier,
		Qualifier:    target.Qualifier,
		TargetName:   target.BaseName,
		Line:         line,
	})
	res.Targets = append(res.Targets, target)
}

func parseAttribute(res *BlockResult, sourceID string, line int, adverb, rawName, valueText string, malformed func(string, ...any)) {
	name := markup.Collapse(rawName)
	if name == "" {
		malformed("attribute name is missing")
		return
	}

	if adverb == "" {
		adverb, valueText = markup.ExtractAdverb(valueText)
	}
	modality, valueText := markup.ExtractModality(valueText)
	unit, valueText := markup.ExtractUnit(valueText)
	value := markup.Collapse(valueText)
	if value == "" {
		malformed("attribute %q has no value", name)
		return
	}

	res.Attributes = append(res.Attributes, source.AttributeEdge{
		SourceID:      sourceID,
		AttributeName: name,
		Value:         value,
		Unit:          unit,
		Adverb:        adverb,
		Modality:      modality,
		Line:          line,
	})
}

func hasKeyword(stmt string) bool {
	fields := strings.Fields(stmt)
	return len(fields) > 1 && strings.EqualFold(fields[0], "has")
}

// leadingAdverb splits a ++adverb++ prefix from a statement.
func leadingAdverb(stmt string) (string, string) {
	if !strings.HasPrefix(stmt, "++") {
		return "", stmt
	}
	tokens := markup.Tokenize(stmt, markup.NameContext)
	if len(tokens) == 0 || tokens[0].Kind != markup.Adverb {
		return "", stmt
	}
	return tokens[0].Text, strings.TrimSpace(stmt[len(tokens[0].Raw):])
}
