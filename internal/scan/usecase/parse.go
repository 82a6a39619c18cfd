package usecase

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shandysiswandi/scriptscan/internal/scan/entity"
)

const findingFields = 4

// ErrMalformedLine is matched by every *ParseError.
var ErrMalformedLine = errors.New("malformed analyzer output line")

// ParseError points at the analyzer output line that broke the parse.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrMalformedLine
}

// ParseFindings turns analyzer output into findings, one per non-empty line.
//
// Each line is "rule<TAB>severity<TAB>line<TAB>message" with an optional
// trailing CR. A line with any other number of fields, or with invalid UTF-8,
// aborts the whole parse: no partial result is returned.
func ParseFindings(raw string) ([]entity.Finding, error) {
	findings := make([]entity.Finding, 0)

	for i, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}

		if !utf8.ValidString(line) {
			return nil, &ParseError{Line: i + 1, Text: line, Reason: "invalid UTF-8"}
		}

		fields := strings.Split(line, "\t")
		if len(fields) != findingFields {
			return nil, &ParseError{
				Line:   i + 1,
				Text:   line,
				Reason: fmt.Sprintf("expected %d tab-separated fields, got %d", findingFields, len(fields)),
			}
		}

		findings = append(findings, entity.Finding{
			RuleName: fields[0],
			Severity: fields[1],
			Line:     fields[2],
			Message:  fields[3],
		})
	}

	return findings, nil
}
