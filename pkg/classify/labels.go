package classify

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
)

var (
	labelPolicy     = bluemonday.StrictPolicy()
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	nameSeparators  = regexp.MustCompile(`[_\-$.\[\]]+`)
	labelCaseFolder = cases.Fold()
)

// normalizeLabel prepares observed label text for pattern matching: markup is
// stripped, whitespace runs collapse to single spaces, and the result is
// case folded.
func normalizeLabel(label string) string {
	clean := labelPolicy.Sanitize(label)
	clean = whitespaceRuns.ReplaceAllString(clean, " ")
	return labelCaseFolder.String(strings.TrimSpace(clean))
}

// normalizeName prepares a parseable field name for pattern matching. Name
// separators common in generated markup become spaces so patterns written
// for labels also hit names.
func normalizeName(name string) string {
	clean := nameSeparators.ReplaceAllString(name, " ")
	clean = whitespaceRuns.ReplaceAllString(clean, " ")
	return labelCaseFolder.String(strings.TrimSpace(clean))
}
