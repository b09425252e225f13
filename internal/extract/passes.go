package extract

import (
	"regexp"

	"github.com/kaptinlin/jsonrepair"
)

// A transform is one deterministic text rewrite applied to a JSON candidate.
type transform struct {
	name  string
	apply func(string) string
}

// A pass is an ordered list of transforms applied cumulatively. Pass N is a
// superset of pass N-1.
type pass struct {
	name       string
	transforms []transform
}

var (
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	// Line comments only when preceded by start of line, whitespace or a
	// structural character, so "http://" inside string values survives.
	lineCommentRe   = regexp.MustCompile(`(?m)(^|[\s,{\[])//[^\n]*`)
	doubledCommaRe  = regexp.MustCompile(`,\s*,`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

	// Bare ellipsis between two sibling elements: the model elided entries,
	// join the neighbours directly. The elided entries are unrecoverable.
	elidedElementsRe = regexp.MustCompile(`([}\]"0-9])\s*,\s*(?:\.\.\.|…)\s*,\s*(["{\[])`)
	leadingElisionRe = regexp.MustCompile(`([{\[])\s*(?:\.\.\.|…)\s*,`)
	// Ellipsis plus trailing free-form prose, stripped up to the next
	// structural delimiter ("... remaining verses omitted").
	ellipsisProseRe = regexp.MustCompile(`,\s*(?:\.\.\.|…)[^,"{}\[\]]*`)
)

func stripBlockComments(s string) string { return blockCommentRe.ReplaceAllString(s, "") }

func stripLineComments(s string) string { return lineCommentRe.ReplaceAllString(s, "$1") }

func collapseDoubledCommas(s string) string {
	for {
		next := doubledCommaRe.ReplaceAllString(s, ",")
		if next == s {
			return s
		}
		s = next
	}
}

func stripTrailingCommas(s string) string {
	for {
		next := trailingCommaRe.ReplaceAllString(s, "$1")
		if next == s {
			return s
		}
		s = next
	}
}

func joinElidedElements(s string) string { return elidedElementsRe.ReplaceAllString(s, "$1,$2") }

func stripLeadingElision(s string) string { return leadingElisionRe.ReplaceAllString(s, "$1") }

func stripEllipsisProse(s string) string { return ellipsisProseRe.ReplaceAllString(s, "") }

// repairModelJSON is the catch-all tail: hand the candidate to jsonrepair.
// When the library itself gives up, the candidate is returned unchanged so
// the failed parse surfaces through the normal attempt accounting.
func repairModelJSON(s string) string {
	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return s
	}
	return repaired
}

var commentTransforms = []transform{
	{name: "strip_block_comments", apply: stripBlockComments},
	{name: "strip_line_comments", apply: stripLineComments},
}

var commaTransforms = []transform{
	{name: "collapse_doubled_commas", apply: collapseDoubledCommas},
	{name: "strip_trailing_commas", apply: stripTrailingCommas},
}

var ellipsisTransforms = []transform{
	{name: "join_elided_elements", apply: joinElidedElements},
	{name: "strip_leading_elision", apply: stripLeadingElision},
	{name: "strip_ellipsis_prose", apply: stripEllipsisProse},
}

// repairPasses returns the ordered pass list, least aggressive first.
func repairPasses() []pass {
	basic := append(append([]transform{}, commentTransforms...), commaTransforms...)

	withEllipsis := append(append([]transform{}, commentTransforms...), ellipsisTransforms...)
	withEllipsis = append(withEllipsis, commaTransforms...)

	aggressive := append(append([]transform{}, withEllipsis...), transform{
		name:  "jsonrepair",
		apply: repairModelJSON,
	})

	return []pass{
		{name: "comments_and_commas", transforms: basic},
		{name: "ellipsis", transforms: withEllipsis},
		{name: "jsonrepair", transforms: aggressive},
	}
}

func (p pass) run(candidate string) string {
	for _, t := range p.transforms {
		candidate = t.apply(candidate)
	}
	return candidate
}
