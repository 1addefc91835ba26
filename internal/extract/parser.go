package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Boundary keyword alternations. A lazy capture stops at the first of these
// (or end of input) so one field's phrase does not swallow the next one.
// A sentence end also stops every field except hospital, whose names carry
// abbreviations such as "St.". Decimals ("2.5 cm") are not sentence ends.
const (
	sentenceEnd = `\.(?:\s|$)`

	diagnosisStop   = `(?:procedure|treatment|hospital|` + sentenceEnd + `|$)`
	procedureStop   = `(?:hospital|follow|expected|` + sentenceEnd + `|$)`
	hospitalStop    = `(?:expect|follow|scheduled|$)`
	expectationStop = `(?:follow|parameter|k-wire|splint|` + sentenceEnd + `|$)`
	parameterStop   = `(?:k-wire|splint|suture|first follow|` + sentenceEnd + `|$)`
	kWireStop       = `(?:splint|suture|follow|` + sentenceEnd + `|$)`
	splintStop      = `(?:suture|k-wire|follow|` + sentenceEnd + `|$)`
	sutureStop      = `(?:splint|k-wire|follow|` + sentenceEnd + `|$)`

	firstFollowUpStop  = `(?:second|third|` + sentenceEnd + `|$)`
	secondFollowUpStop = `(?:third|first|` + sentenceEnd + `|$)`
	thirdFollowUpStop  = `(?:second|first|` + sentenceEnd + `|$)`
)

type normalizer func(string) (string, bool)

type rule struct {
	field     Field
	patterns  []*regexp.Regexp
	normalize normalizer
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

var rules = []rule{
	{
		field: PatientName,
		patterns: patterns(
			`\bpatient\s+(?:name\s+)?(?:is\s+)?([a-z]+(?:\s+[a-z]+)+)`,
			`\bname\s+(?:is\s+)?([a-z]+(?:\s+[a-z]+)+)`,
			`(?:\bthis\s+is\s+)?\b([a-z]+\s+[a-z]+)(?:,|\s+age)`,
		),
		normalize: titleCase,
	},
	{
		field: Age,
		patterns: patterns(
			`\bage\s+(?:is\s+)?(\d+)`,
			`(\d+)(?:\s+|-)?years?(?:\s+old)?`,
			`(\d+)\s*yo\b`,
		),
		normalize: ageInRange,
	},
	{
		field: Diagnosis,
		patterns: patterns(
			`\bdiagnosis\b\s*(?:is\s+)?[:\-]?\s*(.+?)`+diagnosisStop,
			`\bdiagnosed\s+with\s+(.+?)`+diagnosisStop,
			`\bpresenting\s+with\s+(.+?)`+diagnosisStop,
		),
		normalize: capitalizeFirst,
	},
	{
		field: Procedure,
		patterns: patterns(
			`\bprocedure\b\s*(?:is\s+)?[:\-]?\s*(.+?)`+procedureStop,
			`\b(?:underwent|undergoing|scheduled\s+for)\s+(.+?)`+procedureStop,
			`\bsurgery\b\s*(?:is\s+)?[:\-]?\s*(.+?)`+procedureStop,
		),
		normalize: capitalizeFirst,
	},
	{
		field: Hospital,
		patterns: patterns(
			`\bhospital\b\s*(?:is\s+)?[:\-]?\s*(.+?)`+hospitalStop,
			`\bat\s+([a-z\s]+(?:hospital|medical center|clinic))`,
			`\badmitted\s+to\s+(.+?hospital)`,
		),
		normalize: titleCase,
	},
	{
		field: Expectations,
		patterns: patterns(
			`\bexpect(?:ation)?s?\s+(?:is|are|include)?\s*[:\-]?\s*(.+?)`+expectationStop,
			`\banticipated\s+(.+?)`+expectationStop,
			`\bgoals?\s+(?:is|are|include)?\s*[:\-]?\s*(.+?)`+expectationStop,
		),
		normalize: capitalizeFirst,
	},
	{
		field: FollowUpParameters,
		patterns: patterns(
			`(?:\bfollow(?:-|\s)?up\s+)?\bparameters?\s+(?:is|are|include)?\s*[:\-]?\s*(.+?)`+parameterStop,
			`\bmonitor(?:ing)?\s+(.+?)`+parameterStop,
		),
		normalize: capitalizeFirst,
	},
	{
		field: KWireRemoval,
		patterns: patterns(
			`\bk(?:-|\s)?wire\s+removal\s+(?:at\s+)?(.+?)`+kWireStop,
			`\bremove\s+k(?:-|\s)?wire\s+(?:at\s+)?(.+?)`+kWireStop,
		),
		normalize: capitalizeFirst,
	},
	{
		field: SplintChangeRemoval,
		patterns: patterns(
			`\bsplint\s+(?:change|removal)\s+(?:at\s+)?(.+?)`+splintStop,
			`\bchange\s+splint\s+(?:at\s+)?(.+?)`+splintStop,
		),
		normalize: capitalizeFirst,
	},
	{
		field: TypeAndSutureRemoval,
		patterns: patterns(
			`\bsuture\s+removal\s+(?:at\s+)?(.+?)`+sutureStop,
			`\bremove\s+sutures?\s+(?:at\s+)?(.+?)`+sutureStop,
			`\b(?:absorbable|non-absorbable)\s+sutures?\s+(.+?)`+sutureStop,
		),
		normalize: capitalizeFirst,
	},
	{
		field:     FollowUpFirst,
		patterns:  patterns(`\bfirst\s+follow(?:-|\s)?up\s+(.+?)`+firstFollowUpStop),
		normalize: capitalizeFirst,
	},
	{
		field:     FollowUpSecond,
		patterns:  patterns(`\bsecond\s+follow(?:-|\s)?up\s+(.+?)`+secondFollowUpStop),
		normalize: capitalizeFirst,
	},
	{
		field:     FollowUpThird,
		patterns:  patterns(`\bthird\s+follow(?:-|\s)?up\s+(.+?)`+thirdFollowUpStop),
		normalize: capitalizeFirst,
	},
}

// Parse extracts every recognizable field from text. It is pure and safe
// for concurrent use.
func Parse(text string) Fields {
	out := Fields{}
	text = strings.TrimSpace(text)
	if text == "" {
		return out
	}
	for _, r := range rules {
		if v, ok := r.apply(text); ok {
			out[r.field] = v
		}
	}
	return out
}

// apply tries each pattern in order and stops at the first one whose capture
// survives normalization.
func (r rule) apply(text string) (string, bool) {
	for _, re := range r.patterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		v := clean(m[1])
		if v == "" {
			continue
		}
		if v, ok := r.normalize(v); ok {
			return v, true
		}
	}
	return "", false
}

// clean trims whitespace and the separators dictation leaves between phrases.
func clean(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ",;:. \t\r\n")
	s = strings.TrimLeft(s, ",;: \t\r\n")
	return s
}

// ageInRange keeps only plausible ages so stray numbers are not mistaken
// for one.
func ageInRange(s string) (string, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 149 {
		return "", false
	}
	return strconv.Itoa(n), true
}

func capitalizeFirst(s string) (string, bool) {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):], true
	}
	return "", false
}

// titleCase lowercases s and upper-cases every letter that follows a
// non-alphanumeric rune, so "st. mary's hospital" becomes "St. Mary'S Hospital".
func titleCase(s string) (string, bool) {
	words := strings.Fields(s)
	if len(words) == 0 {
		return "", false
	}
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		prevAlnum := false
		for _, r := range strings.ToLower(w) {
			if !prevAlnum {
				r = unicode.ToUpper(r)
			}
			b.WriteRune(r)
			prevAlnum = unicode.IsLetter(r) || unicode.IsDigit(r)
		}
	}
	return b.String(), true
}
