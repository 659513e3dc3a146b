package parser

import "regexp"

// dateRangeRegex matches "DD.MM[.][YYYY] - DD.MM.YYYY". The start date may
// omit its year; the end date may not. Separator whitespace includes
// non-breaking spaces, which the listing pages use around the hyphen.
var dateRangeRegex = regexp.MustCompile(`(\d{2}\.\d{2}\.?(?:\d{4})?)[\s\p{Zs}]*-[\s\p{Zs}]*(\d{2}\.\d{2}\.\d{4})`)

// ParseDateRange extracts the first validity range found in text. The matched
// substrings are returned verbatim. Text without a range yields two empty
// strings, which callers treat as an unknown date rather than an error.
func ParseDateRange(text string) (validFrom, validTo string) {
	match := dateRangeRegex.FindStringSubmatch(text)
	if len(match) < 3 {
		return "", ""
	}
	return match[1], match[2]
}
