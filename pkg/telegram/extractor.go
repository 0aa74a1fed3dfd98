package telegram

import "regexp"

// Code, value and unit may not contain the delimiters themselves.
var fieldPattern = regexp.MustCompile(`1-0:([^()*]+?)\(([^()*]+?)\*([^()*]+?)\)`)

// Extract returns every tagged field of the telegram text in order of appearance.
// A telegram without tagged fields yields an empty slice.
func Extract(text string) []TaggedField {
	matches := fieldPattern.FindAllStringSubmatch(text, -1)
	fields := make([]TaggedField, 0, len(matches))
	for _, m := range matches {
		fields = append(fields, TaggedField{
			Code:  m[1],
			Value: m[2],
			Unit:  m[3],
		})
	}
	return fields
}

// ParseField is the strict single-record parser: it returns the first tagged
// field of text, or ErrParse when there is none.
func ParseField(text string) (TaggedField, error) {
	m := fieldPattern.FindStringSubmatch(text)
	if m == nil {
		return TaggedField{}, ErrParse
	}
	return TaggedField{Code: m[1], Value: m[2], Unit: m[3]}, nil
}
