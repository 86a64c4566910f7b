package tle

import "strings"

// lineBreak is the provider's separator between element lines.
const lineBreak = "\r\n"

// SplitLines splits provider TLE text into element lines. Blank segments
// carry no element data and are dropped, so empty text, a lone line break
// or trailing breaks never produce empty lines.
func SplitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, lineBreak) {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
