package parser

import "regexp"

var payBandPattern = regexp.MustCompile(`(?i)\bband\s*(\d+(?:[-–]\d+)?)`)

// PayBand derives a pay-band label such as "Band 4–5" from salary text,
// returning fallback when the text names no band.
func PayBand(text, fallback string) string {
	m := payBandPattern.FindStringSubmatch(text)
	if m == nil {
		return fallback
	}
	return "Band " + m[1]
}
