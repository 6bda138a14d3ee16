// Package format holds the text helpers shared by the flows.
package format

import (
	"regexp"
	"strconv"
	"strings"
)

// Grouped renders n with thousands separators ("150,000").
// Fractions are kept with two decimals.
func Grouped(n float64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	whole := int64(n)
	frac := n - float64(whole)

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac >= 0.005 {
		cents := strconv.FormatFloat(frac, 'f', 2, 64)
		if cents == "1.00" {
			return Grouped(float64(whole+1) * sign(neg))
		}
		b.WriteString(cents[1:])
	}
	return b.String()
}

func sign(neg bool) float64 {
	if neg {
		return -1
	}
	return 1
}

// Amount renders a number without grouping, dropping a zero fraction.
func Amount(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

var leadingNumber = regexp.MustCompile(`^(\d+)(k)?`)

// ParseNumber reads the leading integer of a free-text answer such as
// "12k", "45,000 km" or "3". A "k" suffix multiplies by a thousand.
// def is returned when no number is found.
func ParseNumber(text string, def int) int {
	text = strings.TrimSpace(strings.ReplaceAll(strings.ToLower(text), ",", ""))
	if text == "" {
		return def
	}
	m := leadingNumber.FindStringSubmatch(text)
	if m == nil {
		return def
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return def
	}
	if m[2] != "" {
		n *= 1000
	}
	return n
}

// Yes reports whether an answer is an affirmative "yes" or "y".
func Yes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "yes", "y":
		return true
	}
	return false
}
