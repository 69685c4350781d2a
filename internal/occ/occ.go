// Package occ parses and formats OCC-style option symbols structurally,
// replacing the length-and-letter heuristic the original engine used to
// decide whether a symbol was an option (spec §4.3, §9 "Redesigned Behavior"
// #7).
//
// The OCC symbol layout is:
//
//	<root, 1-6 chars><YYMMDD><C|P><strike*1000, zero-padded to 8 digits>
//
// e.g. "AAPL240119C00195000" is a AAPL call expiring 2024-01-19 at a $195
// strike.
package occ

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	dateLen    = 6
	strikeLen  = 8
	minRootLen = 1
	maxRootLen = 6
)

// Parsed is the structural decomposition of an OCC option symbol.
type Parsed struct {
	Underlying string
	OptionType string // "call" or "put"
	Strike     float64
	Expiry     string // MM/DD/YYYY
	Multiplier int64
}

// DefaultMultiplier is the standard equity option contract multiplier.
const DefaultMultiplier int64 = 100

// IsOptionSymbol reports whether sym is structurally a valid OCC option
// symbol: total length root+6+1+8, a C/P at the expected offset, and an
// all-digit 8-character strike tail. Anything else is treated as a stock
// symbol, matching spec §4.3.
func IsOptionSymbol(sym string) bool {
	_, ok := tryParse(sym)
	return ok
}

// Parse decomposes sym into its OCC fields. ok is false if sym is not a
// structurally valid OCC symbol, in which case the caller should treat it
// as a plain stock symbol.
func Parse(sym string) (Parsed, bool) {
	return tryParse(sym)
}

func tryParse(sym string) (Parsed, bool) {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	// Minimum length: 1-char root + 6-digit date + 1 type char + 8-digit strike.
	minLen := minRootLen + dateLen + 1 + strikeLen
	if len(sym) < minLen {
		return Parsed{}, false
	}

	tail := sym[len(sym)-strikeLen:]
	if !allDigits(tail) {
		return Parsed{}, false
	}

	typeChar := sym[len(sym)-strikeLen-1]
	var optionType string
	switch typeChar {
	case 'C':
		optionType = "call"
	case 'P':
		optionType = "put"
	default:
		return Parsed{}, false
	}

	dateEnd := len(sym) - strikeLen - 1
	dateStart := dateEnd - dateLen
	if dateStart < minRootLen {
		return Parsed{}, false
	}
	dateStr := sym[dateStart:dateEnd]
	if !allDigits(dateStr) {
		return Parsed{}, false
	}

	root := sym[:dateStart]
	if len(root) < minRootLen || len(root) > maxRootLen {
		return Parsed{}, false
	}
	if !isAlnumRoot(root) {
		return Parsed{}, false
	}

	yy := dateStr[0:2]
	mm := dateStr[2:4]
	dd := dateStr[4:6]
	month, err := strconv.Atoi(mm)
	if err != nil || month < 1 || month > 12 {
		return Parsed{}, false
	}
	day, err := strconv.Atoi(dd)
	if err != nil || day < 1 || day > 31 {
		return Parsed{}, false
	}
	year := "20" + yy

	strikeRaw, err := strconv.ParseInt(tail, 10, 64)
	if err != nil {
		return Parsed{}, false
	}
	strike := float64(strikeRaw) / 1000.0

	return Parsed{
		Underlying: root,
		OptionType: optionType,
		Strike:     strike,
		Expiry:     fmt.Sprintf("%s/%s/%s", mm, dd, year),
		Multiplier: DefaultMultiplier,
	}, true
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isAlnumRoot(s string) bool {
	for _, c := range s {
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

// Format renders an OCC symbol from its parts. expiry must be MM/DD/YYYY.
func Format(underlying, optionType string, strike float64, expiry string) (string, error) {
	parts := strings.Split(expiry, "/")
	if len(parts) != 3 {
		return "", fmt.Errorf("occ: invalid expiry %q, want MM/DD/YYYY", expiry)
	}
	mm, dd, yyyy := parts[0], parts[1], parts[2]
	if len(yyyy) != 4 {
		return "", fmt.Errorf("occ: invalid expiry year %q", yyyy)
	}
	yy := yyyy[2:]

	var typeChar string
	switch optionType {
	case "call":
		typeChar = "C"
	case "put":
		typeChar = "P"
	default:
		return "", fmt.Errorf("occ: invalid option type %q", optionType)
	}

	strikeInt := int64(strike*1000 + 0.5)
	return fmt.Sprintf("%s%s%s%s%s%08d", strings.ToUpper(underlying), yy, mm, dd, typeChar, strikeInt), nil
}
