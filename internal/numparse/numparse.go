package numparse

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "borsapulse/internal/errors"
)

// InvalidVolume is the sentinel returned by ParseVolume for unparseable input
const InvalidVolume float64 = -1

// DayFirstLayouts are tried in order by ParseDate when no layout is given
var DayFirstLayouts = []string{
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006-01-02",
}

var volumeScale = map[byte]float64{
	'K': 1e3,
	'M': 1e6,
	'B': 1e9,
}

// clean strips surrounding whitespace and quote characters
func clean(token string) string {
	return strings.Trim(strings.TrimSpace(token), "\"'“”  \t")
}

// ParseDecimal parses a locale-ambiguous number.
//
// When both ',' and '.' are present the rightmost one is the decimal separator
// and the other is dropped. When only one kind is present it is the decimal
// separator, unless it occurs more than once, in which case it groups thousands.
func ParseDecimal(token string) (float64, error) {
	s := clean(token)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, apperrors.NewParseError("number", token, fmt.Errorf("empty value"))
	}

	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, apperrors.NewParseError("number", token, err)
	}
	// ParseFloat accepts NaN and Inf spellings
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, apperrors.NewParseError("number", token, fmt.Errorf("not a finite number"))
	}
	return v, nil
}

// ParseVolume parses a share count with an optional K, M or B suffix.
// It never fails: unparseable input, including counts that do not fit in
// an int64, yields (InvalidVolume, false), which callers treat as a row-level
// skip. A lone "-" means no trading.
func ParseVolume(token string) (float64, bool) {
	s := clean(token)
	if s == "-" {
		return 0, true
	}
	if s == "" {
		return InvalidVolume, false
	}

	scale := 1.0
	if f, ok := volumeScale[upper(s[len(s)-1])]; ok {
		scale = f
		s = strings.TrimSpace(s[:len(s)-1])
	}

	v, err := ParseDecimal(s)
	if err != nil || v < 0 {
		return InvalidVolume, false
	}
	v *= scale
	if v >= maxVolume {
		return InvalidVolume, false
	}
	return v, true
}

// maxVolume is 2^63, the first float64 that no longer fits in an int64
const maxVolume = float64(math.MaxInt64)

// ParsePercent parses a percent token such as "-1,25%"; empty input yields 0
func ParsePercent(token string) (float64, error) {
	s := clean(token)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return 0, nil
	}
	v, err := ParseDecimal(s)
	if err != nil {
		return 0, apperrors.NewParseError("percent", token, err)
	}
	return v, nil
}

// ParseDate parses a day-first calendar date. With an empty layout every
// entry of DayFirstLayouts is tried. The result is midnight UTC.
func ParseDate(token, layout string) (time.Time, error) {
	s := clean(token)
	if s == "" {
		return time.Time{}, apperrors.NewParseError("date", token, fmt.Errorf("empty value"))
	}

	layouts := DayFirstLayouts
	if layout != "" {
		layouts = []string{layout}
	}

	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, apperrors.NewParseError("date", token, fmt.Errorf("unrecognized date format"))
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}
