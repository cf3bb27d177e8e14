package profile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseDurationError reports a duration literal the profile grammar does not
// accept.
type ParseDurationError struct {
	Text string
}

func (e *ParseDurationError) Error() string {
	return fmt.Sprintf("invalid duration literal %q", e.Text)
}

type ParseBytesError struct {
	Text string
}

func (e *ParseBytesError) Error() string {
	return fmt.Sprintf("invalid byte-size literal %q", e.Text)
}

type ParseNumberError struct {
	Text string
}

func (e *ParseNumberError) Error() string {
	return fmt.Sprintf("invalid numeric literal %q", e.Text)
}

// Multi-char units must come before their single-char prefixes so the
// leftmost alternation picks "ms" over "m".
var durationComponentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)(ms|us|µs|μs|ns|h|m|s)`)

var durationUnitNs = map[string]float64{
	"h":  float64(time.Hour),
	"m":  float64(time.Minute),
	"s":  float64(time.Second),
	"ms": float64(time.Millisecond),
	"us": float64(time.Microsecond),
	"µs": float64(time.Microsecond),
	"μs": float64(time.Microsecond),
	"ns": 1,
}

// ParseDuration converts a profile duration literal into a time.Duration.
// The format is one or more <number><unit> components concatenated without
// separators ("1h30m", "7s854ms"); units may repeat. A bare "0" is zero.
func ParseDuration(text string) (time.Duration, error) {
	s := strings.TrimSpace(text)
	if s == "0" {
		return 0, nil
	}

	matches := durationComponentRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, &ParseDurationError{Text: text}
	}

	var totalNs float64
	for _, m := range matches {
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, &ParseDurationError{Text: text}
		}
		totalNs += value * durationUnitNs[m[2]]
	}

	return time.Duration(totalNs), nil
}

var (
	parenRawRe   = regexp.MustCompile(`\((\d[\d,]*)\)`)
	scaledByteRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(TB|GB|MB|KB|T|G|M|K|B)`)
	bareNumberRe = regexp.MustCompile(`^-?\d[\d,]*(?:\.\d+)?`)
)

var byteUnitScale = map[string]float64{
	"B":  1,
	"K":  1 << 10,
	"KB": 1 << 10,
	"M":  1 << 20,
	"MB": 1 << 20,
	"G":  1 << 30,
	"GB": 1 << 30,
	"T":  1 << 40,
	"TB": 1 << 40,
}

// ParseBytes converts a profile byte-size literal into a byte count. A
// parenthesized raw integer ("2.174K (2174)") takes precedence over the
// scaled value, which avoids rounding loss; otherwise <float><unit> is
// scaled by powers of 1024 and floored. A bare integer with thousands
// separators is accepted as a fallback.
func ParseBytes(text string) (uint64, error) {
	s := strings.TrimSpace(text)

	if m := parenRawRe.FindStringSubmatch(s); m != nil {
		raw, err := strconv.ParseUint(strings.ReplaceAll(m[1], ",", ""), 10, 64)
		if err != nil {
			return 0, &ParseBytesError{Text: text}
		}
		return raw, nil
	}

	if m := scaledByteRe.FindStringSubmatch(s); m != nil {
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, &ParseBytesError{Text: text}
		}
		return uint64(value * byteUnitScale[m[2]]), nil
	}

	if m := bareNumberRe.FindString(s); m != "" && !strings.HasPrefix(m, "-") {
		value, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err != nil {
			return 0, &ParseBytesError{Text: text}
		}
		return uint64(value), nil
	}

	return 0, &ParseBytesError{Text: text}
}

// ParseNumber converts a profile count literal into a float64. A
// parenthesized raw integer ("2.174K (2174)") takes precedence over the
// scaled prefix; otherwise thousands separators are stripped and the leading
// numeric run is parsed.
func ParseNumber(text string) (float64, error) {
	s := strings.TrimSpace(text)

	if m := parenRawRe.FindStringSubmatch(s); m != nil {
		value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			return 0, &ParseNumberError{Text: text}
		}
		return value, nil
	}

	if m := bareNumberRe.FindString(s); m != "" {
		value, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err != nil {
			return 0, &ParseNumberError{Text: text}
		}
		return value, nil
	}

	return 0, &ParseNumberError{Text: text}
}
