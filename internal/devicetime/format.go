// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package devicetime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Tokens are matched longest first. Text inside [brackets] is copied verbatim;
// anything else that is not a token passes through unchanged.
var formatTokens = []string{
	"YYYY", "MMMM", "dddd",
	"MMM", "ddd", "SSS",
	"YY", "MM", "Do", "DD", "dd", "HH", "hh", "mm", "ss", "SS", "ZZ",
	"M", "D", "d", "H", "h", "m", "s", "S", "A", "a", "Z", "X", "x",
}

// Format renders t using moment.js-style tokens, e.g. "YYYY-MM-DDTHH:mm:ssZ".
func Format(t time.Time, pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern) + 8)

	for i := 0; i < len(pattern); {
		if pattern[i] == '[' {
			end := strings.IndexByte(pattern[i+1:], ']')
			if end >= 0 {
				b.WriteString(pattern[i+1 : i+1+end])
				i += end + 2
				continue
			}
		}

		matched := false
		for _, tok := range formatTokens {
			if strings.HasPrefix(pattern[i:], tok) {
				b.WriteString(renderToken(t, tok))
				i += len(tok)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(pattern[i])
			i++
		}
	}
	return b.String()
}

func renderToken(t time.Time, tok string) string {
	switch tok {
	case "YYYY":
		return fmt.Sprintf("%04d", t.Year())
	case "YY":
		return fmt.Sprintf("%02d", t.Year()%100)
	case "MMMM":
		return t.Month().String()
	case "MMM":
		return t.Month().String()[:3]
	case "MM":
		return fmt.Sprintf("%02d", int(t.Month()))
	case "M":
		return strconv.Itoa(int(t.Month()))
	case "DD":
		return fmt.Sprintf("%02d", t.Day())
	case "D":
		return strconv.Itoa(t.Day())
	case "Do":
		return ordinal(t.Day())
	case "dddd":
		return t.Weekday().String()
	case "ddd":
		return t.Weekday().String()[:3]
	case "dd":
		return t.Weekday().String()[:2]
	case "d":
		return strconv.Itoa(int(t.Weekday()))
	case "HH":
		return fmt.Sprintf("%02d", t.Hour())
	case "H":
		return strconv.Itoa(t.Hour())
	case "hh":
		return fmt.Sprintf("%02d", hour12(t))
	case "h":
		return strconv.Itoa(hour12(t))
	case "mm":
		return fmt.Sprintf("%02d", t.Minute())
	case "m":
		return strconv.Itoa(t.Minute())
	case "ss":
		return fmt.Sprintf("%02d", t.Second())
	case "s":
		return strconv.Itoa(t.Second())
	case "SSS":
		return fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
	case "SS":
		return fmt.Sprintf("%02d", t.Nanosecond()/int(10*time.Millisecond))
	case "S":
		return strconv.Itoa(t.Nanosecond() / int(100*time.Millisecond))
	case "A":
		if t.Hour() < 12 {
			return "AM"
		}
		return "PM"
	case "a":
		if t.Hour() < 12 {
			return "am"
		}
		return "pm"
	case "Z":
		return offset(t, ":")
	case "ZZ":
		return offset(t, "")
	case "X":
		return strconv.FormatInt(t.Unix(), 10)
	case "x":
		return strconv.FormatInt(t.UnixMilli(), 10)
	}
	return tok
}

func hour12(t time.Time) int {
	h := t.Hour() % 12
	if h == 0 {
		return 12
	}
	return h
}

func ordinal(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

func offset(t time.Time, sep string) string {
	_, secs := t.Zone()
	sign := '+'
	if secs < 0 {
		sign = '-'
		secs = -secs
	}
	mins := secs / 60
	return fmt.Sprintf("%c%02d%s%02d", sign, mins/60, sep, mins%60)
}
