package jt9decode

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Spot is one decoded message, pulled apart.
//
//	001826   4 -0.2 1470 *  CQ EA8TN IL18
//	HHMMSS SNR   DT FREQ Q  MESSAGE
//
// jt9 may add a marker after the message: "a1" to "a7" for a priori
// decodes, "?" when it is unsure.
type Spot struct {
	Time      string  // HHMMSS, as printed.
	SNR       int     // dB
	DT        float64 // Time offset, seconds.
	Freq      int     // Audio frequency, Hz.
	Qualifier string  // "~", "*", "+" etc. or empty.

	Message    string
	Annotation string // "a1" .. "a7", "?", or empty.
	Grid       string // Last word of the message, if it is a 4 character locator.
}

// ParseSpot splits a decode line into its fields.
func ParseSpot(line string) (Spot, error) {
	var fields = strings.Fields(line)
	if len(fields) < 5 {
		return Spot{}, fmt.Errorf("%w: too few fields in %q", ErrFormat, line)
	}

	var spot Spot

	spot.Time = fields[0]
	if len(spot.Time) != 6 {
		return Spot{}, fmt.Errorf("%w: time %q is not HHMMSS", ErrFormat, spot.Time)
	}
	for _, ch := range spot.Time {
		if ch < '0' || ch > '9' {
			return Spot{}, fmt.Errorf("%w: time %q is not HHMMSS", ErrFormat, spot.Time)
		}
	}

	var err error

	spot.SNR, err = strconv.Atoi(fields[1])
	if err != nil {
		return Spot{}, fmt.Errorf("%w: SNR %q: %w", ErrFormat, fields[1], err)
	}

	spot.DT, err = strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Spot{}, fmt.Errorf("%w: DT %q: %w", ErrFormat, fields[2], err)
	}

	spot.Freq, err = strconv.Atoi(fields[3])
	if err != nil {
		return Spot{}, fmt.Errorf("%w: frequency %q: %w", ErrFormat, fields[3], err)
	}

	var rest = fields[4:]

	// The qualifier is a single punctuation character.  A one letter
	// message word would be odd but is left alone.
	if len(rest[0]) == 1 && !isAlnum(rest[0][0]) {
		spot.Qualifier = rest[0]
		rest = rest[1:]
	}

	if len(rest) == 0 {
		return Spot{}, fmt.Errorf("%w: no message in %q", ErrFormat, line)
	}

	var annotations []string
	for len(rest) > 1 && isAnnotation(rest[len(rest)-1]) {
		annotations = append([]string{rest[len(rest)-1]}, annotations...)
		rest = rest[:len(rest)-1]
	}
	spot.Annotation = strings.Join(annotations, " ")

	spot.Message = strings.Join(rest, " ")

	var last = rest[len(rest)-1]
	if IsGrid4(last) {
		spot.Grid = last
	}

	return spot, nil
}

// At is the time of the decode on the given UTC day.
func (s Spot) At(day time.Time) time.Time {
	var h, _ = strconv.Atoi(s.Time[0:2])
	var m, _ = strconv.Atoi(s.Time[2:4])
	var sec, _ = strconv.Atoi(s.Time[4:6])

	var d = day.UTC()

	return time.Date(d.Year(), d.Month(), d.Day(), h, m, sec, 0, time.UTC)
}

func isAnnotation(word string) bool {
	if word == "?" {
		return true
	}

	return len(word) == 2 && word[0] == 'a' && word[1] >= '1' && word[1] <= '7'
}

func isAlnum(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z')
}
