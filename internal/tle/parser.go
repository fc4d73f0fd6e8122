package tle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

type span struct {
	field      string
	start, end int
}

// Column layout of the NORAD two-line format (0-based, half-open).
var (
	colCatalogNumber = span{"catalog number", 2, 7}
	colDesignator    = span{"international designator", 9, 17}
	colLaunchYear    = span{"launch year", 9, 11}
	colLaunchNumber  = span{"launch number", 11, 14}
	colLaunchPiece   = span{"launch piece", 14, 17}
	colEpochYear     = span{"epoch year", 18, 20}
	colEpochDay      = span{"epoch day", 20, 32}

	colInclination  = span{"inclination", 9, 17}
	colRAAN         = span{"raan", 17, 25}
	colEccentricity = span{"eccentricity", 26, 33}
	colArgPerigee   = span{"argument of perigee", 34, 42}
	colMeanAnomaly  = span{"mean anomaly", 43, 51}
	colMeanMotion   = span{"mean motion", 52, 63}
	colRevolution   = span{"revolution number", 63, 68}
)

// decoder extracts fields from the element lines, keeping the first error.
type decoder struct {
	err error
}

func (d *decoder) fail(no int, s span, format string, args ...any) {
	if d.err == nil {
		d.err = &ParseError{Field: s.field, Line: no, Span: [2]int{s.start, s.end}, Err: fmt.Errorf(format, args...)}
	}
}

func (d *decoder) str(l string, no int, s span) string {
	if d.err != nil {
		return ""
	}
	if s.end > len(l) {
		d.fail(no, s, "line has %d columns", len(l))
		return ""
	}
	return strings.TrimSpace(l[s.start:s.end])
}

func (d *decoder) integer(l string, no int, s span) int {
	v := d.str(l, no, s)
	if d.err != nil {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		d.fail(no, s, "not an integer: %q", v)
	}
	return n
}

func (d *decoder) number(l string, no int, s span, prefix string) float64 {
	v := d.str(l, no, s)
	if d.err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(prefix+v, 64)
	if err != nil {
		d.fail(no, s, "not a number: %q", v)
	}
	return f
}

// Parse decodes one element set. The satellite name is not part of it.
//
// Two-digit years are expanded with different pivots: launch years below 57
// are 20xx, epoch years of 57 and above are 19xx.
func Parse(line1, line2 string) (Elements, error) {
	l1 := strings.TrimRight(line1, "\r\n ")
	l2 := strings.TrimRight(line2, "\r\n ")

	var d decoder
	if !strings.HasPrefix(l1, "1 ") {
		d.fail(1, span{"line number", 0, 2}, "expected \"1 \" prefix")
	}
	if !strings.HasPrefix(l2, "2 ") {
		d.fail(2, span{"line number", 0, 2}, "expected \"2 \" prefix")
	}

	var el Elements
	el.CatalogNumber = d.integer(l1, 1, colCatalogNumber)
	// Analyst objects and some debris have a blank designator.
	hasDesignator := d.str(l1, 1, colDesignator) != ""
	var launchYear, launchNumber int
	if hasDesignator {
		launchYear = d.integer(l1, 1, colLaunchYear)
		launchNumber = d.integer(l1, 1, colLaunchNumber)
	}
	epochYear := d.integer(l1, 1, colEpochYear)
	el.EpochDay = d.number(l1, 1, colEpochDay, "")

	el.Inclination = d.number(l2, 2, colInclination, "")
	el.RAAN = d.number(l2, 2, colRAAN, "")
	el.Eccentricity = d.number(l2, 2, colEccentricity, "0.")
	el.ArgPerigee = d.number(l2, 2, colArgPerigee, "")
	el.MeanAnomaly = d.number(l2, 2, colMeanAnomaly, "")
	el.MeanMotion = d.number(l2, 2, colMeanMotion, "")
	el.RevolutionNumber = d.integer(l2, 2, colRevolution)
	if d.err != nil {
		return Elements{}, d.err
	}

	if hasDesignator {
		if launchYear < 57 {
			launchYear += 2000
		} else {
			launchYear += 1900
		}
		piece := strings.TrimSpace(l1[colLaunchPiece.start:colLaunchPiece.end])
		el.Designator = fmt.Sprintf("%d-%03d%s", launchYear, launchNumber, piece)
	}
	if epochYear >= 57 {
		epochYear += 1900
	} else {
		epochYear += 2000
	}
	el.EpochYear = epochYear

	if err := el.Validate(); err != nil {
		return Elements{}, &ParseError{Field: "elements", Line: 2, Err: err}
	}
	return el, nil
}

// ParseDocument reads newline separated name/line1/line2 triplets from r.
// Blank lines are dropped and a trailing partial triplet is ignored. A
// malformed record is logged and reported in errs without affecting its
// neighbours. A leading "0 " on a name line (3LE format) is removed.
func ParseDocument(r io.Reader, logger *slog.Logger) (records []Record, errs []error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		l := strings.TrimRight(scanner.Text(), "\r\n ")
		if l != "" {
			lines = append(lines, l)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, []error{fmt.Errorf("reading TLE data: %w", err)}
	}

	complete := len(lines) / 3
	if rest := len(lines) % 3; rest != 0 {
		logger.Warn("ignoring trailing partial TLE record", "lines", rest)
	}

	for i := 0; i < complete; i++ {
		name := strings.TrimSpace(strings.TrimPrefix(lines[3*i], "0 "))
		l1, l2 := lines[3*i+1], lines[3*i+2]

		el, err := Parse(l1, l2)
		if err != nil {
			var pe *ParseError
			attrs := []any{"record", i, "name", name, "error", err}
			if errors.As(err, &pe) {
				attrs = append(attrs, "field", pe.Field)
			}
			logger.Warn("skipping malformed TLE record", attrs...)
			errs = append(errs, fmt.Errorf("record %d (%s): %w", i, name, err))
			continue
		}
		records = append(records, Record{Name: name, Line1: l1, Line2: l2, Elements: el})
	}
	return records, errs
}
