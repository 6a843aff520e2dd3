package types

import (
	"fmt"
	"regexp"
	"time"
)

// MyKad represents a Malaysian national identity number (12 digits)
// Format: YYMMDDPBXXXG where:
// - YYMMDD: date of birth (two-digit year, month, day)
// - PB: place-of-birth code
// - XXX: registration sequence
// - G: gender digit (odd male, even female)
type MyKad string

var mykadRegex = regexp.MustCompile(`^\d{12}$`)

// ParseMyKad normalizes and validates a MyKad string
func ParseMyKad(s string) (MyKad, error) {
	normalized := NormalizeIdentifier(s)
	if !mykadRegex.MatchString(normalized) {
		return "", fmt.Errorf("MyKad must be exactly 12 digits")
	}
	return MyKad(normalized), nil
}

// String returns the string representation
func (m MyKad) String() string {
	return string(m)
}

// Formatted returns the conventional hyphenated form (YYMMDD-PB-XXXG)
func (m MyKad) Formatted() string {
	if len(m) != 12 {
		return string(m)
	}
	return string(m)[:6] + "-" + string(m)[6:8] + "-" + string(m)[8:]
}

// Masked returns a masked version for display (birth date digits visible)
func (m MyKad) Masked() string {
	if len(m) < 12 {
		return "************"
	}
	return string(m)[:6] + "******"
}

// IsZero checks if the MyKad is empty
func (m MyKad) IsZero() bool {
	return m == ""
}

// DateOfBirth decodes the birth date embedded in the first six digits.
// The two-digit year is resolved against the reference date using a rolling
// 100-year window: a suffix less than or equal to the reference year's last
// two digits lands in the 2000s, anything greater in the 1900s. The boundary
// is <=, so a suffix equal to the reference year resolves to the 2000s.
//
// Returns false for identifiers that are not 12 digits or whose month/day
// components do not form a real calendar date. A failed decode is not an
// error condition; the caller falls back to manual date entry.
func (m MyKad) DateOfBirth(reference time.Time) (time.Time, bool) {
	if !mykadRegex.MatchString(string(m)) {
		return time.Time{}, false
	}

	yearSuffix := digitPair(string(m)[0:2])
	month := digitPair(string(m)[2:4])
	day := digitPair(string(m)[4:6])

	year := 1900 + yearSuffix
	if yearSuffix <= reference.Year()%100 {
		year = 2000 + yearSuffix
	}

	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}

	// time.Date normalizes out-of-range components (Feb 31 becomes Mar 3),
	// so reject anything that does not round-trip.
	dob := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if dob.Year() != year || dob.Month() != time.Month(month) || dob.Day() != day {
		return time.Time{}, false
	}

	return dob, true
}

// digitPair parses two ASCII digits without the strconv error path;
// callers have already matched the all-digits regex.
func digitPair(s string) int {
	return int(s[0]-'0')*10 + int(s[1]-'0')
}
