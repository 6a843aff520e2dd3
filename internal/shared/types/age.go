package types

import (
	"fmt"
	"time"
)

// Age is a completed years/months breakdown between a date of birth and a
// reference date. It is recomputed on demand, never stored; the registration
// form snapshots the rendered string but the structured value is canonical.
type Age struct {
	Years  int `json:"years"`
	Months int `json:"months"`
}

// AgeAt computes the age at the reference date. A month only counts once the
// day-of-month has been reached, so the month component is borrowed from when
// the reference day is earlier than the birth day. A date of birth after the
// reference date clamps to zero rather than going negative.
func AgeAt(dob, reference time.Time) Age {
	years := reference.Year() - dob.Year()
	months := int(reference.Month()) - int(dob.Month())

	if reference.Day() < dob.Day() {
		months--
	}
	if months < 0 {
		years--
		months += 12
	}
	if years < 0 {
		return Age{}
	}

	return Age{Years: years, Months: months}
}

// String renders the breakdown in the linelist's display form
func (a Age) String() string {
	return fmt.Sprintf("%d years, %d months", a.Years, a.Months)
}

// IsMinor reports whether the age is under 18 years
func (a Age) IsMinor() bool {
	return a.Years < 18
}
