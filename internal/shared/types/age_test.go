package types

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TestAgeAt tests the years/months breakdown including the month borrow
func TestAgeAt(t *testing.T) {
	tests := []struct {
		name string
		dob  time.Time
		ref  time.Time
		want Age
	}{
		{
			"Day before birthday borrows a month",
			date(1985, time.June, 15), date(2024, time.June, 1),
			Age{Years: 38, Months: 11},
		},
		{
			"Birthday itself, no borrow",
			date(1985, time.June, 15), date(2024, time.June, 15),
			Age{Years: 39, Months: 0},
		},
		{
			"Day after birthday",
			date(1985, time.June, 15), date(2024, time.June, 16),
			Age{Years: 39, Months: 0},
		},
		{
			"Borrow cascades into years",
			date(1985, time.June, 15), date(2024, time.January, 10),
			Age{Years: 38, Months: 6},
		},
		{
			"Infant under one month",
			date(2024, time.May, 20), date(2024, time.June, 1),
			Age{Years: 0, Months: 0},
		},
		{
			"Infant months only",
			date(2023, time.November, 1), date(2024, time.June, 1),
			Age{Years: 0, Months: 7},
		},
		{
			"Same day",
			date(2024, time.June, 1), date(2024, time.June, 1),
			Age{Years: 0, Months: 0},
		},
		{
			"Future date of birth clamps to zero",
			date(2025, time.January, 1), date(2024, time.June, 1),
			Age{Years: 0, Months: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AgeAt(tt.dob, tt.ref)
			if got != tt.want {
				t.Errorf("AgeAt(%v, %v) = %+v, want %+v", tt.dob, tt.ref, got, tt.want)
			}
		})
	}
}

// TestAgeString tests the display rendering downstream consumers rely on
func TestAgeString(t *testing.T) {
	tests := []struct {
		age  Age
		want string
	}{
		{Age{Years: 38, Months: 11}, "38 years, 11 months"},
		{Age{Years: 39, Months: 0}, "39 years, 0 months"},
		{Age{}, "0 years, 0 months"},
	}

	for _, tt := range tests {
		if got := tt.age.String(); got != tt.want {
			t.Errorf("Age%+v.String() = %q, want %q", tt.age, got, tt.want)
		}
	}
}

// TestAgeIsMinor tests the structured minor check
func TestAgeIsMinor(t *testing.T) {
	tests := []struct {
		age  Age
		want bool
	}{
		{Age{Years: 0, Months: 3}, true},
		{Age{Years: 17, Months: 11}, true},
		{Age{Years: 18, Months: 0}, false},
		{Age{Years: 39, Months: 2}, false},
	}

	for _, tt := range tests {
		if got := tt.age.IsMinor(); got != tt.want {
			t.Errorf("Age%+v.IsMinor() = %v, want %v", tt.age, got, tt.want)
		}
	}
}
