package types

// Address represents a physical address
type Address struct {
	Line       string  `json:"line"`
	City       string  `json:"city"`
	PostalCode string  `json:"postal_code"`
	State      string  `json:"state"` // default "Pulau Pinang"
	Lat        float64 `json:"lat,omitempty"`
	Lng        float64 `json:"lng,omitempty"`
}

// NewAddress creates an address defaulting to Penang state
func NewAddress(line, city, postalCode string) Address {
	return Address{
		Line:       line,
		City:       city,
		PostalCode: postalCode,
		State:      "Pulau Pinang",
	}
}

// WithCoordinates adds geographic coordinates to the address
func (a Address) WithCoordinates(lat, lng float64) Address {
	a.Lat = lat
	a.Lng = lng
	return a
}

// IsZero reports whether no address fields are set
func (a Address) IsZero() bool {
	return a.Line == "" && a.City == "" && a.PostalCode == ""
}
