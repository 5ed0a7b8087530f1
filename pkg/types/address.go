package types

import "strings"

// Address is the jsonb snapshot embedded in carts and orders. Address
// book rows carry the same shape plus ownership columns.
type Address struct {
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// CountryCode returns the normalized ISO-3166 alpha-2 country.
func (a Address) CountryCode() string {
	return strings.ToUpper(strings.TrimSpace(a.Country))
}

// StateCode returns the normalized region code.
func (a Address) StateCode() string {
	return strings.ToUpper(strings.TrimSpace(a.State))
}
