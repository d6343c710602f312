package models

import "time"

// Buyer is a registered investor profile with acquisition criteria.
type Buyer struct {
	BuyerID string `json:"buyer_id"`

	Name  string `json:"name"`
	Email string `json:"email"` // unique business key

	MaxPrice float64 `json:"max_price"`
	MinPrice float64 `json:"min_price"`

	// Inactive buyers are excluded from matching entirely.
	Active bool `json:"active"`

	// Preferred area substrings, matched case-insensitively against the
	// listing's "city state" string and its address. Empty means any
	// location is acceptable.
	PreferredAreas []string `json:"preferred_areas"`

	MinBedrooms  int     `json:"min_bedrooms"`
	MinBathrooms float64 `json:"min_bathrooms"`
	MinSqft      int     `json:"min_sqft"`

	// Acceptable property types, matched exactly. Empty means any type.
	PropertyTypes []string `json:"property_types"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
