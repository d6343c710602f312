package models

import "time"

// Listing is a scraped property record. The free-text fields (Price,
// Bedrooms, Bathrooms, Sqft) carry whatever the source site displayed;
// numeric extraction happens at match time, not at scrape time.
type Listing struct {
	ListingID string `json:"listing_id"`

	// Core attributes required for validity
	Address string `json:"address"`
	Price   string `json:"price"`
	Link    string `json:"link"`
	Date    string `json:"date"`

	// Pipeline status
	Contacted  string `json:"contacted"`
	Interested string `json:"interested"`

	// Property details, free text as scraped
	PropertyType string `json:"property_type"`
	Bedrooms     string `json:"bedrooms"`
	Bathrooms    string `json:"bathrooms"`
	Sqft         string `json:"sqft"`
	YearBuilt    string `json:"year_built"`

	// Provenance and location
	Source  string `json:"source"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zipcode string `json:"zipcode"`

	// Wholesaling estimates
	EstimatedRepairCost string `json:"estimated_repair_cost"`
	ARV                 string `json:"arv"`
	DaysOnMarket        string `json:"days_on_market"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// ListingColumns is the stable export column order. CSV and JSON exports
// as well as the store row mapping follow this order exactly.
var ListingColumns = []string{
	"listing_id", "address", "price", "link", "date",
	"contacted", "interested", "property_type",
	"bedrooms", "bathrooms", "sqft", "year_built",
	"source", "city", "state", "zipcode",
	"estimated_repair_cost", "arv", "days_on_market",
}
