package models

import "time"

// Match links a listing to a buyer with a 0-100 confidence score.
// At most one match exists per (listing, buyer) pair; the first recorded
// score is kept and later recomputations are no-ops.
type Match struct {
	ListingID string    `json:"listing_id"`
	BuyerID   string    `json:"buyer_id"`
	Score     int       `json:"score"`
	Notified  bool      `json:"notified"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ScoredListing pairs a listing with its match score for a particular
// buyer, used for ranking and notification rendering.
type ScoredListing struct {
	Listing Listing `json:"listing"`
	Score   int     `json:"score"`
}
