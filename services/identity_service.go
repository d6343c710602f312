package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dealpipe/wholesale-backend/models"
)

// Listings and buyers get deterministic IDs derived from their business
// keys, so re-scraping the same property or re-registering the same
// buyer converges on the same row.

var (
	priceCharsPattern   = regexp.MustCompile(`[^0-9.]`)
	leadingIntPattern   = regexp.MustCompile(`\d+`)
	leadingFloatPattern = regexp.MustCompile(`\d+(\.\d+)?`)
)

// DeriveListingID computes the canonical ID for a listing from its
// address, source, and scrape date.
func DeriveListingID(address, source, date string) string {
	return deriveID(fmt.Sprintf("%s_%s_%s", address, source, date))
}

// DeriveBuyerID computes the canonical ID for a buyer from its email
// and name.
func DeriveBuyerID(email, name string) string {
	return deriveID(fmt.Sprintf("%s_%s", email, name))
}

// deriveID hashes the composite key and truncates to 12 hex characters.
// 48 bits is plenty for the table sizes this pipeline produces.
func deriveID(compositeKey string) string {
	digest := sha256.Sum256([]byte(compositeKey))
	return hex.EncodeToString(digest[:])[:12]
}

// IsSentinel reports whether a scraped field value is a known
// placeholder rather than real data.
func IsSentinel(value string) bool {
	switch strings.TrimSpace(value) {
	case "", "N/A", "n/a", "#":
		return true
	}
	return false
}

// IsValidListing applies the minimum bar for persisting a scraped card:
// a real address, a real price string, and a real link.
func IsValidListing(listing *models.Listing) bool {
	if listing.Address == "" || listing.Address == "N/A" {
		return false
	}
	if listing.Price == "" || listing.Price == "N/A" {
		return false
	}
	if listing.Link == "" || listing.Link == "#" {
		return false
	}
	return true
}

// ExtractPrice parses a free-text price like "$145,000" or "145000.50"
// into dollars. Returns nil when no usable number is present.
func ExtractPrice(raw string) *float64 {
	if IsSentinel(raw) {
		return nil
	}
	cleaned := priceCharsPattern.ReplaceAllString(raw, "")
	if cleaned == "" {
		return nil
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &value
}

// ExtractInteger pulls the first integer out of free text like
// "3 beds" or "3". Returns nil when no digits are present.
func ExtractInteger(raw string) *int {
	if IsSentinel(raw) {
		return nil
	}
	matched := leadingIntPattern.FindString(strings.ReplaceAll(raw, ",", ""))
	if matched == "" {
		return nil
	}
	value, err := strconv.Atoi(matched)
	if err != nil {
		return nil
	}
	return &value
}

// ExtractDecimal pulls the first decimal number out of free text like
// "2.5 baths". Returns nil when no digits are present.
func ExtractDecimal(raw string) *float64 {
	if IsSentinel(raw) {
		return nil
	}
	matched := leadingFloatPattern.FindString(strings.ReplaceAll(raw, ",", ""))
	if matched == "" {
		return nil
	}
	value, err := strconv.ParseFloat(matched, 64)
	if err != nil {
		return nil
	}
	return &value
}
