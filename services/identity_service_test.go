package services

import (
	"regexp"
	"testing"

	"github.com/dealpipe/wholesale-backend/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDeriveListingID(t *testing.T) {
	first := DeriveListingID("123 Main St", "Zillow", "2026-08-23")
	second := DeriveListingID("123 Main St", "Zillow", "2026-08-23")

	if first != second {
		t.Errorf("Same inputs produced different IDs: %s vs %s", first, second)
	}
	if len(first) != 12 {
		t.Errorf("Expected 12 character ID, got %d: %s", len(first), first)
	}

	differentSource := DeriveListingID("123 Main St", "Realtor.com", "2026-08-23")
	if first == differentSource {
		t.Error("Different sources should produce different IDs")
	}
	differentDate := DeriveListingID("123 Main St", "Zillow", "2026-08-24")
	if first == differentDate {
		t.Error("Different dates should produce different IDs")
	}
}

func TestDeriveBuyerID(t *testing.T) {
	first := DeriveBuyerID("investor@example.com", "Jane Investor")
	second := DeriveBuyerID("investor@example.com", "Jane Investor")
	if first != second {
		t.Errorf("Same inputs produced different IDs: %s vs %s", first, second)
	}
	if DeriveBuyerID("other@example.com", "Jane Investor") == first {
		t.Error("Different emails should produce different IDs")
	}
}

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *float64
	}{
		{"dollar formatted", "$145,000", floatPtr(145000)},
		{"plain number", "145000", floatPtr(145000)},
		{"decimal", "145000.50", floatPtr(145000.50)},
		{"with suffix text", "$99,900 est.", floatPtr(99900)},
		{"empty", "", nil},
		{"sentinel", "N/A", nil},
		{"no digits", "Call for price", nil},
		{"multiple dots", "1.2.3", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractPrice(tt.input)
			if (result == nil) != (tt.expected == nil) {
				t.Fatalf("ExtractPrice(%q) = %v, expected %v", tt.input, result, tt.expected)
			}
			if result != nil && *result != *tt.expected {
				t.Errorf("ExtractPrice(%q) = %f, expected %f", tt.input, *result, *tt.expected)
			}
		})
	}
}

func TestExtractInteger(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *int
	}{
		{"beds with suffix", "3 bd", intPtr(3)},
		{"plain number", "4", intPtr(4)},
		{"with commas", "1,250 sqft", intPtr(1250)},
		{"first number wins", "3 bd 2 ba", intPtr(3)},
		{"empty", "", nil},
		{"sentinel", "N/A", nil},
		{"no digits", "studio", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractInteger(tt.input)
			if (result == nil) != (tt.expected == nil) {
				t.Fatalf("ExtractInteger(%q) = %v, expected %v", tt.input, result, tt.expected)
			}
			if result != nil && *result != *tt.expected {
				t.Errorf("ExtractInteger(%q) = %d, expected %d", tt.input, *result, *tt.expected)
			}
		})
	}
}

func TestExtractDecimal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *float64
	}{
		{"baths with suffix", "2.5 ba", floatPtr(2.5)},
		{"whole number", "2 ba", floatPtr(2)},
		{"first number wins", "2.5 ba, 2 half", floatPtr(2.5)},
		{"empty", "", nil},
		{"sentinel", "N/A", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractDecimal(tt.input)
			if (result == nil) != (tt.expected == nil) {
				t.Fatalf("ExtractDecimal(%q) = %v, expected %v", tt.input, result, tt.expected)
			}
			if result != nil && *result != *tt.expected {
				t.Errorf("ExtractDecimal(%q) = %f, expected %f", tt.input, *result, *tt.expected)
			}
		})
	}
}

func TestIsValidListing(t *testing.T) {
	valid := models.Listing{Address: "123 Main St", Price: "$100,000", Link: "https://example.com/1"}
	if !IsValidListing(&valid) {
		t.Error("Expected complete listing to be valid")
	}

	tests := []struct {
		name   string
		mutate func(*models.Listing)
	}{
		{"empty address", func(l *models.Listing) { l.Address = "" }},
		{"placeholder address", func(l *models.Listing) { l.Address = "N/A" }},
		{"empty price", func(l *models.Listing) { l.Price = "" }},
		{"placeholder price", func(l *models.Listing) { l.Price = "N/A" }},
		{"empty link", func(l *models.Listing) { l.Link = "" }},
		{"placeholder link", func(l *models.Listing) { l.Link = "#" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listing := valid
			tt.mutate(&listing)
			if IsValidListing(&listing) {
				t.Errorf("Expected listing with %s to be invalid", tt.name)
			}
		})
	}
}

func TestIdentityProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	hexPattern := regexp.MustCompile(`^[0-9a-f]{12}$`)

	properties.Property("Listing IDs are deterministic 12-char lowercase hex for any input", prop.ForAll(
		func(address, source, date string) bool {
			id := DeriveListingID(address, source, date)
			return id == DeriveListingID(address, source, date) && hexPattern.MatchString(id)
		},
		gen.AnyString(), gen.AnyString(), gen.AnyString(),
	))

	properties.Property("Price extraction never panics and never returns negative values", prop.ForAll(
		func(raw string) bool {
			price := ExtractPrice(raw)
			return price == nil || *price >= 0
		},
		gen.AnyString(),
	))

	properties.Property("Integer extraction never panics and never returns negative values", prop.ForAll(
		func(raw string) bool {
			value := ExtractInteger(raw)
			return value == nil || *value >= 0
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
