package services

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/dealpipe/wholesale-backend/database"
	"github.com/dealpipe/wholesale-backend/models"
	_ "github.com/lib/pq"
)

// setupStoreTest connects to the test database, or skips when none is
// configured.
func setupStoreTest(t *testing.T) *StoreService {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("Skipping store integration tests - TEST_DATABASE_URL not set")
		return nil
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Skipf("Skipping store integration tests - database not available: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Skipf("Skipping store integration tests - database ping failed: %v", err)
		return nil
	}

	database.DB = db
	if err := database.Migrate("../database/schema.sql"); err != nil {
		t.Fatalf("Migration failed: %v", err)
	}

	t.Cleanup(func() {
		db.Exec(`DELETE FROM listing_matches`)
		db.Exec(`DELETE FROM listings`)
		db.Exec(`DELETE FROM buyers`)
		db.Exec(`DELETE FROM activity_log`)
		db.Close()
	})

	return NewStoreServiceWithDB(db)
}

func testListing(suffix string) models.Listing {
	return models.Listing{
		Address:      fmt.Sprintf("123 Main St #%s", suffix),
		Price:        "$120,000",
		Link:         "https://example.com/" + suffix,
		Date:         "2026-08-23",
		Contacted:    "No",
		Interested:   "Unknown",
		PropertyType: "Foreclosure",
		Bedrooms:     "3 bd",
		Bathrooms:    "2 ba",
		Sqft:         "1,400 sqft",
		YearBuilt:    "N/A",
		Source:       "Zillow",
		City:         "Kokomo",
		State:        "IN",
		Zipcode:      "46901",
	}
}

func TestUpsertListingIdempotent(t *testing.T) {
	store := setupStoreTest(t)
	ctx := context.Background()

	listing := testListing("upsert")
	inserted, err := store.UpsertListing(ctx, &listing)
	if err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}
	if !inserted {
		t.Error("Expected first upsert to insert")
	}
	if listing.ListingID == "" {
		t.Fatal("Expected upsert to derive the listing ID")
	}

	// Same business key with refreshed fields updates in place.
	refreshed := testListing("upsert")
	refreshed.Price = "$115,000"
	inserted, err = store.UpsertListing(ctx, &refreshed)
	if err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}
	if inserted {
		t.Error("Expected second upsert to update, not insert")
	}
	if refreshed.ListingID != listing.ListingID {
		t.Errorf("Upsert diverged on derived ID: %s vs %s", refreshed.ListingID, listing.ListingID)
	}

	count, err := store.CountListings(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 listing, got %d", count)
	}

	stored, err := store.ListListings(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(stored) != 1 || stored[0].Price != "$115,000" {
		t.Errorf("Expected refreshed price to be stored, got %+v", stored)
	}
}

func TestBuyerRoundTrip(t *testing.T) {
	store := setupStoreTest(t)
	ctx := context.Background()

	buyer := models.Buyer{
		Name:           "Jane Investor",
		Email:          "jane@example.com",
		MaxPrice:       175000,
		MinPrice:       50000,
		Active:         true,
		PreferredAreas: []string{"Kokomo", "Logansport"},
		MinBedrooms:    2,
		MinBathrooms:   1.5,
		MinSqft:        900,
		PropertyTypes:  []string{"Foreclosure"},
	}
	if err := store.UpsertBuyer(ctx, &buyer); err != nil {
		t.Fatalf("UpsertBuyer failed: %v", err)
	}

	buyers, err := store.ListActiveBuyers(ctx)
	if err != nil {
		t.Fatalf("ListActiveBuyers failed: %v", err)
	}
	if len(buyers) != 1 {
		t.Fatalf("Expected 1 active buyer, got %d", len(buyers))
	}
	got := buyers[0]
	if got.BuyerID != buyer.BuyerID || got.MaxPrice != 175000 || got.MinBathrooms != 1.5 {
		t.Errorf("Buyer fields did not round trip: %+v", got)
	}
	if len(got.PreferredAreas) != 2 || got.PreferredAreas[0] != "Kokomo" {
		t.Errorf("Preferred areas did not round trip: %v", got.PreferredAreas)
	}

	// Deactivated buyers disappear from the matching pool.
	buyer.Active = false
	if err := store.UpsertBuyer(ctx, &buyer); err != nil {
		t.Fatalf("Deactivating upsert failed: %v", err)
	}
	buyers, err = store.ListActiveBuyers(ctx)
	if err != nil {
		t.Fatalf("ListActiveBuyers failed: %v", err)
	}
	if len(buyers) != 0 {
		t.Errorf("Expected no active buyers after deactivation, got %d", len(buyers))
	}
}

func TestRecordMatchFirstScoreWins(t *testing.T) {
	store := setupStoreTest(t)
	ctx := context.Background()

	listing := testListing("match")
	if _, err := store.UpsertListing(ctx, &listing); err != nil {
		t.Fatalf("Listing setup failed: %v", err)
	}
	buyer := models.Buyer{Name: "Jane Investor", Email: "jane@example.com", MaxPrice: 175000, Active: true}
	if err := store.UpsertBuyer(ctx, &buyer); err != nil {
		t.Fatalf("Buyer setup failed: %v", err)
	}

	first := models.Match{ListingID: listing.ListingID, BuyerID: buyer.BuyerID, Score: 75}
	if err := store.RecordMatch(ctx, &first); err != nil {
		t.Fatalf("First RecordMatch failed: %v", err)
	}
	second := models.Match{ListingID: listing.ListingID, BuyerID: buyer.BuyerID, Score: 90}
	if err := store.RecordMatch(ctx, &second); err != nil {
		t.Fatalf("Second RecordMatch failed: %v", err)
	}

	matches, err := store.UnnotifiedMatches(ctx, buyer.BuyerID)
	if err != nil {
		t.Fatalf("UnnotifiedMatches failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("Expected exactly 1 match, got %d", len(matches))
	}
	if matches[0].Score != 75 {
		t.Errorf("Expected first score 75 to win, got %d", matches[0].Score)
	}
}

func TestMarkMatchesNotified(t *testing.T) {
	store := setupStoreTest(t)
	ctx := context.Background()

	listing := testListing("notify")
	if _, err := store.UpsertListing(ctx, &listing); err != nil {
		t.Fatalf("Listing setup failed: %v", err)
	}
	buyer := models.Buyer{Name: "Jane Investor", Email: "jane@example.com", MaxPrice: 175000, Active: true}
	if err := store.UpsertBuyer(ctx, &buyer); err != nil {
		t.Fatalf("Buyer setup failed: %v", err)
	}
	match := models.Match{ListingID: listing.ListingID, BuyerID: buyer.BuyerID, Score: 80}
	if err := store.RecordMatch(ctx, &match); err != nil {
		t.Fatalf("RecordMatch failed: %v", err)
	}

	if err := store.MarkMatchesNotified(ctx, buyer.BuyerID, []string{listing.ListingID}); err != nil {
		t.Fatalf("MarkMatchesNotified failed: %v", err)
	}

	matches, err := store.UnnotifiedMatches(ctx, buyer.BuyerID)
	if err != nil {
		t.Fatalf("UnnotifiedMatches failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Expected no pending matches after notification, got %d", len(matches))
	}

	pending, err := store.CountPendingMatches(ctx)
	if err != nil {
		t.Fatalf("CountPendingMatches failed: %v", err)
	}
	if pending != 0 {
		t.Errorf("Expected 0 pending matches, got %d", pending)
	}
}

func TestUnnotifiedMatchesOrdering(t *testing.T) {
	store := setupStoreTest(t)
	ctx := context.Background()

	buyer := models.Buyer{Name: "Jane Investor", Email: "jane@example.com", MaxPrice: 175000, Active: true}
	if err := store.UpsertBuyer(ctx, &buyer); err != nil {
		t.Fatalf("Buyer setup failed: %v", err)
	}

	scores := map[string]int{"a": 60, "b": 90, "c": 75}
	for suffix, score := range scores {
		listing := testListing(suffix)
		if _, err := store.UpsertListing(ctx, &listing); err != nil {
			t.Fatalf("Listing setup failed: %v", err)
		}
		match := models.Match{ListingID: listing.ListingID, BuyerID: buyer.BuyerID, Score: score}
		if err := store.RecordMatch(ctx, &match); err != nil {
			t.Fatalf("RecordMatch failed: %v", err)
		}
	}

	matches, err := store.UnnotifiedMatches(ctx, buyer.BuyerID)
	if err != nil {
		t.Fatalf("UnnotifiedMatches failed: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("Expected 3 matches, got %d", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("Matches out of order at %d: %d before %d", i, matches[i-1].Score, matches[i].Score)
		}
	}
}
