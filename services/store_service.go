package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dealpipe/wholesale-backend/database"
	"github.com/dealpipe/wholesale-backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StoreService owns all reads and writes against the database. Every
// write is idempotent so a re-run of the same cycle converges instead
// of duplicating rows.
type StoreService struct {
	db *sql.DB
}

// NewStoreService creates a store bound to the shared connection pool.
func NewStoreService() *StoreService {
	return &StoreService{db: database.DB}
}

// NewStoreServiceWithDB creates a store bound to an explicit connection,
// used by tests.
func NewStoreServiceWithDB(db *sql.DB) *StoreService {
	return &StoreService{db: db}
}

// UpsertListing inserts a listing or refreshes every mutable column of
// an existing one. Returns true when the row was newly inserted.
func (s *StoreService) UpsertListing(ctx context.Context, listing *models.Listing) (bool, error) {
	if listing.ListingID == "" {
		listing.ListingID = DeriveListingID(listing.Address, listing.Source, listing.Date)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var inserted bool
	err = tx.QueryRowContext(ctx, `
		INSERT INTO listings (
			listing_id, address, price, link, date,
			contacted, interested, property_type,
			bedrooms, bathrooms, sqft, year_built,
			source, city, state, zipcode,
			estimated_repair_cost, arv, days_on_market, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,CURRENT_TIMESTAMP)
		ON CONFLICT (listing_id) DO UPDATE SET
			address = EXCLUDED.address,
			price = EXCLUDED.price,
			link = EXCLUDED.link,
			date = EXCLUDED.date,
			contacted = EXCLUDED.contacted,
			interested = EXCLUDED.interested,
			property_type = EXCLUDED.property_type,
			bedrooms = EXCLUDED.bedrooms,
			bathrooms = EXCLUDED.bathrooms,
			sqft = EXCLUDED.sqft,
			year_built = EXCLUDED.year_built,
			source = EXCLUDED.source,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zipcode = EXCLUDED.zipcode,
			estimated_repair_cost = EXCLUDED.estimated_repair_cost,
			arv = EXCLUDED.arv,
			days_on_market = EXCLUDED.days_on_market,
			updated_at = CURRENT_TIMESTAMP
		RETURNING (xmax = 0)`,
		listing.ListingID, listing.Address, listing.Price, listing.Link, listing.Date,
		listing.Contacted, listing.Interested, listing.PropertyType,
		listing.Bedrooms, listing.Bathrooms, listing.Sqft, listing.YearBuilt,
		listing.Source, listing.City, listing.State, listing.Zipcode,
		listing.EstimatedRepairCost, listing.ARV, listing.DaysOnMarket,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert listing %s: %w", listing.ListingID, err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit listing upsert: %w", err)
	}
	return inserted, nil
}

// ListListings returns the newest listings first, up to limit (0 means
// no limit).
func (s *StoreService) ListListings(ctx context.Context, limit int) ([]models.Listing, error) {
	query := `
		SELECT listing_id, address, price, link, date,
		       contacted, interested, property_type,
		       bedrooms, bathrooms, sqft, year_built,
		       source, city, state, zipcode,
		       estimated_repair_cost, arv, days_on_market,
		       created_at, updated_at
		FROM listings
		ORDER BY created_at DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, query+" LIMIT $1", limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(
			&l.ListingID, &l.Address, &l.Price, &l.Link, &l.Date,
			&l.Contacted, &l.Interested, &l.PropertyType,
			&l.Bedrooms, &l.Bathrooms, &l.Sqft, &l.YearBuilt,
			&l.Source, &l.City, &l.State, &l.Zipcode,
			&l.EstimatedRepairCost, &l.ARV, &l.DaysOnMarket,
			&l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan listing row: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// CountListings returns the total number of stored listings.
func (s *StoreService) CountListings(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&count)
	return count, err
}

// UpsertBuyer inserts a buyer or refreshes an existing one keyed by the
// derived buyer ID. The email unique constraint catches a second buyer
// registering with a different name but the same address.
func (s *StoreService) UpsertBuyer(ctx context.Context, buyer *models.Buyer) error {
	if buyer.BuyerID == "" {
		buyer.BuyerID = DeriveBuyerID(buyer.Email, buyer.Name)
	}

	areas, err := json.Marshal(buyer.PreferredAreas)
	if err != nil {
		return fmt.Errorf("failed to encode preferred areas: %w", err)
	}
	types, err := json.Marshal(buyer.PropertyTypes)
	if err != nil {
		return fmt.Errorf("failed to encode property types: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO buyers (
			buyer_id, name, email, max_price, min_price, active,
			preferred_areas, min_bedrooms, min_bathrooms, min_sqft,
			property_types, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,CURRENT_TIMESTAMP)
		ON CONFLICT (buyer_id) DO UPDATE SET
			name = EXCLUDED.name,
			max_price = EXCLUDED.max_price,
			min_price = EXCLUDED.min_price,
			active = EXCLUDED.active,
			preferred_areas = EXCLUDED.preferred_areas,
			min_bedrooms = EXCLUDED.min_bedrooms,
			min_bathrooms = EXCLUDED.min_bathrooms,
			min_sqft = EXCLUDED.min_sqft,
			property_types = EXCLUDED.property_types,
			updated_at = CURRENT_TIMESTAMP`,
		buyer.BuyerID, buyer.Name, buyer.Email, buyer.MaxPrice, buyer.MinPrice, buyer.Active,
		areas, buyer.MinBedrooms, buyer.MinBathrooms, buyer.MinSqft, types,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert buyer %s: %w", buyer.BuyerID, err)
	}
	return nil
}

// ListActiveBuyers returns all buyers currently eligible for matching.
func (s *StoreService) ListActiveBuyers(ctx context.Context) ([]models.Buyer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT buyer_id, name, email, max_price, min_price, active,
		       preferred_areas, min_bedrooms, min_bathrooms, min_sqft,
		       property_types, created_at, updated_at
		FROM buyers
		WHERE active = TRUE
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active buyers: %w", err)
	}
	defer rows.Close()

	var buyers []models.Buyer
	for rows.Next() {
		var b models.Buyer
		var areas, types []byte
		if err := rows.Scan(
			&b.BuyerID, &b.Name, &b.Email, &b.MaxPrice, &b.MinPrice, &b.Active,
			&areas, &b.MinBedrooms, &b.MinBathrooms, &b.MinSqft,
			&types, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan buyer row: %w", err)
		}
		if err := json.Unmarshal(areas, &b.PreferredAreas); err != nil {
			logrus.Warnf("Buyer %s has malformed preferred_areas, treating as empty", b.BuyerID)
		}
		if err := json.Unmarshal(types, &b.PropertyTypes); err != nil {
			logrus.Warnf("Buyer %s has malformed property_types, treating as empty", b.BuyerID)
		}
		buyers = append(buyers, b)
	}
	return buyers, rows.Err()
}

// RecordMatch persists a qualifying match. The first score recorded for
// a (listing, buyer) pair wins; recomputations are ignored.
func (s *StoreService) RecordMatch(ctx context.Context, match *models.Match) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO listing_matches (listing_id, buyer_id, score, notified)
		VALUES ($1, $2, $3, FALSE)
		ON CONFLICT (listing_id, buyer_id) DO NOTHING`,
		match.ListingID, match.BuyerID, match.Score,
	)
	if err != nil {
		return fmt.Errorf("failed to record match %s/%s: %w", match.ListingID, match.BuyerID, err)
	}
	return nil
}

// UnnotifiedMatches returns, per buyer, the stored listings with a
// pending match, best score first with listing ID as the tie-break.
func (s *StoreService) UnnotifiedMatches(ctx context.Context, buyerID string) ([]models.ScoredListing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.listing_id, l.address, l.price, l.link, l.date,
		       l.contacted, l.interested, l.property_type,
		       l.bedrooms, l.bathrooms, l.sqft, l.year_built,
		       l.source, l.city, l.state, l.zipcode,
		       l.estimated_repair_cost, l.arv, l.days_on_market,
		       l.created_at, l.updated_at, m.score
		FROM listing_matches m
		JOIN listings l ON l.listing_id = m.listing_id
		WHERE m.buyer_id = $1 AND m.notified = FALSE
		ORDER BY m.score DESC, l.listing_id ASC`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unnotified matches: %w", err)
	}
	defer rows.Close()

	var scored []models.ScoredListing
	for rows.Next() {
		var sl models.ScoredListing
		l := &sl.Listing
		if err := rows.Scan(
			&l.ListingID, &l.Address, &l.Price, &l.Link, &l.Date,
			&l.Contacted, &l.Interested, &l.PropertyType,
			&l.Bedrooms, &l.Bathrooms, &l.Sqft, &l.YearBuilt,
			&l.Source, &l.City, &l.State, &l.Zipcode,
			&l.EstimatedRepairCost, &l.ARV, &l.DaysOnMarket,
			&l.CreatedAt, &l.UpdatedAt, &sl.Score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		scored = append(scored, sl)
	}
	return scored, rows.Err()
}

// MarkMatchesNotified flips the notified flag for the given listings of
// one buyer, called only after the notification email was accepted.
func (s *StoreService) MarkMatchesNotified(ctx context.Context, buyerID string, listingIDs []string) error {
	if len(listingIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, listingID := range listingIDs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE listing_matches SET notified = TRUE
			WHERE buyer_id = $1 AND listing_id = $2`, buyerID, listingID); err != nil {
			return fmt.Errorf("failed to mark match notified: %w", err)
		}
	}
	return tx.Commit()
}

// CountPendingMatches returns the number of matches not yet notified.
func (s *StoreService) CountPendingMatches(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listing_matches WHERE notified = FALSE`).Scan(&count)
	return count, err
}

// AppendLog writes an activity log entry. Failures are logged and
// swallowed; the log never blocks the pipeline.
func (s *StoreService) AppendLog(ctx context.Context, level, source, message string) {
	entry := models.ActivityLogEntry{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		Level:     level,
		Source:    source,
		Message:   message,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (id, timestamp, level, source, message)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.Timestamp, entry.Level, entry.Source, entry.Message,
	)
	if err != nil {
		logrus.Warnf("Failed to append activity log entry: %v", err)
	}
}

// Stats aggregates pipeline counters for the stats command and the API.
func (s *StoreService) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	queries := map[string]string{
		"total_listings":   `SELECT COUNT(*) FROM listings`,
		"active_buyers":    `SELECT COUNT(*) FROM buyers WHERE active = TRUE`,
		"total_matches":    `SELECT COUNT(*) FROM listing_matches`,
		"pending_matches":  `SELECT COUNT(*) FROM listing_matches WHERE notified = FALSE`,
		"notified_matches": `SELECT COUNT(*) FROM listing_matches WHERE notified = TRUE`,
		"sources_seen":     `SELECT COUNT(DISTINCT source) FROM listings`,
		"cities_seen":      `SELECT COUNT(DISTINCT city) FROM listings`,
	}
	for key, query := range queries {
		var count int
		if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to compute %s: %w", key, err)
		}
		stats[key] = count
	}

	return stats, nil
}
