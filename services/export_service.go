package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dealpipe/wholesale-backend/models"
	"github.com/sirupsen/logrus"
)

// ExportService writes listing snapshots to CSV and JSON files. Column
// order follows models.ListingColumns so downstream spreadsheets keep a
// stable layout across runs.
type ExportService struct{}

// NewExportService creates an export service.
func NewExportService() *ExportService {
	return &ExportService{}
}

// ExportCSV writes listings to a CSV file with a header row. An empty
// listing set still produces the header.
func (e *ExportService) ExportCSV(listings []models.Listing, path string) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(models.ListingColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range listings {
		if err := writer.Write(listingRow(&listings[i])); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"path":     path,
		"listings": len(listings),
	}).Info("CSV export complete")
	return nil
}

// ExportJSON writes listings as an indented JSON array. An empty set
// produces an empty array, not null.
func (e *ExportService) ExportJSON(listings []models.Listing, path string) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}

	if listings == nil {
		listings = []models.Listing{}
	}

	data, err := json.MarshalIndent(listings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode listings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"path":     path,
		"listings": len(listings),
	}).Info("JSON export complete")
	return nil
}

// ReadJSON loads a previously exported JSON snapshot.
func (e *ExportService) ReadJSON(path string) ([]models.Listing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON file: %w", err)
	}
	var listings []models.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}
	return listings, nil
}

// listingRow maps a listing to the stable column order.
func listingRow(l *models.Listing) []string {
	return []string{
		l.ListingID, l.Address, l.Price, l.Link, l.Date,
		l.Contacted, l.Interested, l.PropertyType,
		l.Bedrooms, l.Bathrooms, l.Sqft, l.YearBuilt,
		l.Source, l.City, l.State, l.Zipcode,
		l.EstimatedRepairCost, l.ARV, l.DaysOnMarket,
	}
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	return nil
}
