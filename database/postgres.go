package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/dealpipe/wholesale-backend/config"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

var DB *sql.DB

// Connect establishes the database connection with default pool settings.
func Connect(dbURL string) error {
	cfg := config.DefaultDatabaseConfig()
	return ConnectWithConfig(dbURL, &cfg)
}

// ConnectWithConfig establishes the database connection with custom pool
// settings. An unreachable database here is the one fatal startup error.
func ConnectWithConfig(dbURL string, cfg *config.DatabaseConfig) error {
	var err error
	DB, err = sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(cfg.MaxOpenConns)
	DB.SetMaxIdleConns(cfg.MaxIdleConns)
	DB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	DB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()

	if err = DB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime,
	}).Info("Connected to database successfully")

	return nil
}

// Close closes the shared connection pool.
func Close() {
	if DB != nil {
		DB.Close()
		logrus.Info("Database connection closed")
	}
}

// Migrate executes the schema file statement by statement. Statements
// that fail (e.g. objects that already exist under an older schema) are
// logged and skipped so re-running is safe.
func Migrate(schemaPath string) error {
	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	statements := parseSQLStatements(string(content))

	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err = DB.Exec(stmt); err != nil {
			logrus.Warnf("Migration statement failed (continuing): %v", err)
		}
	}

	logrus.Info("Database migration completed")
	return nil
}

// HealthCheck pings the database and inspects pool state.
func HealthCheck(ctx context.Context) error {
	if DB == nil {
		return fmt.Errorf("database connection not established")
	}
	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// parseSQLStatements splits schema SQL into individual statements,
// handling multi-line statements and comment lines.
func parseSQLStatements(content string) []string {
	var statements []string
	var currentStatement strings.Builder

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}

		if currentStatement.Len() > 0 {
			currentStatement.WriteString(" ")
		}
		currentStatement.WriteString(line)

		if strings.HasSuffix(line, ";") {
			stmt := strings.TrimSpace(strings.TrimSuffix(currentStatement.String(), ";"))
			if stmt != "" {
				statements = append(statements, stmt)
			}
			currentStatement.Reset()
		}
	}

	if currentStatement.Len() > 0 {
		stmt := strings.TrimSpace(currentStatement.String())
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}

	return statements
}
