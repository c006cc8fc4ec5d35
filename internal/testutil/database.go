// Package testutil provides database and fixture helpers for tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bank-reconciliation-backend/internal/models"
	"bank-reconciliation-backend/internal/repository"
)

// SetupTestDB opens a private in-memory SQLite database with the schema applied.
// The database is closed when the test ends.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := repository.Migrate(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// Line builds an imported bank line dated in March 2025.
func Line(n int, label, amount string) models.Transaction {
	return models.Transaction{
		Date:       time.Date(2025, 3, n, 0, 0, 0, 0, time.UTC),
		Label:      label,
		Net:        decimal.RequireFromString(amount),
		LineNumber: n,
	}
}

// Entry builds an unlinked entry in the given state.
func Entry(status models.MatchStatus, tx models.Transaction) models.MatchRecord {
	return models.MatchRecord{Transaction: tx, Status: status}
}

// MatchedEntry builds a matched entry linked to link.
func MatchedEntry(tx models.Transaction, link models.EntityLink) models.MatchRecord {
	return models.MatchRecord{Transaction: tx, Status: models.StatusMatched, Link: &link}
}

// SeedFile stores an open file holding entries.
func SeedFile(t *testing.T, repo *repository.FileRepository, name string, entries ...models.MatchRecord) *models.ReconciliationFile {
	t.Helper()
	file := &models.ReconciliationFile{Name: name, Status: models.FileOpen, Entries: entries}
	if err := repo.CreateFile(context.Background(), file); err != nil {
		t.Fatalf("failed to seed file %q: %v", name, err)
	}
	return file
}

// SeedRawFile inserts an open file whose entries column holds entriesJSON
// verbatim, bypassing validation the way legacy rows were written.
func SeedRawFile(t *testing.T, db *gorm.DB, entriesJSON string, matchedCount int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	now := time.Now().UTC()
	err := db.Exec(`INSERT INTO fichiers_rapprochement
		(id, nom, status, rapprochements, lignes_rapprochees, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, "legacy.csv", models.FileOpen, entriesJSON, matchedCount, 1, now, now).Error
	if err != nil {
		t.Fatalf("failed to insert raw file: %v", err)
	}
	return id
}

// LegacyEntriesJSON holds an unmatched line followed by a line marked matched
// with no entity info.
const LegacyEntriesJSON = `[
	{"transaction":{"date":"2025-03-01T00:00:00Z","libelle":"VIR ORANGE","montant":-10,"numero_ligne":1},"status":"non_rapproche"},
	{"transaction":{"date":"2025-03-02T00:00:00Z","libelle":"PRLV SFR","montant":-20,"numero_ligne":2},"status":"rapproche"}
]`

// ScenarioFile stores the three-line file used across matching tests:
// an unmatched Orange debit, an uncertain SFR card payment and a matched line.
func ScenarioFile(t *testing.T, repo *repository.FileRepository) *models.ReconciliationFile {
	t.Helper()
	return SeedFile(t, repo, "releve-2025-03.csv",
		Entry(models.StatusUnmatched, Line(1, "VIR SEPA ORANGE 49.99", "-49.99")),
		Entry(models.StatusUncertain, Line(2, "CB SFR 29.99", "-29.99")),
		MatchedEntry(Line(3, "PRLV ORANGE SA FACTURE", "-19.99"),
			models.EntityLink{Kind: models.KindGeneralSupplier, ID: "sup-7", Name: "Orange SA"}),
	)
}
