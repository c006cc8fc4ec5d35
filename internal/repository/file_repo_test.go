package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bank-reconciliation-backend/internal/common"
	"bank-reconciliation-backend/internal/models"
	"bank-reconciliation-backend/internal/repository"
	"bank-reconciliation-backend/internal/testutil"
)

func TestFileRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewFileRepository(testutil.SetupTestDB(t))
	seeded := testutil.ScenarioFile(t, repo)

	file, err := repo.GetFile(ctx, seeded.ID)
	require.NoError(t, err)
	file.Entries[0].Status = models.StatusMatched
	file.Entries[0].Link = &models.EntityLink{Kind: models.KindSubscription, ID: "sub-1", Name: "Orange Pro"}
	require.NoError(t, repo.SaveFile(ctx, file))

	reloaded, err := repo.GetFile(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, file.MatchedCount, reloaded.MatchedCount)
	assert.Equal(t, 2, reloaded.MatchedCount)
	require.Len(t, reloaded.Entries, len(file.Entries))
	for i := range file.Entries {
		want, got := file.Entries[i], reloaded.Entries[i]
		assert.Equal(t, want.Status, got.Status, "entry %d", i)
		assert.Equal(t, want.Link, got.Link, "entry %d", i)
		assert.Equal(t, want.Transaction.Label, got.Transaction.Label, "entry %d", i)
		assert.Equal(t, want.Transaction.LineNumber, got.Transaction.LineNumber, "entry %d", i)
		assert.True(t, want.Transaction.Date.Equal(got.Transaction.Date), "entry %d", i)
		assert.True(t, want.Transaction.Net.Equal(got.Transaction.Net), "entry %d", i)
	}
	assert.Equal(t, 2, reloaded.Version)
}

func TestFileRepository_GetFileNotFound(t *testing.T) {
	repo := repository.NewFileRepository(testutil.SetupTestDB(t))

	_, err := repo.GetFile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.NotErrorIs(t, err, common.ErrStorage)
}

func TestFileRepository_ListOpenFiles(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewFileRepository(db)

	open := testutil.ScenarioFile(t, repo)
	closed := testutil.ScenarioFile(t, repo)
	require.NoError(t, db.Model(&models.ReconciliationFile{}).
		Where("id = ?", closed.ID).Update("status", models.FileClosed).Error)

	files, err := repo.ListOpenFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, open.ID, files[0].ID)

	all, err := repo.ListFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFileRepository_SaveFileStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewFileRepository(testutil.SetupTestDB(t))
	seeded := testutil.ScenarioFile(t, repo)

	first, err := repo.GetFile(ctx, seeded.ID)
	require.NoError(t, err)
	second, err := repo.GetFile(ctx, seeded.ID)
	require.NoError(t, err)

	first.Entries[0].Status = models.StatusMatched
	first.Entries[0].Link = &models.EntityLink{Kind: models.KindClient, ID: "c-1", Name: "Acme"}
	require.NoError(t, repo.SaveFile(ctx, first))

	second.Entries[1].Status = models.StatusMatched
	second.Entries[1].Link = &models.EntityLink{Kind: models.KindContractor, ID: "p-1", Name: "Dev SARL"}
	err = repo.SaveFile(ctx, second)
	assert.ErrorIs(t, err, common.ErrConflict)

	stored, err := repo.GetFile(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusMatched, stored.Entries[0].Status)
	assert.Equal(t, models.StatusUncertain, stored.Entries[1].Status)
	assert.Equal(t, 2, stored.MatchedCount)
}

func TestFileRepository_SaveFileRecomputesCount(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewFileRepository(db)
	seeded := testutil.ScenarioFile(t, repo)

	require.NoError(t, db.Model(&models.ReconciliationFile{}).
		Where("id = ?", seeded.ID).Update("lignes_rapprochees", 5).Error)

	file, err := repo.GetFile(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, file.MatchedCount)

	require.NoError(t, repo.SaveFile(ctx, file))
	assert.Equal(t, 1, file.MatchedCount)

	reloaded, err := repo.GetFile(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.MatchedCount)
}

func TestFileRepository_SaveFileRejectsInvalidEntries(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewFileRepository(testutil.SetupTestDB(t))
	seeded := testutil.ScenarioFile(t, repo)

	file, err := repo.GetFile(ctx, seeded.ID)
	require.NoError(t, err)
	file.Entries[0].Status = models.StatusMatched

	err = repo.SaveFile(ctx, file)
	var entryErr *models.EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, 0, entryErr.Index)

	stored, err := repo.GetFile(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnmatched, stored.Entries[0].Status)
}

func TestFileRepository_SaveFileMissing(t *testing.T) {
	repo := repository.NewFileRepository(testutil.SetupTestDB(t))
	file := &models.ReconciliationFile{ID: uuid.New(), Status: models.FileOpen, Version: 1}

	assert.ErrorIs(t, repo.SaveFile(context.Background(), file), common.ErrNotFound)
}

func TestFileRepository_ProjectionAndAudit(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewFileRepository(db)
	matches := repository.NewBankMatchRepository(db)
	seeded := testutil.ScenarioFile(t, repo)

	rows, err := matches.FindByFile(ctx, seeded.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].EntryIndex)
	assert.Equal(t, models.BankMatchID(seeded.ID, 2), rows[0].ID)

	file, err := repo.GetFile(ctx, seeded.ID)
	require.NoError(t, err)
	file.Entries[2] = testutil.Entry(models.StatusUnmatched, file.Entries[2].Transaction)
	file.Entries[1].Status = models.StatusMatched
	file.Entries[1].Link = &models.EntityLink{Kind: models.KindEmployee, ID: "e-3", Name: "Lea Martin"}
	require.NoError(t, repo.SaveFile(ctx, file,
		models.MatchAuditLog{EntryIndex: 1, Action: models.AuditMatch, EntityKind: models.KindEmployee, EntityID: "e-3"},
		models.MatchAuditLog{EntryIndex: 2, Action: models.AuditRelease},
	))

	rows, err = matches.FindByFile(ctx, seeded.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].EntryIndex)
	assert.Equal(t, "e-3", rows[0].EntityID)
	assert.True(t, rows[0].Amount.Equal(file.Entries[1].Transaction.Net))

	var logs []models.MatchAuditLog
	require.NoError(t, db.Order("entry_index").Find(&logs, "file_id = ?", seeded.ID).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, models.AuditMatch, logs[0].Action)
	assert.Equal(t, models.AuditRelease, logs[1].Action)
}
