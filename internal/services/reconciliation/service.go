package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-reconciliation-backend/internal/common"
	"bank-reconciliation-backend/internal/models"
)

// FileStore is the whole-aggregate store for reconciliation files.
type FileStore interface {
	ListOpenFiles(ctx context.Context) ([]models.ReconciliationFile, error)
	ListFiles(ctx context.Context) ([]models.ReconciliationFile, error)
	GetFile(ctx context.Context, id uuid.UUID) (*models.ReconciliationFile, error)
	SaveFile(ctx context.Context, file *models.ReconciliationFile, audit ...models.MatchAuditLog) error
}

type ReconciliationService struct {
	files FileStore
}

func NewReconciliationService(files FileStore) *ReconciliationService {
	return &ReconciliationService{files: files}
}

// MatchRequest links one entry of a file to a business entity.
type MatchRequest struct {
	FileID     uuid.UUID
	EntryIndex int
	Link       models.EntityLink
	// InvoiceID optionally names the invoice this line settles.
	InvoiceID   *uuid.UUID
	PerformedBy string
}

// ReleaseRequest undoes the match of one entry.
type ReleaseRequest struct {
	FileID      uuid.UUID
	EntryIndex  int
	Reason      string
	PerformedBy string
}

func (s *ReconciliationService) GetFile(ctx context.Context, id uuid.UUID) (*models.ReconciliationFile, error) {
	return s.files.GetFile(ctx, id)
}

func (s *ReconciliationService) ListOpenFiles(ctx context.Context) ([]models.ReconciliationFile, error) {
	return s.files.ListOpenFiles(ctx)
}

// RecordMatch marks an unmatched or uncertain entry as matched to req.Link and
// saves the file. The save is conditional on the version that was loaded, so a
// concurrent writer makes this call fail with common.ErrConflict instead of
// being overwritten. Nothing is retried here; on any error the caller should
// reload the file before trying again.
func (s *ReconciliationService) RecordMatch(ctx context.Context, req MatchRequest) (*models.ReconciliationFile, error) {
	if err := req.Link.Validate(); err != nil {
		return nil, err
	}

	file, entry, err := s.loadEntry(ctx, req.FileID, req.EntryIndex)
	if err != nil {
		return nil, err
	}
	if !entry.Status.Matchable() {
		return nil, fmt.Errorf("entry %d of file %s: %w", req.EntryIndex, req.FileID, common.ErrAlreadyMatched)
	}

	link := req.Link
	entry.Status = models.StatusMatched
	entry.Link = &link
	entry.InvoiceID = req.InvoiceID

	audit := models.MatchAuditLog{
		EntryIndex:  req.EntryIndex,
		Action:      models.AuditMatch,
		EntityKind:  link.Kind,
		EntityID:    link.ID,
		EntityName:  link.Name,
		InvoiceID:   req.InvoiceID,
		PerformedBy: req.PerformedBy,
	}
	if err := s.files.SaveFile(ctx, file, audit); err != nil {
		return nil, fmt.Errorf("recording match on entry %d of file %s: %w", req.EntryIndex, req.FileID, err)
	}

	slog.Info("Recorded match",
		"file_id", file.ID,
		"entry", req.EntryIndex,
		"entity_kind", link.Kind,
		"entity_id", link.ID,
		"matched", file.MatchedCount)
	return file, nil
}

// ReleaseMatch returns a matched entry to the unmatched state.
func (s *ReconciliationService) ReleaseMatch(ctx context.Context, req ReleaseRequest) (*models.ReconciliationFile, error) {
	file, entry, err := s.loadEntry(ctx, req.FileID, req.EntryIndex)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.StatusMatched {
		return nil, fmt.Errorf("entry %d of file %s: %w", req.EntryIndex, req.FileID, common.ErrNotMatched)
	}

	previous := *entry.Link
	audit := models.MatchAuditLog{
		EntryIndex:  req.EntryIndex,
		Action:      models.AuditRelease,
		EntityKind:  previous.Kind,
		EntityID:    previous.ID,
		EntityName:  previous.Name,
		InvoiceID:   entry.InvoiceID,
		PerformedBy: req.PerformedBy,
		Reason:      req.Reason,
	}

	entry.Status = models.StatusUnmatched
	entry.Link = nil
	entry.InvoiceID = nil

	if err := s.files.SaveFile(ctx, file, audit); err != nil {
		return nil, fmt.Errorf("releasing entry %d of file %s: %w", req.EntryIndex, req.FileID, err)
	}

	slog.Info("Released match",
		"file_id", file.ID,
		"entry", req.EntryIndex,
		"entity_kind", previous.Kind,
		"entity_id", previous.ID,
		"matched", file.MatchedCount)
	return file, nil
}

// loadEntry fetches an open file and returns a pointer into its entries.
// A file holding a malformed stored entry is refused as a whole with a
// *models.EntryError, since it could not be saved back.
func (s *ReconciliationService) loadEntry(ctx context.Context, fileID uuid.UUID, index int) (*models.ReconciliationFile, *models.MatchRecord, error) {
	file, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if !file.IsOpen() {
		return nil, nil, fmt.Errorf("file %s: %w", fileID, common.ErrFileClosed)
	}
	if err := file.Validate(); err != nil {
		return nil, nil, fmt.Errorf("stored file %s: %w", fileID, err)
	}
	if index < 0 || index >= len(file.Entries) {
		return nil, nil, fmt.Errorf("entry %d of file %s with %d entries: %w",
			index, fileID, len(file.Entries), common.ErrIndexOutOfRange)
	}
	return file, &file.Entries[index], nil
}

type StatusStats struct {
	Count int             `json:"count"`
	Sum   decimal.Decimal `json:"sum"`
}

// FileStats summarizes a file per match status.
type FileStats struct {
	FileID      uuid.UUID       `json:"file_id"`
	Total       int             `json:"total"`
	TotalAmount decimal.Decimal `json:"total_amount"`

	Unmatched StatusStats `json:"unmatched"`
	Uncertain StatusStats `json:"uncertain"`
	Matched   StatusStats `json:"matched"`

	// StoredMatchedCount is the persisted counter; Drift is set when it
	// disagrees with the entries.
	StoredMatchedCount int  `json:"stored_matched_count"`
	Drift              bool `json:"drift"`
}

func (s *ReconciliationService) Stats(ctx context.Context, fileID uuid.UUID) (FileStats, error) {
	file, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		return FileStats{}, err
	}
	return ComputeStats(file), nil
}

func ComputeStats(file *models.ReconciliationFile) FileStats {
	stats := FileStats{
		FileID:             file.ID,
		Total:              len(file.Entries),
		StoredMatchedCount: file.MatchedCount,
	}
	for _, e := range file.Entries {
		net := e.Transaction.Net
		stats.TotalAmount = stats.TotalAmount.Add(net)

		var bucket *StatusStats
		switch e.Status {
		case models.StatusUnmatched:
			bucket = &stats.Unmatched
		case models.StatusUncertain:
			bucket = &stats.Uncertain
		case models.StatusMatched:
			bucket = &stats.Matched
		default:
			continue
		}
		bucket.Count++
		bucket.Sum = bucket.Sum.Add(net)
	}
	stats.Drift = stats.Matched.Count != file.MatchedCount
	return stats
}

// RecountResult reports what Recount did.
type RecountResult struct {
	Checked   int `json:"checked"`
	Corrected int `json:"corrected"`
	Failed    int `json:"failed"`
	// Skipped counts closed files whose count drifts; they are read-only.
	Skipped int `json:"skipped"`
}

// Recount re-saves every file whose stored matched count disagrees with its
// entries. Saving recomputes the count. Closed files are only reported, and
// files that fail to save are logged and skipped.
func (s *ReconciliationService) Recount(ctx context.Context) (RecountResult, error) {
	files, err := s.files.ListFiles(ctx)
	if err != nil {
		return RecountResult{}, err
	}

	var res RecountResult
	for i := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		f := &files[i]
		res.Checked++

		actual := f.CountMatched()
		if actual == f.MatchedCount {
			continue
		}
		stored := f.MatchedCount
		if !f.IsOpen() {
			res.Skipped++
			slog.Warn("Closed file has a drifting matched count", "file_id", f.ID, "stored", stored, "actual", actual)
			continue
		}
		if err := s.files.SaveFile(ctx, f); err != nil {
			if errors.Is(err, context.Canceled) {
				return res, err
			}
			res.Failed++
			slog.Error("Failed to recount file", "file_id", f.ID, "error", err)
			continue
		}
		res.Corrected++
		slog.Info("Corrected matched count", "file_id", f.ID, "stored", stored, "actual", actual)
	}
	return res, nil
}
