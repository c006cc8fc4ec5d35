package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bank-reconciliation-backend/internal/models"
	"bank-reconciliation-backend/internal/services/matching"
	service "bank-reconciliation-backend/internal/services/reconciliation"
)

// EntityLabeler resolves entity names for match requests that omit them.
type EntityLabeler interface {
	EntityLabel(ctx context.Context, kind models.EntityKind, id string) (string, error)
}

type ReconciliationHandler struct {
	service  *service.ReconciliationService
	searcher *matching.Searcher
	labels   EntityLabeler
}

func NewReconciliationHandler(s *service.ReconciliationService, searcher *matching.Searcher, labels EntityLabeler) *ReconciliationHandler {
	return &ReconciliationHandler{service: s, searcher: searcher, labels: labels}
}

type fileSummary struct {
	ID           uuid.UUID         `json:"id"`
	Name         string            `json:"nom"`
	Status       models.FileStatus `json:"status"`
	Entries      int               `json:"entries"`
	MatchedCount int               `json:"lignes_rapprochees"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (h *ReconciliationHandler) ListOpenFiles(c *gin.Context) {
	files, err := h.service.ListOpenFiles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]fileSummary, 0, len(files))
	for _, f := range files {
		items = append(items, fileSummary{
			ID:           f.ID,
			Name:         f.Name,
			Status:       f.Status,
			Entries:      len(f.Entries),
			MatchedCount: f.MatchedCount,
			UpdatedAt:    f.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *ReconciliationHandler) GetFile(c *gin.Context) {
	fileID, ok := parseFileID(c)
	if !ok {
		return
	}

	file, err := h.service.GetFile(c.Request.Context(), fileID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

func (h *ReconciliationHandler) GetFileStats(c *gin.Context) {
	fileID, ok := parseFileID(c)
	if !ok {
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), fileID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Search runs a keyword query, e.g. GET /search?q=orange%20abonnement,sfr
func (h *ReconciliationHandler) Search(c *gin.Context) {
	query := c.Query("q")

	items, err := h.searcher.Search(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"query": query,
		"items": items,
		"count": len(items),
	})
}

type matchPayload struct {
	EntityKind    string `json:"entity_kind" binding:"required,entitykind"`
	EntityID      string `json:"entity_id" binding:"required"`
	EntityName    string `json:"entity_name"`
	EntitySubtype string `json:"entity_subtype"`
	InvoiceID     string `json:"invoice_id" binding:"omitempty,uuid"`
	PerformedBy   string `json:"performed_by"`
}

func (h *ReconciliationHandler) RecordMatch(c *gin.Context) {
	fileID, index, ok := parseEntryAddress(c)
	if !ok {
		return
	}

	var payload matchPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	kind, err := models.ParseEntityKind(payload.EntityKind)
	if err != nil {
		respondError(c, err)
		return
	}
	link := models.EntityLink{
		Kind:    kind,
		ID:      payload.EntityID,
		Name:    payload.EntityName,
		Subtype: payload.EntitySubtype,
	}
	if link.Name == "" {
		name, err := h.labels.EntityLabel(c.Request.Context(), kind, link.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		link.Name = name
	}

	var invoiceID *uuid.UUID
	if payload.InvoiceID != "" {
		id := uuid.MustParse(payload.InvoiceID)
		invoiceID = &id
	}

	file, err := h.service.RecordMatch(c.Request.Context(), service.MatchRequest{
		FileID:      fileID,
		EntryIndex:  index,
		Link:        link,
		InvoiceID:   invoiceID,
		PerformedBy: payload.PerformedBy,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":            "transaction matched",
		"file_id":            file.ID,
		"entry_index":        index,
		"entry":              file.Entries[index],
		"lignes_rapprochees": file.MatchedCount,
		"version":            file.Version,
	})
}

func (h *ReconciliationHandler) ReleaseMatch(c *gin.Context) {
	fileID, index, ok := parseEntryAddress(c)
	if !ok {
		return
	}

	var payload struct {
		Reason      string `json:"reason"`
		PerformedBy string `json:"performed_by"`
	}
	// The body is optional.
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	file, err := h.service.ReleaseMatch(c.Request.Context(), service.ReleaseRequest{
		FileID:      fileID,
		EntryIndex:  index,
		Reason:      payload.Reason,
		PerformedBy: payload.PerformedBy,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":            "match released",
		"file_id":            file.ID,
		"entry_index":        index,
		"entry":              file.Entries[index],
		"lignes_rapprochees": file.MatchedCount,
		"version":            file.Version,
	})
}

func parseFileID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("fileId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file ID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseEntryAddress(c *gin.Context) (uuid.UUID, int, bool) {
	fileID, ok := parseFileID(c)
	if !ok {
		return uuid.Nil, 0, false
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry index"})
		return uuid.Nil, 0, false
	}
	return fileID, index, true
}
