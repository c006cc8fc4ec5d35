// Package history gathers everything linked to one business entity: bank
// matches, the invoices used to find them, and recorded payments.
//
// Subscriptions and declarations are referenced by id on bank matches. The
// other kinds are also looked up by a name search over invoices, which is
// weaker evidence; items found that way are labeled LinkNameFallback so the
// two are never mixed silently.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"bank-reconciliation-backend/internal/common"
	"bank-reconciliation-backend/internal/models"
)

const (
	// InvoiceLookupLimit caps the invoices considered by the name fallback.
	InvoiceLookupLimit = 20
	// DisplayLimit caps the items returned per bucket.
	DisplayLimit = 10
)

type Origin string

const (
	OriginBankMatch Origin = "BANK_MATCH"
	OriginInvoice   Origin = "INVOICE"
	OriginPayment   Origin = "PAYMENT"
)

type Linkage string

const (
	LinkDirect       Linkage = "DIRECT"
	LinkNameFallback Linkage = "NAME_FALLBACK"
)

type BankMatchSource interface {
	FindByEntity(ctx context.Context, kind models.EntityKind, entityID string) ([]models.BankMatch, error)
	FindByInvoices(ctx context.Context, invoiceIDs []uuid.UUID) ([]models.BankMatch, error)
}

type InvoiceSource interface {
	FindByParty(ctx context.Context, name string, limit int) ([]models.Invoice, error)
}

type PaymentSource interface {
	FindByEntity(ctx context.Context, kind models.EntityKind, entityID string) ([]models.Payment, error)
}

// LabelSource resolves an entity name when the caller does not pass one.
type LabelSource interface {
	EntityLabel(ctx context.Context, kind models.EntityKind, id string) (string, error)
}

// Item is one row of an entity's history.
type Item struct {
	Origin    Origin          `json:"origin"`
	Linkage   Linkage         `json:"linkage"`
	ID        uuid.UUID       `json:"id"`
	Date      time.Time       `json:"date"`
	Label     string          `json:"label"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
	// FileID and EntryIndex locate bank matches in their reconciliation file.
	FileID     *uuid.UUID `json:"file_id,omitempty"`
	EntryIndex *int       `json:"entry_index,omitempty"`
	// BankMatch is the reconciled bank line of a payment, if any.
	BankMatch *Item `json:"bank_match,omitempty"`
}

// Bucket holds the items of one origin. Total counts every item found even
// when Items is truncated. Degraded is set when a source feeding the bucket
// failed; the bucket then holds only what the other sources returned.
type Bucket struct {
	Total    int    `json:"total"`
	Items    []Item `json:"items"`
	Degraded bool   `json:"degraded,omitempty"`
	Error    string `json:"error,omitempty"`
}

type AggregatedMatches struct {
	EntityKind models.EntityKind `json:"entity_kind"`
	EntityID   string            `json:"entity_id"`
	EntityName string            `json:"entity_name"`
	BankMatch  Bucket            `json:"bank_matches"`
	Invoices   Bucket            `json:"invoices"`
	Payments   Bucket            `json:"payments"`
}

type Aggregator struct {
	matches  BankMatchSource
	invoices InvoiceSource
	payments PaymentSource
	labels   LabelSource
}

func NewAggregator(matches BankMatchSource, invoices InvoiceSource, payments PaymentSource, labels LabelSource) *Aggregator {
	return &Aggregator{matches: matches, invoices: invoices, payments: payments, labels: labels}
}

// History collects the entity's bank matches, invoices and payments. Sources
// are queried concurrently and a failing source only degrades its own bucket.
// The error is non-nil only for invalid input.
func (a *Aggregator) History(ctx context.Context, kind models.EntityKind, entityID, entityName string) (AggregatedMatches, error) {
	if !kind.Valid() {
		return AggregatedMatches{}, fmt.Errorf("%w: unknown entity kind %q", common.ErrInvalidLink, kind)
	}
	if strings.TrimSpace(entityID) == "" {
		return AggregatedMatches{}, fmt.Errorf("%w: entity id is required", common.ErrInvalidLink)
	}

	out := AggregatedMatches{EntityKind: kind, EntityID: entityID, EntityName: strings.TrimSpace(entityName)}
	if out.EntityName == "" && !kind.HasDirectKey() && a.labels != nil {
		label, err := a.labels.EntityLabel(ctx, kind, entityID)
		switch {
		case err == nil:
			out.EntityName = label
		case errors.Is(err, common.ErrNotFound):
		default:
			slog.Warn("Entity label lookup failed", "entity_kind", kind, "entity_id", entityID, "error", err)
		}
	}

	var (
		direct, fallback       []models.BankMatch
		invoices               []models.Invoice
		payments               []models.Payment
		directErr, fallbackErr error
		invoiceErr, paymentErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		direct, directErr = a.matches.FindByEntity(ctx, kind, entityID)
		return nil
	})
	if !kind.HasDirectKey() && out.EntityName != "" {
		g.Go(func() error {
			invoices, invoiceErr = a.invoices.FindByParty(ctx, out.EntityName, InvoiceLookupLimit)
			if invoiceErr != nil {
				fallbackErr = fmt.Errorf("resolving invoices: %w", invoiceErr)
				return nil
			}
			if len(invoices) == 0 {
				return nil
			}
			ids := make([]uuid.UUID, len(invoices))
			for i, inv := range invoices {
				ids[i] = inv.ID
			}
			fallback, fallbackErr = a.matches.FindByInvoices(ctx, ids)
			return nil
		})
	}
	g.Go(func() error {
		payments, paymentErr = a.payments.FindByEntity(ctx, kind, entityID)
		return nil
	})
	_ = g.Wait()

	out.BankMatch = bankMatchBucket(direct, fallback, errors.Join(directErr, fallbackErr))
	out.Invoices = invoiceBucket(invoices, invoiceErr)
	out.Payments = paymentBucket(payments, paymentErr)

	for _, src := range []struct {
		origin Origin
		err    error
	}{
		{OriginBankMatch, errors.Join(directErr, fallbackErr)},
		{OriginInvoice, invoiceErr},
		{OriginPayment, paymentErr},
	} {
		if src.err != nil {
			slog.Warn("History source degraded",
				"origin", src.origin,
				"entity_kind", kind,
				"entity_id", entityID,
				"error", src.err)
		}
	}
	return out, nil
}

// bankMatchBucket merges both lookups; a match found directly keeps LinkDirect.
func bankMatchBucket(direct, fallback []models.BankMatch, err error) Bucket {
	seen := make(map[uuid.UUID]bool, len(direct))
	items := make([]Item, 0, len(direct)+len(fallback))
	for _, m := range direct {
		seen[m.ID] = true
		items = append(items, bankMatchItem(m, LinkDirect))
	}
	for _, m := range fallback {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		items = append(items, bankMatchItem(m, LinkNameFallback))
	}
	return newBucket(items, err)
}

func bankMatchItem(m models.BankMatch, link Linkage) Item {
	fileID, index := m.FileID, m.EntryIndex
	return Item{
		Origin:     OriginBankMatch,
		Linkage:    link,
		ID:         m.ID,
		Date:       m.TransactionDate,
		Label:      m.Label,
		Amount:     m.Amount,
		Reference:  m.EntityName,
		FileID:     &fileID,
		EntryIndex: &index,
	}
}

func invoiceBucket(invoices []models.Invoice, err error) Bucket {
	items := make([]Item, 0, len(invoices))
	for _, inv := range invoices {
		items = append(items, Item{
			Origin:    OriginInvoice,
			Linkage:   LinkNameFallback,
			ID:        inv.ID,
			Date:      inv.IssuedAt,
			Label:     inv.IssuerName + " -> " + inv.RecipientName,
			Amount:    inv.Amount,
			Reference: inv.InvoiceNumber,
		})
	}
	return newBucket(items, err)
}

func paymentBucket(payments []models.Payment, err error) Bucket {
	items := make([]Item, 0, len(payments))
	for _, p := range payments {
		item := Item{
			Origin:    OriginPayment,
			Linkage:   LinkDirect,
			ID:        p.ID,
			Date:      p.PaidAt,
			Amount:    p.Amount,
			Reference: p.Reference,
		}
		if p.BankMatch != nil {
			bm := bankMatchItem(*p.BankMatch, LinkDirect)
			item.BankMatch = &bm
			item.Label = bm.Label
		}
		items = append(items, item)
	}
	return newBucket(items, err)
}

// newBucket sorts items newest first and truncates them for display. Items
// from sources that did succeed are kept when err is set.
func newBucket(items []Item, err error) Bucket {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date)
	})
	b := Bucket{Total: len(items), Items: items}
	if len(b.Items) > DisplayLimit {
		b.Items = b.Items[:DisplayLimit]
	}
	if err != nil {
		b.Degraded = true
		b.Error = err.Error()
	}
	return b
}
