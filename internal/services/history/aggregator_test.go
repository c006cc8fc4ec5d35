package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bank-reconciliation-backend/internal/common"
	"bank-reconciliation-backend/internal/models"
	"bank-reconciliation-backend/internal/repository"
	"bank-reconciliation-backend/internal/services/reconciliation"
	"bank-reconciliation-backend/internal/testutil"
)

type fakeMatches struct {
	byEntity    []models.BankMatch
	byInvoices  []models.BankMatch
	entityErr   error
	invoiceErr  error
	invoiceArgs []uuid.UUID
}

func (f *fakeMatches) FindByEntity(context.Context, models.EntityKind, string) ([]models.BankMatch, error) {
	return f.byEntity, f.entityErr
}

func (f *fakeMatches) FindByInvoices(_ context.Context, ids []uuid.UUID) ([]models.BankMatch, error) {
	f.invoiceArgs = ids
	return f.byInvoices, f.invoiceErr
}

type fakeInvoices struct {
	invoices []models.Invoice
	err      error
	name     string
	limit    int
}

func (f *fakeInvoices) FindByParty(_ context.Context, name string, limit int) ([]models.Invoice, error) {
	f.name, f.limit = name, limit
	return f.invoices, f.err
}

type fakePayments struct {
	payments []models.Payment
	err      error
}

func (f *fakePayments) FindByEntity(context.Context, models.EntityKind, string) ([]models.Payment, error) {
	return f.payments, f.err
}

type fakeLabels map[string]string

func (f fakeLabels) EntityLabel(_ context.Context, _ models.EntityKind, id string) (string, error) {
	if l, ok := f[id]; ok {
		return l, nil
	}
	return "", common.ErrNotFound
}

func bankMatches(n int, day0 int) []models.BankMatch {
	out := make([]models.BankMatch, n)
	for i := range out {
		out[i] = models.BankMatch{
			ID:              uuid.New(),
			FileID:          uuid.New(),
			EntryIndex:      i,
			TransactionDate: time.Date(2025, 1, day0+i, 0, 0, 0, 0, time.UTC),
			Label:           fmt.Sprintf("LINE %d", i),
			Amount:          decimal.NewFromInt(int64(i)),
		}
	}
	return out
}

func TestHistory_DirectKindSkipsNameFallback(t *testing.T) {
	matches := &fakeMatches{byEntity: bankMatches(12, 1)}
	invoices := &fakeInvoices{}
	agg := NewAggregator(matches, invoices, &fakePayments{}, fakeLabels{})

	got, err := agg.History(context.Background(), models.KindSubscription, "sub-1", "Orange Pro")
	require.NoError(t, err)

	assert.Equal(t, 12, got.BankMatch.Total)
	require.Len(t, got.BankMatch.Items, DisplayLimit)
	assert.Equal(t, "LINE 11", got.BankMatch.Items[0].Label, "newest first")
	for _, it := range got.BankMatch.Items {
		assert.Equal(t, OriginBankMatch, it.Origin)
		assert.Equal(t, LinkDirect, it.Linkage)
	}
	assert.Empty(t, invoices.name, "no invoice lookup for kinds with a direct key")
	assert.Zero(t, got.Invoices.Total)
	assert.False(t, got.BankMatch.Degraded)
}

func TestHistory_NameFallbackIsLabeled(t *testing.T) {
	shared := bankMatches(1, 20)[0]
	matches := &fakeMatches{
		byEntity:   []models.BankMatch{shared},
		byInvoices: append(bankMatches(2, 1), shared),
	}
	invoiceIDs := []uuid.UUID{uuid.New(), uuid.New()}
	invoices := &fakeInvoices{invoices: []models.Invoice{
		{ID: invoiceIDs[0], InvoiceNumber: "F-1", IssuerName: "Acme", RecipientName: "Agence"},
		{ID: invoiceIDs[1], InvoiceNumber: "F-2", IssuerName: "Acme", RecipientName: "Agence"},
	}}
	agg := NewAggregator(matches, invoices, &fakePayments{}, fakeLabels{"sup-1": "Acme"})

	got, err := agg.History(context.Background(), models.KindGeneralSupplier, "sup-1", "")
	require.NoError(t, err)

	assert.Equal(t, "Acme", got.EntityName, "name resolved from the directory")
	assert.Equal(t, "Acme", invoices.name)
	assert.Equal(t, InvoiceLookupLimit, invoices.limit)
	assert.Equal(t, invoiceIDs, matches.invoiceArgs)

	require.Equal(t, 3, got.BankMatch.Total, "shared match counted once")
	links := map[uuid.UUID]Linkage{}
	for _, it := range got.BankMatch.Items {
		links[it.ID] = it.Linkage
	}
	assert.Equal(t, LinkDirect, links[shared.ID])
	assert.Equal(t, LinkNameFallback, links[matches.byInvoices[0].ID])

	assert.Equal(t, 2, got.Invoices.Total)
	for _, it := range got.Invoices.Items {
		assert.Equal(t, OriginInvoice, it.Origin)
		assert.Equal(t, LinkNameFallback, it.Linkage)
	}
}

func TestHistory_FailingSourceDegradesOnlyItsBucket(t *testing.T) {
	payments := &fakePayments{payments: []models.Payment{{ID: uuid.New(), Amount: decimal.NewFromInt(5)}}}
	matches := &fakeMatches{entityErr: errors.New("bank matches unavailable"), byInvoices: bankMatches(1, 3)}
	invoices := &fakeInvoices{invoices: []models.Invoice{{ID: uuid.New()}}}
	agg := NewAggregator(matches, invoices, payments, nil)

	got, err := agg.History(context.Background(), models.KindClient, "c-1", "Acme")
	require.NoError(t, err)

	assert.True(t, got.BankMatch.Degraded)
	assert.Contains(t, got.BankMatch.Error, "bank matches unavailable")
	assert.Equal(t, 1, got.BankMatch.Total, "fallback matches are still reported")
	assert.False(t, got.Invoices.Degraded)
	assert.False(t, got.Payments.Degraded)
	assert.Equal(t, 1, got.Payments.Total)
}

func TestHistory_InvoiceFailure(t *testing.T) {
	matches := &fakeMatches{byEntity: bankMatches(1, 1)}
	invoices := &fakeInvoices{err: errors.New("timeout")}
	payments := &fakePayments{err: errors.New("payments down")}
	agg := NewAggregator(matches, invoices, payments, nil)

	got, err := agg.History(context.Background(), models.KindContractor, "p-1", "Dev SARL")
	require.NoError(t, err)

	assert.True(t, got.Invoices.Degraded)
	assert.NotNil(t, got.Invoices.Items)
	assert.Empty(t, got.Invoices.Items)
	assert.True(t, got.BankMatch.Degraded, "fallback matches could not be resolved")
	assert.Equal(t, 1, got.BankMatch.Total)
	assert.True(t, got.Payments.Degraded)
	assert.Nil(t, matches.invoiceArgs)
}

func TestHistory_InvalidInput(t *testing.T) {
	agg := NewAggregator(&fakeMatches{}, &fakeInvoices{}, &fakePayments{}, nil)

	_, err := agg.History(context.Background(), "VENDOR", "x", "")
	assert.ErrorIs(t, err, common.ErrInvalidLink)
	_, err = agg.History(context.Background(), models.KindClient, " ", "")
	assert.ErrorIs(t, err, common.ErrInvalidLink)
}

func TestHistory_WithDatabase(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	files := repository.NewFileRepository(db)
	invoices := repository.NewInvoiceRepository(db)
	payments := repository.NewPaymentRepository(db)
	entities := repository.NewEntityRepository(db)
	matches := repository.NewBankMatchRepository(db)
	svc := reconciliation.NewReconciliationService(files)

	file := testutil.SeedFile(t, files, "releve-2025-04.csv",
		testutil.Entry(models.StatusUnmatched, testutil.Line(2, "PRLV ORANGE PRO", "-49.99")),
		testutil.Entry(models.StatusUnmatched, testutil.Line(3, "VIR ACME CONSEIL F-77", "-480")),
		testutil.Entry(models.StatusUncertain, testutil.Line(4, "VIR ACME", "-120")),
	)
	invoice := &models.Invoice{
		ID: uuid.New(), InvoiceNumber: "F-77", IssuerName: "ACME Conseil", RecipientName: "Agence",
		Amount: decimal.NewFromInt(480), IssuedAt: time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, invoices.Create(ctx, invoice))
	require.NoError(t, entities.Upsert(ctx, models.Entity{Kind: models.KindServiceSupplier, ID: "sup-3", Label: "Acme"}))

	_, err := svc.RecordMatch(ctx, reconciliation.MatchRequest{FileID: file.ID, EntryIndex: 0, Link: orangeLink})
	require.NoError(t, err)
	_, err = svc.RecordMatch(ctx, reconciliation.MatchRequest{
		FileID: file.ID, EntryIndex: 1, InvoiceID: &invoice.ID,
		Link: models.EntityLink{Kind: models.KindGeneralSupplier, ID: "sup-old", Name: "Acme Conseil"},
	})
	require.NoError(t, err)
	_, err = svc.RecordMatch(ctx, reconciliation.MatchRequest{
		FileID: file.ID, EntryIndex: 2,
		Link: models.EntityLink{Kind: models.KindServiceSupplier, ID: "sup-3", Name: "Acme"},
	})
	require.NoError(t, err)

	bmID := models.BankMatchID(file.ID, 0)
	require.NoError(t, payments.Record(ctx, &models.Payment{
		EntityKind: models.KindSubscription, EntityID: "sub-1", Amount: decimal.RequireFromString("49.99"),
		PaidAt: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), BankMatchID: &bmID, Reference: "ECH-03",
	}))

	agg := NewAggregator(matches, invoices, payments, entities)

	sub, err := agg.History(ctx, models.KindSubscription, "sub-1", "")
	require.NoError(t, err)
	require.Equal(t, 1, sub.BankMatch.Total)
	assert.Equal(t, "PRLV ORANGE PRO", sub.BankMatch.Items[0].Label)
	require.Equal(t, 1, sub.Payments.Total)
	require.NotNil(t, sub.Payments.Items[0].BankMatch)
	assert.Equal(t, bmID, sub.Payments.Items[0].BankMatch.ID)

	supplier, err := agg.History(ctx, models.KindServiceSupplier, "sup-3", "")
	require.NoError(t, err)
	assert.Equal(t, "Acme", supplier.EntityName)
	require.Equal(t, 2, supplier.BankMatch.Total)
	byIndex := map[int]Linkage{}
	for _, it := range supplier.BankMatch.Items {
		byIndex[*it.EntryIndex] = it.Linkage
	}
	assert.Equal(t, LinkDirect, byIndex[2])
	assert.Equal(t, LinkNameFallback, byIndex[1])
	assert.Equal(t, 1, supplier.Invoices.Total)
	assert.Equal(t, "F-77", supplier.Invoices.Items[0].Reference)
}

var orangeLink = models.EntityLink{Kind: models.KindSubscription, ID: "sub-1", Name: "Orange Pro"}

func TestHistory_DegradedSourcesLogInFixedOrder(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(common.NewLogger(&buf, slog.LevelWarn, "json"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	agg := NewAggregator(
		&fakeMatches{entityErr: errors.New("matches down")},
		&fakeInvoices{err: errors.New("invoices down")},
		&fakePayments{err: errors.New("payments down")},
		fakeLabels{},
	)
	for range 5 {
		buf.Reset()
		_, err := agg.History(context.Background(), models.KindClient, "cli-1", "Dupont")
		require.NoError(t, err)

		var origins []string
		dec := json.NewDecoder(&buf)
		for dec.More() {
			var line map[string]any
			require.NoError(t, dec.Decode(&line))
			origins = append(origins, line["origin"].(string))
		}
		assert.Equal(t, []string{"BANK_MATCH", "INVOICE", "PAYMENT"}, origins)
	}
}
