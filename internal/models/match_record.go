package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Stored files carry amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// MatchStatus is the reconciliation state of one bank line.
type MatchStatus string

const (
	StatusUnmatched MatchStatus = "non_rapproche"
	StatusUncertain MatchStatus = "incertain"
	StatusMatched   MatchStatus = "rapproche"
)

func (s MatchStatus) Valid() bool {
	return s == StatusUnmatched || s == StatusUncertain || s == StatusMatched
}

// Matchable reports whether a line in this state may still be linked to an entity.
func (s MatchStatus) Matchable() bool {
	return s == StatusUnmatched || s == StatusUncertain
}

// Transaction is an imported bank-statement line. It never changes after import.
type Transaction struct {
	Date       time.Time        `json:"date"`
	Label      string           `json:"libelle"`
	Debit      *decimal.Decimal `json:"debit,omitempty"`
	Credit     *decimal.Decimal `json:"credit,omitempty"`
	Net        decimal.Decimal  `json:"montant"`
	LineNumber int              `json:"numero_ligne"`
}

// MatchRecord is one entry of a reconciliation file.
type MatchRecord struct {
	Transaction Transaction
	Status      MatchStatus
	Link        *EntityLink
	InvoiceID   *uuid.UUID
}

// EntryError reports which entry of a file failed validation.
type EntryError struct {
	Index int
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %d: %v", e.Index, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

var (
	errLinkWithoutMatch = errors.New("entity link present on an entry that is not matched")
	errMatchWithoutLink = errors.New("matched entry has no entity link")
)

// Validate enforces that a link is present iff the entry is matched.
func (r MatchRecord) Validate() error {
	if !r.Status.Valid() {
		return fmt.Errorf("unknown status %q", r.Status)
	}
	if r.Status == StatusMatched {
		if r.Link == nil {
			return errMatchWithoutLink
		}
		return r.Link.Validate()
	}
	if r.Link != nil || r.InvoiceID != nil {
		return errLinkWithoutMatch
	}
	return nil
}

type entityInfo struct {
	ID      string `json:"id"`
	Name    string `json:"nom"`
	Type    string `json:"type,omitempty"`
	Subtype string `json:"sous_type,omitempty"`
}

// matchRecordJSON is the stored shape: one optional info field per entity family.
type matchRecordJSON struct {
	Transaction     Transaction `json:"transaction"`
	Status          MatchStatus `json:"status"`
	InvoiceID       *uuid.UUID  `json:"facture_id,omitempty"`
	SubscriptionInf *entityInfo `json:"abonnement_info,omitempty"`
	DeclarationInf  *entityInfo `json:"declaration_info,omitempty"`
	SupplierInf     *entityInfo `json:"fournisseur_info,omitempty"`
	ClientInf       *entityInfo `json:"client_info,omitempty"`
	ContractorInf   *entityInfo `json:"prestataire_info,omitempty"`
	EmployeeInf     *entityInfo `json:"salarie_info,omitempty"`
}

var supplierTypes = map[EntityKind]string{
	KindGeneralSupplier: "general",
	KindServiceSupplier: "service",
	KindStateSupplier:   "etat",
}

func (r MatchRecord) MarshalJSON() ([]byte, error) {
	out := matchRecordJSON{
		Transaction: r.Transaction,
		Status:      r.Status,
		InvoiceID:   r.InvoiceID,
	}
	if l := r.Link; l != nil {
		info := &entityInfo{ID: l.ID, Name: l.Name, Subtype: l.Subtype}
		switch l.Kind {
		case KindSubscription:
			out.SubscriptionInf = info
		case KindDeclaration:
			out.DeclarationInf = info
		case KindGeneralSupplier, KindServiceSupplier, KindStateSupplier:
			info.Type = supplierTypes[l.Kind]
			out.SupplierInf = info
		case KindClient:
			out.ClientInf = info
		case KindContractor:
			out.ContractorInf = info
		case KindEmployee:
			out.EmployeeInf = info
		default:
			return nil, fmt.Errorf("unknown entity kind %q", l.Kind)
		}
	}
	return json.Marshal(out)
}

func (r *MatchRecord) UnmarshalJSON(data []byte) error {
	var in matchRecordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	var link *EntityLink
	set := func(kind EntityKind, info *entityInfo) error {
		if info == nil {
			return nil
		}
		if link != nil {
			return fmt.Errorf("entry carries both %s and %s info", link.Kind, kind)
		}
		link = &EntityLink{Kind: kind, ID: info.ID, Name: info.Name, Subtype: info.Subtype}
		return nil
	}

	supplierKind := KindGeneralSupplier
	if in.SupplierInf != nil {
		switch in.SupplierInf.Type {
		case "", "general":
		case "service":
			supplierKind = KindServiceSupplier
		case "etat":
			supplierKind = KindStateSupplier
		default:
			return fmt.Errorf("unknown supplier type %q", in.SupplierInf.Type)
		}
	}

	for _, c := range []struct {
		kind EntityKind
		info *entityInfo
	}{
		{KindSubscription, in.SubscriptionInf},
		{KindDeclaration, in.DeclarationInf},
		{supplierKind, in.SupplierInf},
		{KindClient, in.ClientInf},
		{KindContractor, in.ContractorInf},
		{KindEmployee, in.EmployeeInf},
	} {
		if err := set(c.kind, c.info); err != nil {
			return err
		}
	}

	*r = MatchRecord{
		Transaction: in.Transaction,
		Status:      in.Status,
		Link:        link,
		InvoiceID:   in.InvoiceID,
	}
	return nil
}
