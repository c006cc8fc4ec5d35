package models

import (
	"fmt"
	"strings"

	"bank-reconciliation-backend/internal/common"
)

// EntityKind is the business-object category a bank line can be linked to.
type EntityKind string

const (
	KindSubscription    EntityKind = "SUBSCRIPTION"
	KindDeclaration     EntityKind = "DECLARATION"
	KindGeneralSupplier EntityKind = "GENERAL_SUPPLIER"
	KindServiceSupplier EntityKind = "SERVICE_SUPPLIER"
	KindStateSupplier   EntityKind = "STATE_SUPPLIER"
	KindClient          EntityKind = "CLIENT"
	KindContractor      EntityKind = "CONTRACTOR"
	KindEmployee        EntityKind = "EMPLOYEE"
)

// EntityKinds lists every kind in display order.
var EntityKinds = []EntityKind{
	KindSubscription,
	KindDeclaration,
	KindGeneralSupplier,
	KindServiceSupplier,
	KindStateSupplier,
	KindClient,
	KindContractor,
	KindEmployee,
}

// ParseEntityKind accepts the kind name in any case.
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown entity kind %q", common.ErrInvalidLink, s)
	}
	return k, nil
}

func (k EntityKind) Valid() bool {
	switch k {
	case KindSubscription, KindDeclaration,
		KindGeneralSupplier, KindServiceSupplier, KindStateSupplier,
		KindClient, KindContractor, KindEmployee:
		return true
	}
	return false
}

// HasDirectKey reports whether bank matches reference this kind by a stable id.
// Other kinds are only reachable through invoice names.
func (k EntityKind) HasDirectKey() bool {
	return k == KindSubscription || k == KindDeclaration
}

// IsSupplier reports whether the kind is persisted under fournisseur_info.
func (k EntityKind) IsSupplier() bool {
	return k == KindGeneralSupplier || k == KindServiceSupplier || k == KindStateSupplier
}

// EntityLink ties a matched bank line to exactly one business entity.
type EntityLink struct {
	Kind    EntityKind `json:"entity_kind"`
	ID      string     `json:"entity_id"`
	Name    string     `json:"entity_name"`
	Subtype string     `json:"entity_subtype,omitempty"`
}

func (l EntityLink) Validate() error {
	if !l.Kind.Valid() {
		return fmt.Errorf("%w: unknown entity kind %q", common.ErrInvalidLink, l.Kind)
	}
	if strings.TrimSpace(l.ID) == "" {
		return fmt.Errorf("%w: entity id is required", common.ErrInvalidLink)
	}
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("%w: entity name is required", common.ErrInvalidLink)
	}
	return nil
}

// Entity is the directory read model behind the partner pickers.
type Entity struct {
	Kind  EntityKind `gorm:"primaryKey;size:32" json:"kind"`
	ID    string     `gorm:"primaryKey;size:64" json:"id"`
	Label string     `gorm:"index" json:"label"`
}

func (Entity) TableName() string {
	return "entites"
}
