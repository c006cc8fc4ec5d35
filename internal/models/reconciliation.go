package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// FileStatus is the lifecycle state of a reconciliation file.
type FileStatus string

const (
	FileOpen   FileStatus = "ouvert"
	FileClosed FileStatus = "cloture"
)

// ReconciliationFile is one imported bank statement and the matches recorded against it.
// Entries are addressed by their position.
type ReconciliationFile struct {
	ID           uuid.UUID                        `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string                           `gorm:"column:nom" json:"nom"`
	Status       FileStatus                       `gorm:"index;size:16" json:"status"`
	Entries      datatypes.JSONSlice[MatchRecord] `gorm:"column:rapprochements" json:"rapprochements"`
	MatchedCount int                              `gorm:"column:lignes_rapprochees" json:"lignes_rapprochees"`
	Version      int                              `gorm:"not null;default:0" json:"version"`
	CreatedAt    time.Time                        `json:"created_at"`
	UpdatedAt    time.Time                        `json:"updated_at"`
}

func (ReconciliationFile) TableName() string {
	return "fichiers_rapprochement"
}

func (f *ReconciliationFile) IsOpen() bool {
	return f.Status == FileOpen
}

// CountMatched recomputes the matched count from the entries.
func (f *ReconciliationFile) CountMatched() int {
	n := 0
	for _, e := range f.Entries {
		if e.Status == StatusMatched {
			n++
		}
	}
	return n
}

// Validate checks every entry's link/status pairing.
func (f *ReconciliationFile) Validate() error {
	for i := range f.Entries {
		if err := f.Entries[i].Validate(); err != nil {
			return &EntryError{Index: i, Err: err}
		}
	}
	return nil
}

// BankMatchID is the stable identifier of the projection row for one entry.
func BankMatchID(fileID uuid.UUID, index int) uuid.UUID {
	return uuid.NewSHA1(fileID, []byte{byte(index >> 24), byte(index >> 16), byte(index >> 8), byte(index)})
}
