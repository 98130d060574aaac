package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Transaction represents a single imported statement transaction.
// Rows are supplied read-only by the statement-import subsystem.
type Transaction struct {
	Date            time.Time
	ID              string
	UserID          string
	Description     string // Raw statement description
	Vendor          string // Cleaned vendor name, if the importer provided one
	Amount          float64
	HasReceiptMatch bool
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%.2f:%s",
		t.Date.Format("2006-01-02"),
		t.Description,
		t.Amount,
		t.UserID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
