package domain

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"
)

const MaxItemNameLength = 128

var (
	ErrItemNotFound    = errors.New("inventory item not found")
	ErrInvalidDelta    = errors.New("quantity delta must be a positive integer")
	ErrInvalidItemName = errors.New("invalid item name")
)

// InventoryItem is a pantry item keyed by its case-sensitive name. A stored
// item always has Quantity >= 1; an item whose quantity reaches zero is
// deleted, and is reported back with Quantity 0.
type InventoryItem struct {
	Name     string `json:"name" db:"name" firestore:"-"`
	Quantity int    `json:"quantity" db:"quantity" firestore:"quantity"`
}

func (i *InventoryItem) Deleted() bool {
	return i.Quantity == 0
}

// ValidateItemName checks that name can be used as a document key in every
// supported inventory backend.
func ValidateItemName(name string) error {
	if name == "" || strings.TrimSpace(name) != name || !utf8.ValidString(name) {
		return ErrInvalidItemName
	}
	if !govalidator.RuneLength(name, "1", strconv.Itoa(MaxItemNameLength)) {
		return ErrInvalidItemName
	}
	if strings.ContainsRune(name, '/') || strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return ErrInvalidItemName
	}
	// Firestore reserves "." and ".." and IDs of the form __.*__.
	if name == "." || name == ".." || reservedName(name) {
		return ErrInvalidItemName
	}
	return nil
}

func reservedName(name string) bool {
	return len(name) >= 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

func ValidateDelta(delta int) error {
	if delta <= 0 {
		return ErrInvalidDelta
	}
	return nil
}
