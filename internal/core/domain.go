package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	ItemPlan         ItemType = "plano"
	ItemMaterial     ItemType = "material"
	ItemEnrollment   ItemType = "matricula"
	ItemCancellation ItemType = "cancelamento"
	ItemOther        ItemType = "outros"
)

const (
	StatusPending PaymentStatus = "pendente"
	StatusPaid    PaymentStatus = "pago"
)

type (
	// ItemType is the category of charge an installment belongs to.
	ItemType string

	PaymentStatus string

	// InstallmentID accepts both 12 and "12" when decoded from JSON.
	InstallmentID int64

	Money struct {
		Cents int64
	}

	// Installment is one scheduled payment of a financial record.
	// Installments sharing RecordID and ItemType form a type-group.
	Installment struct {
		ID          InstallmentID `json:"id"`
		ItemType    ItemType      `json:"item_type"`
		RecordID    string        `json:"record_id"`
		DueDate     Date          `json:"due_date"`
		Amount      Money         `json:"amount"`
		Status      PaymentStatus `json:"status"`
		PaidAt      *Date         `json:"paid_at,omitempty"`
		Description string        `json:"description,omitempty"`
	}
)

var (
	ErrInvalidItemType  = errors.New("invalid item type")
	ErrInvalidStatus    = errors.New("invalid payment status")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyRecord      = errors.New("empty financial record")
	ErrAlreadyPaid      = errors.New("installment already paid")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
	ErrInvalidReference = errors.New("invalid installment id")
)

// ItemTypes lists every known item type in display order.
func ItemTypes() []ItemType {
	return []ItemType{ItemPlan, ItemMaterial, ItemEnrollment, ItemCancellation, ItemOther}
}

func (t ItemType) Valid() bool {
	switch t {
	case ItemPlan, ItemMaterial, ItemEnrollment, ItemCancellation, ItemOther:
		return true
	}
	return false
}

// Renewable reports whether paying the last installment of a group of this
// type schedules another one. Only the monthly plan recurs; the other types
// are one-off charges split into a fixed number of installments.
func (t ItemType) Renewable() bool {
	return t == ItemPlan
}

func (s PaymentStatus) Valid() bool {
	return s == StatusPending || s == StatusPaid
}

// ParseInstallmentID parses a numeric id such as "42".
func ParseInstallmentID(s string) (InstallmentID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidReference)
	}
	return InstallmentID(n), nil
}

func (id InstallmentID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func (id *InstallmentID) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*id = InstallmentID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("installment id: %w", ErrInvalidReference)
	}
	parsed, err := ParseInstallmentID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// IsPaid reports whether the installment has been settled.
func (i Installment) IsPaid() bool {
	return i.Status == StatusPaid
}

func (i Installment) Validate() error {
	if !i.ItemType.Valid() {
		return fmt.Errorf("%q: %w", i.ItemType, ErrInvalidItemType)
	}
	if strings.TrimSpace(i.RecordID) == "" {
		return ErrEmptyRecord
	}
	if err := i.DueDate.Validate(); err != nil {
		return fmt.Errorf("due date: %w", err)
	}
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if i.Status != "" && !i.Status.Valid() {
		return fmt.Errorf("%q: %w", i.Status, ErrInvalidStatus)
	}
	if len(i.Description) > 200 {
		return ErrDescriptionLong
	}
	return nil
}

// MarkPaid moves a pending installment to paid. Paid is terminal.
func (i *Installment) MarkPaid(on Date) error {
	if i.IsPaid() {
		return fmt.Errorf("installment %d: %w", i.ID, ErrAlreadyPaid)
	}
	paidOn := on
	i.Status = StatusPaid
	i.PaidAt = &paidOn
	return nil
}
