package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestInstallmentValidate(t *testing.T) {
	good := Installment{
		ItemType: ItemPlan,
		RecordID: "rec-1",
		DueDate:  NewDate(2025, 1, 31),
		Amount:   Money{Cents: 45000},
		Status:   StatusPending,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Installment{
		{ItemType: "mensalidade", RecordID: "r", DueDate: NewDate(2025, 1, 1), Amount: Money{Cents: 1}},
		{ItemType: ItemPlan, RecordID: " ", DueDate: NewDate(2025, 1, 1), Amount: Money{Cents: 1}},
		{ItemType: ItemPlan, RecordID: "r", DueDate: NewDate(2025, 2, 30), Amount: Money{Cents: 1}},
		{ItemType: ItemPlan, RecordID: "r", DueDate: NewDate(2025, 1, 1), Amount: Money{Cents: 0}},
		{ItemType: ItemPlan, RecordID: "r", DueDate: NewDate(2025, 1, 1), Amount: Money{Cents: 1}, Status: "atrasado"},
		{ItemType: ItemPlan, RecordID: "r", DueDate: NewDate(2025, 1, 1), Amount: Money{Cents: 1}, Description: strings.Repeat("x", 201)},
	}
	for i, b := range bads {
		if err := b.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestInstallmentMarkPaid(t *testing.T) {
	i := Installment{ID: 1, Status: StatusPending}
	on := NewDate(2024, 10, 5)
	if err := i.MarkPaid(on); err != nil {
		t.Fatal(err)
	}
	if !i.IsPaid() || i.PaidAt == nil || *i.PaidAt != on {
		t.Fatalf("unexpected state %+v", i)
	}
	if err := i.MarkPaid(on); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
}

func TestInstallmentIDJSON(t *testing.T) {
	var payload struct {
		ID InstallmentID `json:"id"`
	}
	for _, in := range []string{`{"id": 42}`, `{"id": "42"}`} {
		if err := json.Unmarshal([]byte(in), &payload); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if payload.ID != 42 {
			t.Fatalf("%s: got %d", in, payload.ID)
		}
	}
	if err := json.Unmarshal([]byte(`{"id": "abc"}`), &payload); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}

func TestItemTypeValid(t *testing.T) {
	for _, it := range ItemTypes() {
		if !it.Valid() {
			t.Errorf("%s should be valid", it)
		}
	}
	if ItemType("taxa").Valid() {
		t.Error("unknown type accepted")
	}
}
