package core

// TypeTotals aggregates one type-group of a record.
type TypeTotals struct {
	ItemType ItemType `json:"item_type"`
	Count    int      `json:"count"`
	Paid     Money    `json:"paid"`
	Pending  Money    `json:"pending"`
}

// RecordSummary totals a financial record by item type.
type RecordSummary struct {
	RecordID string       `json:"record_id"`
	Paid     Money        `json:"paid"`
	Pending  Money        `json:"pending"`
	ByType   []TypeTotals `json:"by_type"`
}

// Summarize builds the summary of recordID from its installments.
// Types without installments are omitted; the rest follow ItemTypes order.
func Summarize(recordID string, installments []Installment) RecordSummary {
	totals := make(map[ItemType]*TypeTotals)
	sum := RecordSummary{RecordID: recordID}

	for _, inst := range installments {
		if inst.RecordID != recordID {
			continue
		}
		tt, ok := totals[inst.ItemType]
		if !ok {
			tt = &TypeTotals{ItemType: inst.ItemType}
			totals[inst.ItemType] = tt
		}
		tt.Count++
		if inst.IsPaid() {
			tt.Paid.Cents += inst.Amount.Cents
			sum.Paid.Cents += inst.Amount.Cents
		} else {
			tt.Pending.Cents += inst.Amount.Cents
			sum.Pending.Cents += inst.Amount.Cents
		}
	}

	for _, t := range ItemTypes() {
		if tt, ok := totals[t]; ok {
			sum.ByType = append(sum.ByType, *tt)
		}
	}
	return sum
}
