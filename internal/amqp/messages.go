package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"escola/internal/core"
)

// InstallmentPaidMessage announces that an installment moved to paid.
// The renewal worker reloads the type-group from storage, so the message only
// carries identifiers plus the dates needed for logging.
type InstallmentPaidMessage struct {
	ID        int64     `json:"id"`
	RecordID  string    `json:"record_id"`
	ItemType  string    `json:"item_type"`
	DueDate   string    `json:"due_date"`
	PaidAt    string    `json:"paid_at"`
	Timestamp time.Time `json:"timestamp"`
}

// NewInstallmentPaidMessage builds the message for a paid installment.
func NewInstallmentPaidMessage(inst core.Installment) *InstallmentPaidMessage {
	msg := &InstallmentPaidMessage{
		ID:        int64(inst.ID),
		RecordID:  inst.RecordID,
		ItemType:  string(inst.ItemType),
		DueDate:   inst.DueDate.String(),
		Timestamp: time.Now(),
	}
	if inst.PaidAt != nil {
		msg.PaidAt = inst.PaidAt.String()
	}
	return msg
}

// Key returns the type-group the message refers to.
func (m *InstallmentPaidMessage) Key() core.GroupKey {
	return core.GroupKey{RecordID: m.RecordID, ItemType: core.ItemType(m.ItemType)}
}

// ToJSON converts the message to JSON bytes
func (m *InstallmentPaidMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InstallmentPaidMessageFromJSON decodes and sanity-checks a message body.
func InstallmentPaidMessageFromJSON(data []byte) (*InstallmentPaidMessage, error) {
	var msg InstallmentPaidMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 || msg.RecordID == "" || !core.ItemType(msg.ItemType).Valid() {
		return nil, fmt.Errorf("incomplete installment paid message: id=%d record=%q type=%q", msg.ID, msg.RecordID, msg.ItemType)
	}
	return &msg, nil
}
