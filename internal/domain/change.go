package domain

import "encoding/json"

// ChangeType is the kind of row-level change.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
	// ChangeResync tells observers that events may have been missed.
	ChangeResync ChangeType = "RESYNC"
)

// Table names carried by change events.
const (
	TableRiders     = "riders"
	TableOrders     = "orders"
	TableDeliveries = "deliveries"
	TableEarnings   = "earnings"
)

// ChangeEvent is a row-level change notification.
type ChangeEvent struct {
	Table string          `json:"table"`
	Type  ChangeType      `json:"type"`
	ID    string          `json:"id"`
	Row   json.RawMessage `json:"row,omitempty"`
}
