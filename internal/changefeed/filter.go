package changefeed

import (
	"encoding/json"

	"dispatch/internal/domain"
)

// ForRider selects events about one rider: the rider row itself and any
// row carrying its rider_id.
func ForRider(riderID string) Filter {
	return func(ev domain.ChangeEvent) bool {
		if ev.Table == domain.TableRiders {
			return ev.ID == riderID
		}
		return rowRiderID(ev.Row) == riderID
	}
}

// Tables selects events on any of the given tables.
func Tables(tables ...string) Filter {
	set := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		set[t] = struct{}{}
	}
	return func(ev domain.ChangeEvent) bool {
		_, ok := set[ev.Table]
		return ok
	}
}

func rowRiderID(row json.RawMessage) string {
	if len(row) == 0 {
		return ""
	}
	var fields struct {
		RiderID *string `json:"rider_id"`
	}
	if err := json.Unmarshal(row, &fields); err != nil || fields.RiderID == nil {
		return ""
	}
	return *fields.RiderID
}
