package service

import (
	"encoding/json"

	"dispatch/internal/domain"
)

// Publisher receives committed changes. Implementations must not block.
type Publisher interface {
	Publish(event domain.ChangeEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(domain.ChangeEvent) {}

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

// changeEvent builds an event carrying a snapshot of the row.
func changeEvent(table string, typ domain.ChangeType, id string, row any) domain.ChangeEvent {
	ev := domain.ChangeEvent{Table: table, Type: typ, ID: id}
	if row != nil {
		if data, err := json.Marshal(row); err == nil {
			ev.Row = data
		}
	}
	return ev
}
