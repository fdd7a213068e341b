package commands

import (
	"encoding/json"
	"time"

	"agora/contexts/polling/poll-registry/ports"
)

func newRegistryEnvelope(
	eventID string,
	eventType string,
	pollID string,
	occurredAt time.Time,
	data any,
) (ports.EventEnvelope, error) {
	// Registry events are partitioned by poll so downstream consumers see a
	// poll's lifecycle in order.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "poll-registry",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "poll_id",
		PartitionKey:     pollID,
		Data:             payload,
	}, nil
}
