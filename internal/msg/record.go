package msg

import (
	"encoding/json"
	"fmt"
)

// Record represents a consumed Kafka record
type Record struct {
	Topic     string
	Key       string
	Value     []byte
	Partition int32
	Offset    int64
	Timestamp int64
}

// Decode unmarshals the record value
func (r Record) Decode(v any) error {
	if err := json.Unmarshal(r.Value, v); err != nil {
		return fmt.Errorf("failed to decode %s record at offset %d: %w", r.Topic, r.Offset, err)
	}
	return nil
}
