package ingestion

import (
	"encoding/json"
	"fmt"
)

// RateUpdate is the wire form of one oracle rate message: the B-per-A
// exchange rate as a fixed-point integer at the rate scale, plus the feed's
// own timestamp.
type RateUpdate struct {
	Rate      int64 `json:"rate"`
	Timestamp int64 `json:"timestamp"` // unix seconds at the feed
}

// ParseRateUpdate decodes and validates a rate message. Malformed or
// non-positive rates are rejected here so the oracle adapter only ever sees
// usable values.
func ParseRateUpdate(data []byte) (RateUpdate, error) {
	var upd RateUpdate
	if err := json.Unmarshal(data, &upd); err != nil {
		return RateUpdate{}, fmt.Errorf("parse rate update: %w", err)
	}
	if upd.Rate <= 0 {
		return RateUpdate{}, fmt.Errorf("parse rate update: non-positive rate %d", upd.Rate)
	}
	return upd, nil
}
