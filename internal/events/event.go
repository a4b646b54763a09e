package events

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Document is an oracle scoring event as produced by edge plugins: an open
// JSON object with a handful of well-known fields.
type Document map[string]any

const (
	FieldReceivingTimestamp = "image_receiving_timestamp"
	FieldScoringTimestamp   = "image_scoring_timestamp"
	FieldStoreDeleteTime    = "image_store_delete_time"
	FieldFlattenedScores    = "flattened_scores"
)

// LoadDocument reads a scoring event from a JSON file.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("event file %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON in event file %s: %w", path, err)
	}
	return doc, nil
}

// Normalize stamps the pipeline timestamps with now (UTC, RFC 3339 with a
// trailing Z) and re-encodes an array-valued flattened_scores as a JSON
// string, which is what downstream oracle consumers expect.
func (d Document) Normalize(now time.Time) error {
	ts := isoTimestamp(now)
	d[FieldReceivingTimestamp] = ts
	d[FieldScoringTimestamp] = ts
	d[FieldStoreDeleteTime] = ts

	if scores, ok := d[FieldFlattenedScores]; ok {
		if _, isString := scores.(string); !isString {
			encoded, err := json.Marshal(scores)
			if err != nil {
				return fmt.Errorf("failed to encode flattened_scores: %w", err)
			}
			d[FieldFlattenedScores] = string(encoded)
		}
	}
	return nil
}

// isoTimestamp renders the wire timestamp format of the oracle topic:
// microseconds zero-padded to six digits, the fractional block omitted
// entirely when zero, with a literal Z suffix.
func isoTimestamp(now time.Time) string {
	utc := now.UTC()
	s := utc.Format("2006-01-02T15:04:05")
	if us := utc.Nanosecond() / 1000; us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s + "Z"
}

// UploadEvent is published on the oracle topic for upload lifecycle
// transitions.
type UploadEvent struct {
	UploadID                string `json:"upload_id"`
	DeviceID                string `json:"device_id,omitempty"`
	Filename                string `json:"filename,omitempty"`
	SizeBytes               int64  `json:"size_bytes,omitempty"`
	EventType               string `json:"event_type"` // "image_received", "image_deleted"
	ImageReceivingTimestamp string `json:"image_receiving_timestamp,omitempty"`
	ImageStoreDeleteTime    string `json:"image_store_delete_time,omitempty"`
}

const (
	EventTypeReceived = "image_received"
	EventTypeDeleted  = "image_deleted"
)
