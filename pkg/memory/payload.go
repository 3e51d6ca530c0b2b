// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"strconv"
	"strings"
	"time"
)

// Payload keys shared by every backend.
const (
	payloadID         = "id"
	payloadText       = "text"
	payloadCollection = "collection"
	payloadTimestamp  = "timestamp"
	payloadConfidence = "confidence"
	payloadSource     = "source"
	metadataPrefix    = "meta."
)

func recordToPoint(rec Record) Point {
	payload := map[string]any{
		payloadID:         rec.ID,
		payloadText:       rec.Text,
		payloadCollection: string(rec.Collection),
		payloadTimestamp:  rec.Timestamp.UnixNano(),
		payloadConfidence: rec.Confidence,
	}
	if rec.Source != "" {
		payload[payloadSource] = rec.Source
	}
	for k, v := range rec.Metadata {
		payload[metadataPrefix+k] = v
	}
	return Point{
		ID:        rec.ID,
		Vector:    rec.Embedding,
		Payload:   payload,
		Timestamp: rec.Timestamp.UnixNano(),
	}
}

// pointToRecord decodes a point. Backends may hand values back as strings
// or as other numeric types than they were written with.
func pointToRecord(p Point, collection Collection) Record {
	rec := Record{
		ID:         payloadString(p.Payload, payloadID),
		Text:       payloadString(p.Payload, payloadText),
		Embedding:  p.Vector,
		Collection: collection,
		Confidence: payloadFloat(p.Payload, payloadConfidence),
		Source:     payloadString(p.Payload, payloadSource),
	}
	if rec.ID == "" {
		rec.ID = p.ID
	}
	ts := payloadInt(p.Payload, payloadTimestamp)
	if ts == 0 {
		ts = p.Timestamp
	}
	if ts != 0 {
		rec.Timestamp = time.Unix(0, ts).UTC()
	}
	for k, v := range p.Payload {
		if name, ok := strings.CutPrefix(k, metadataPrefix); ok {
			if rec.Metadata == nil {
				rec.Metadata = make(map[string]string)
			}
			rec.Metadata[name] = toString(v)
		}
	}
	return rec
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	return toString(v)
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func payloadInt(payload map[string]any, key string) int64 {
	switch val := payload[key].(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	default:
		return 0
	}
}

func payloadFloat(payload map[string]any, key string) float64 {
	switch val := payload[key].(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}

// EncodePayload converts a payload to the string map used by backends
// that only store string metadata.
func EncodePayload(payload map[string]any) map[string]string {
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		out[k] = toString(v)
	}
	return out
}

// DecodePayload is the inverse of EncodePayload. Numeric fields are parsed
// back on read by the store.
func DecodePayload(meta map[string]string) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// Payload keys backends may need to map onto native fields.
const (
	PayloadKeyID        = payloadID
	PayloadKeyText      = payloadText
	PayloadKeyTimestamp = payloadTimestamp
)

// PayloadString returns payload[key] rendered as a string.
func PayloadString(payload map[string]any, key string) string {
	return payloadString(payload, key)
}
