package repository

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/surrealdb/surrealdb.go/pkg/models"
)

var errUnexpectedFormat = errors.New("unexpected result format")

// extractQueryResults extracts the result array from a SurrealDB response
func extractQueryResults(result []interface{}) ([]interface{}, bool) {
	if len(result) == 0 {
		return nil, false
	}
	if firstResult, ok := result[0].(map[string]interface{}); ok {
		if resultArray, ok := firstResult["result"].([]interface{}); ok {
			return resultArray, true
		}
	}
	return result, true
}

// decodeRecord marshals a SurrealDB row map into the target struct.
// Datetime fields come back as models.CustomDateTime and are fixed up by
// the callers via getTime.
func decodeRecord(result interface{}, target interface{}) (map[string]interface{}, error) {
	if result == nil {
		return nil, errUnexpectedFormat
	}

	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errUnexpectedFormat
	}

	// Drop non-JSON-friendly keys before marshaling; id is SurrealDB's
	// record id, not ours.
	clean := make(map[string]interface{}, len(data))
	for k, v := range data {
		if k == "id" {
			continue
		}
		if _, isDT := v.(models.CustomDateTime); isDT {
			continue
		}
		if _, isDT := v.(*models.CustomDateTime); isDT {
			continue
		}
		clean[k] = v
	}

	jsonBytes, err := json.Marshal(clean)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return nil, err
	}
	return data, nil
}

// getTime extracts a time value from a row map
func getTime(m map[string]interface{}, key string) *time.Time {
	if v, ok := m[key].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return &t
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return &t
		}
	}
	if t, ok := m[key].(time.Time); ok {
		return &t
	}
	if dt, ok := m[key].(models.CustomDateTime); ok {
		t := dt.Time
		return &t
	}
	if dt, ok := m[key].(*models.CustomDateTime); ok && dt != nil {
		t := dt.Time
		return &t
	}
	return nil
}

// countFrom converts a count query result to an int
func countFrom(result interface{}) int {
	if data, ok := result.(map[string]interface{}); ok {
		switch c := data["count"].(type) {
		case float64:
			return int(c)
		case int:
			return c
		case int64:
			return int(c)
		case uint64:
			return int(c)
		}
	}
	return 0
}
