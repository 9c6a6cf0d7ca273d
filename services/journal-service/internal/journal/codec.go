package journal

import (
	"encoding/json"
	"fmt"

	"cloud.google.com/go/civil"
)

// Entry is one day's record. Timestamp is epoch milliseconds of the last save.
type Entry struct {
	Mood      int    `json:"mood"`
	Note      string `json:"note"`
	Timestamp int64  `json:"timestamp"`
}

// Encode serializes the whole journal as {"YYYY-MM-DD": entry, ...}.
func Encode(entries map[civil.Date]Entry) ([]byte, error) {
	if entries == nil {
		entries = map[civil.Date]Entry{}
	}
	return json.Marshal(entries)
}

func Decode(raw []byte) (map[civil.Date]Entry, error) {
	entries := map[civil.Date]Entry{}
	if len(raw) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode journal: %w", err)
	}
	for d, e := range entries {
		if !d.IsValid() {
			return nil, fmt.Errorf("decode journal: invalid date %s", d)
		}
		if err := validMood(e.Mood); err != nil {
			return nil, fmt.Errorf("decode journal: %s: %w", d, err)
		}
	}
	return entries, nil
}
