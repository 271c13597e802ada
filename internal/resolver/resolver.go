// Package resolver turns push conflicts into deterministic final states.
// Resolution is a pure function of the conflict input: no clocks, no
// randomness, no store access. The sync engine applies the outcome.
package resolver

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
)

// Resolution names the strategy that produced an outcome.
type Resolution string

const (
	ServerWins Resolution = "server_wins"
	ClientWins Resolution = "client_wins"
	Merge      Resolution = "merge"
)

// Conflict is one record that changed on both sides since the last
// successful sync. Constructed during push reconciliation, consumed within
// the same cycle, never persisted.
type Conflict struct {
	Collection models.Collection
	LocalID    string
	ServerID   string
	LocalData  json.RawMessage
	ServerData json.RawMessage
	// Suggested carries the server's hint, if any. The local policy
	// still decides.
	Suggested Resolution
}

// Outcome is the final state for a conflicted record. Shadow, when non-nil,
// is the discarded local edit that must be retained for manual review.
type Outcome struct {
	Resolution Resolution
	Data       json.RawMessage
	Shadow     json.RawMessage
}

// Resolve applies the resolution policy:
//
//   - client-authoritative collections keep the local copy (client_wins)
//   - edits to disjoint field sets are merged field-by-field
//   - anything ambiguous falls back to server_wins, retaining the local
//     edit as a shadow copy
func Resolve(c Conflict) (Outcome, error) {
	if models.ClientAuthoritative(c.Collection) {
		return Outcome{Resolution: ClientWins, Data: c.LocalData}, nil
	}

	local, err := decodeFields(c.LocalData)
	if err != nil {
		return Outcome{}, fmt.Errorf("conflict %s/%s: local data: %w", c.Collection, c.LocalID, err)
	}
	server, err := decodeFields(c.ServerData)
	if err != nil {
		return Outcome{}, fmt.Errorf("conflict %s/%s: server data: %w", c.Collection, c.LocalID, err)
	}

	if overlapping(local, server) {
		return Outcome{
			Resolution: ServerWins,
			Data:       c.ServerData,
			Shadow:     c.LocalData,
		}, nil
	}

	merged := make(map[string]any, len(server)+len(local))
	for k, v := range server {
		merged[k] = v
	}
	for k, v := range local {
		if _, taken := merged[k]; !taken {
			merged[k] = v
		}
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return Outcome{}, fmt.Errorf("conflict %s/%s: marshal merge: %w", c.Collection, c.LocalID, err)
	}
	return Outcome{Resolution: Merge, Data: data}, nil
}

func decodeFields(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// overlapping reports whether any field is present on both sides with a
// different value. Those edits cannot be merged mechanically.
func overlapping(local, server map[string]any) bool {
	for k, lv := range local {
		sv, ok := server[k]
		if !ok {
			continue
		}
		if !reflect.DeepEqual(lv, sv) {
			return true
		}
	}
	return false
}
