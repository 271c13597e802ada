package models

import "encoding/json"

// RemoteRecord is the wire shape of a single record in a pull or push delta.
// LocalID is the client-generated identifier the server keys idempotency on;
// ServerID is the server-assigned identifier.
type RemoteRecord struct {
	LocalID      string          `json:"local_id"`
	ServerID     string          `json:"server_id,omitempty"`
	Data         json.RawMessage `json:"data"`
	LastModified int64           `json:"last_modified,omitempty"`
}

// CollectionDelta groups the created/updated/deleted changes for one
// collection. Deleted carries server identifiers.
type CollectionDelta struct {
	Created []RemoteRecord `json:"created,omitempty"`
	Updated []RemoteRecord `json:"updated,omitempty"`
	Deleted []string       `json:"deleted,omitempty"`
}

// ChangeSet maps collections to their deltas. It is the payload of both pull
// responses and collection-level push requests.
type ChangeSet map[Collection]CollectionDelta

// Empty reports whether the change set carries no changes at all.
func (cs ChangeSet) Empty() bool {
	for _, delta := range cs {
		if len(delta.Created) > 0 || len(delta.Updated) > 0 || len(delta.Deleted) > 0 {
			return false
		}
	}
	return true
}

// Count returns the total number of changes across all collections.
func (cs ChangeSet) Count() int {
	n := 0
	for _, delta := range cs {
		n += len(delta.Created) + len(delta.Updated) + len(delta.Deleted)
	}
	return n
}
