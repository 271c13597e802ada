package models

import (
	"encoding/json"
	"time"
)

// SyncStatus represents the sync lifecycle state of a local record.
type SyncStatus string

const (
	SyncPending  SyncStatus = "pending"
	SyncSynced   SyncStatus = "synced"
	SyncConflict SyncStatus = "conflict"
	// SyncFailed marks a record the server rejected; it is not retried
	// automatically and must be surfaced for manual review.
	SyncFailed SyncStatus = "failed"
)

// Collection identifies a syncable entity table.
type Collection string

const (
	CollectionOrders     Collection = "orders"
	CollectionOrderItems Collection = "order_items"
	CollectionStaff      Collection = "staff"
	CollectionShifts     Collection = "shifts"
	CollectionMenuItems  Collection = "menu_items"
	CollectionCustomers  Collection = "customers"
)

// Collections lists every syncable collection in a stable order.
var Collections = []Collection{
	CollectionOrders,
	CollectionOrderItems,
	CollectionStaff,
	CollectionShifts,
	CollectionMenuItems,
	CollectionCustomers,
}

// KnownCollection reports whether c names a syncable collection.
func KnownCollection(c Collection) bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

// ClientAuthoritative reports whether local edits to this collection win
// conflicts by default. Shift rows carry device-captured clock-in/out
// timestamps; the device clock is the source of truth for those.
func ClientAuthoritative(c Collection) bool {
	return c == CollectionShifts
}

// Record is a domain row annotated with sync metadata. LocalID is generated
// on the device and never changes; ServerID is empty until the first
// successful push. A row with IsDeleted set is a tombstone: it is retained
// (and reported as deleted by reads) until the server acknowledges the delete.
type Record struct {
	Collection   Collection      `json:"collection"`
	LocalID      string          `json:"local_id"`
	ServerID     string          `json:"server_id,omitempty"`
	Data         json.RawMessage `json:"data"`
	SyncStatus   SyncStatus      `json:"sync_status"`
	LastModified int64           `json:"last_modified"` // unix millis
	IsDeleted    bool            `json:"is_deleted"`
}

// OrderStatus represents the state of an order.
type OrderStatus string

const (
	OrderOpen      OrderStatus = "open"
	OrderSubmitted OrderStatus = "submitted"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
)

// Order is a restaurant order captured at a table or counter.
type Order struct {
	TableNumber int         `json:"table_number,omitempty"`
	Status      OrderStatus `json:"status"`
	StaffID     string      `json:"staff_id,omitempty"`
	CustomerID  string      `json:"customer_id,omitempty"`
	TotalCents  int64       `json:"total_cents"`
	Notes       string      `json:"notes,omitempty"`
	OpenedAt    time.Time   `json:"opened_at"`
	ClosedAt    *time.Time  `json:"closed_at,omitempty"`
}

// OrderItem is a single line on an order.
type OrderItem struct {
	OrderID    string `json:"order_id"`
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
	Modifiers  string `json:"modifiers,omitempty"`
}

// Staff is an employee record.
type Staff struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	// PinHash is sensitive: queued operations carrying staff payloads are
	// encrypted before they are persisted.
	PinHash string `json:"pin_hash,omitempty"`
}

// Shift is a worked shift with device-captured clock times.
type Shift struct {
	StaffID    string     `json:"staff_id"`
	ClockIn    time.Time  `json:"clock_in"`
	ClockOut   *time.Time `json:"clock_out,omitempty"`
	BreakMins  int        `json:"break_mins,omitempty"`
	DeviceNote string     `json:"device_note,omitempty"`
}

// MenuItem is a sellable menu entry.
type MenuItem struct {
	Name       string `json:"name"`
	Category   string `json:"category,omitempty"`
	PriceCents int64  `json:"price_cents"`
	Available  bool   `json:"available"`
}

// Customer is a customer profile.
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// SensitiveCollection reports whether payloads for this collection must be
// encrypted before they are written to the mutation queue.
func SensitiveCollection(c Collection) bool {
	return c == CollectionStaff || c == CollectionCustomers
}

// Marshal encodes a typed entity into a Record data blob.
func Marshal(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}
