package models

import "time"

// A PeerSnapshot is the loosely decoded view of a record fetched from the
// peer's synchronous lookup API. Reconciliation only inspects the shared
// fields; everything else stays authoritative on the peer.
type PeerSnapshot struct {
	OrderNumber string     `json:"order_number"`
	Status      string     `json:"status"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}
