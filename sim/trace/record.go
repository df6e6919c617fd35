// Package trace provides per-request allocation records for post-run analysis.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// AllocationRecord captures how a single request was resolved.
type AllocationRecord struct {
	Round      int    `json:"round"`
	ConsumerID int64  `json:"consumer_id"`
	Consumer   string `json:"consumer"`
	Key        string `json:"key"`
	Accepted   bool   `json:"accepted"`
	Pool       string `json:"pool,omitempty"`        // pool the resource came from; empty on rejection
	ResourceID int64  `json:"resource_id,omitempty"` // 0 on rejection
}
