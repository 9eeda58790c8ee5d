// internal/routing/table.go

// Package routing maps lead vendors to outbound chat channels.
package routing

import (
	"handoff-coordinator/internal/common/logger"
)

// Table is the immutable vendor to channel mapping, loaded once from
// configuration. Lookups are exact and case-sensitive: vendor names
// are controlled identifiers, not free text.
type Table struct {
	channels map[string]string
}

func NewTable(vendorChannels map[string]string, log logger.Logger) *Table {
	channels := make(map[string]string, len(vendorChannels))
	for vendor, channel := range vendorChannels {
		channels[vendor] = channel
	}

	log.Info("vendor routing table loaded", map[string]interface{}{
		"vendors": len(channels),
	})
	return &Table{channels: channels}
}

// Resolve returns the channel for a vendor. ok is false when the
// vendor has no mapping; the caller decides what an unroutable vendor
// means.
func (t *Table) Resolve(vendor string) (string, bool) {
	channel, ok := t.channels[vendor]
	return channel, ok
}

// Vendors lists every mapped vendor, for diagnostics.
func (t *Table) Vendors() []string {
	out := make([]string, 0, len(t.channels))
	for vendor := range t.channels {
		out = append(out, vendor)
	}
	return out
}
