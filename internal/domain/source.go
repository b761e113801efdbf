package domain

import "time"

type SourceStatus string

const (
	SourceStatusPending  SourceStatus = "pending"
	SourceStatusActive   SourceStatus = "active"
	SourceStatusInactive SourceStatus = "inactive"
)

const (
	DiscoveredByManual    = "Manual"
	DiscoveredByCrawler   = "Crawler"
	DiscoveredByLocalList = "LocalList"
)

// Source is a registered feed origin.
type Source struct {
	ID               int64        `db:"id" json:"id"`
	Name             string       `db:"name" json:"name"`
	Website          string       `db:"website" json:"website"`
	Status           SourceStatus `db:"status" json:"status"`
	ReliabilityScore int          `db:"reliability_score" json:"reliability_score"`
	DiscoveredBy     string       `db:"discovered_by" json:"discovered_by"`
	DiscoveredAt     time.Time    `db:"discovery_timestamp" json:"discovery_timestamp"`
	LastValidated    *time.Time   `db:"last_validated" json:"last_validated,omitempty"`
}

// DirectoryEntry is one source suggested by a discovery origin.
type DirectoryEntry struct {
	Name string
	URL  string
}
