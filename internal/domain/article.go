package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Article is one ingested feed entry. A freshly fetched, not yet persisted
// article (ID == 0) is a candidate.
type Article struct {
	ID           int64                 `db:"id" json:"id"`
	Title        string                `db:"title" json:"title"`
	Content      string                `db:"content" json:"content"`
	URL          string                `db:"url" json:"url"`
	PublishedAt  *time.Time            `db:"published_at" json:"published_at,omitempty"`
	FetchedAt    time.Time             `db:"fetched_at" json:"fetched_at"`
	SourceID     int64                 `db:"source_id" json:"source_id"`
	Transparency *TransparencyMetadata `db:"transparency_metadata" json:"transparency_metadata,omitempty"`
	Keywords     *string               `db:"keywords" json:"keywords,omitempty"`
}

// TransparencyMetadata records where an article came from.
type TransparencyMetadata struct {
	SourceName string    `json:"source_name"`
	FeedURL    string    `json:"rss_url"`
	FetchedAt  time.Time `json:"fetched_at"`
}

func (m TransparencyMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *TransparencyMetadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("scan transparency metadata: unsupported type %T", src)
	}
}

// FetchState tracks the outcome of the latest fetch of one source.
type FetchState struct {
	SourceID      int64      `db:"source_id" json:"source_id"`
	LastFetchedAt time.Time  `db:"last_fetched_at" json:"last_fetched_at"`
	LastSuccessAt *time.Time `db:"last_success_at" json:"last_success_at,omitempty"`
	LastError     *string    `db:"last_error" json:"last_error,omitempty"`
	TotalAdded    int64      `db:"total_added" json:"total_added"`
}
