package models

// Checkpoint represents a row in last_updated: a named unix-timestamp marker
// recording how far incremental processing has advanced.
type Checkpoint struct {
	Key       string `db:"last_updated"`
	Timestamp int64  `db:"timestamp"`
}
