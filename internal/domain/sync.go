package domain

import "time"

// Metadata keys.
const (
	MetaLastSyncedAt  = "lastSyncedAt"
	MetaSchemaVersion = "schemaVersion"
	MetaLastSweepAt   = "lastSweepAt"
)

// DrainStats holds statistics about a sync queue drain.
type DrainStats struct {
	Processed int
	Synced    int
	Failed    int
	Abandoned int
	Deferred  int
	Duration  time.Duration
}
