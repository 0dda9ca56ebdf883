package interfaces

import (
	"context"

	"quote-observer/src/models"
)

// -----------------------------------------------------------------------------
// IDatabase defines the contract for the snapshot mirror.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveSnapshots upserts a batch of snapshots. It returns once ctx is done.
	SaveSnapshots(ctx context.Context, snapshots []models.MSnapshot) error

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
