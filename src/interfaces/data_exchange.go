package interfaces

import (
	"context"

	"quote-observer/src/models"
)

// -----------------------------------------------------------------------------
// IDataExchanger defines the interface for sharing data with external systems (Server/Push).
// -----------------------------------------------------------------------------

type IDataExchanger interface {

	// Broadcast pushes data to external listeners.
	Broadcast(payload interface{})

	// -----------------------------------------------------------------------------

	// Start the server
	Start() error

	// -----------------------------------------------------------------------------

	// Stop the server gracefully
	Stop() error
}

// -----------------------------------------------------------------------------
// ISnapshotSink receives every snapshot the analyzer emits, after it has been
// journaled. Sinks are best-effort: an error is logged and never stops the
// pipeline.
// -----------------------------------------------------------------------------

type ISnapshotSink interface {

	// Name identifies the sink in logs.
	Name() string

	// Publish delivers a batch of snapshots.
	Publish(ctx context.Context, snapshots []models.MSnapshot) error

	// Close releases the sink's resources.
	Close() error
}
