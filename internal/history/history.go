package history

// Store defines the sync history operations.
// Consumers should depend on this interface rather than the concrete *DB type.
type Store interface {
	RecordRun(r *Run) (string, error)
	ListRuns(limit int) ([]Run, error)
	GetRun(id string) (*Run, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
