package sheets

import "context"

// SyncState names the terminal states of one worksheet run.
type SyncState string

const (
	// StateNoChange means the store held nothing new for this worksheet;
	// no write and no backup happened.
	StateNoChange SyncState = "no_change"
	// StateSaved means new items were appended and the worksheet was
	// persisted behind a verified backup.
	StateSaved SyncState = "saved"
	// StateBackupFailed means the pre-write backup could not be verified;
	// the worksheet was left untouched.
	StateBackupFailed SyncState = "backup_failed"
)

// Target identifies one worksheet to synchronize: either the aggregate
// all-items sheet or one category's sheet.
type Target struct {
	// Path is the worksheet file location.
	Path string
	// Category filters the store's current tier; empty means every item
	// (the all-items sheet).
	Category string
}

// SyncReport describes the outcome of one worksheet run.
type SyncReport struct {
	Target     Target
	State      SyncState
	NewItems   int
	BackupPath string
	// Drift lists field-level divergence for items present in both the
	// worksheet and the store. It is informational: the synchronizer
	// never resolves drift itself.
	Drift []FieldDrift
	// Err holds the failure that stopped this worksheet, if any. SyncAll
	// records per-worksheet failures here instead of aborting the run.
	Err error
}

// FieldDrift is one divergence between a worksheet cell and the store's
// current value for the same item and column.
type FieldDrift struct {
	MaterialID string
	Column     string
	SheetValue string
	StoreValue string
}

// Syncer fans the store's current tier out to the worksheets.
//
// Synchronization is additive only: rows already in a worksheet are
// preserved byte for byte, including columns owned by worksheet editors.
// Every destructive file write happens behind a verified backup.
type Syncer interface {
	// SyncSheet runs one worksheet through the sync state machine:
	// Loaded -> Diffed -> NoChange, or Loaded -> Diffed -> BackedUp ->
	// Verified -> Merged -> Saved. A backup verification failure aborts
	// this worksheet only.
	SyncSheet(ctx context.Context, target Target) (SyncReport, error)

	// SyncAll synchronizes the all-items worksheet and one worksheet per
	// category known to the store. A failure on one worksheet is recorded
	// in its report and does not stop the others.
	SyncAll(ctx context.Context) ([]SyncReport, error)

	// Drift computes the field-level diff between a worksheet and the
	// store for items present in both, without writing anything.
	Drift(ctx context.Context, target Target) ([]FieldDrift, error)
}
