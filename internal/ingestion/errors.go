package ingestion

import "fmt"

// UpstreamError reports an embedding or index failure during ingestion.
// Inserted is the number of records committed before the failure; batches
// upserted before the failing one stay committed.
type UpstreamError struct {
	Op       string
	Inserted int
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s failed after %d records inserted: %v", e.Op, e.Inserted, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
