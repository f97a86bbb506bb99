// Package checkpoint persists the scraper's resumable state on local disk.
//
// A run leaves three artifacts in its data directory:
//
//   - checkpoint_ids.json - the harvested reference set (JSON list)
//   - startups_data.json  - the output collection (JSON list of records)
//   - progress.json       - the progress marker (JSON object)
//
// Every write goes to a temporary file in the same directory which is then
// renamed over the target, so a reader never observes a half-written file.
// Output is indented and non-ASCII text is preserved as-is.
//
// # Basic Usage
//
//	store, err := checkpoint.NewStore("data", logger)
//	if err != nil {
//		return err
//	}
//
//	refs, err := store.LoadReferences()
//	if errors.Is(err, checkpoint.ErrNotFound) {
//		// No reference set yet - harvest the listing
//	}
//
// # Resume Consistency
//
// The progress marker records how many records the output collection held
// when it was written (record_count). Reconcile compares that count with the
// loaded collection: a longer collection is truncated (the process stopped
// between the two writes), a shorter one is ErrResumeMismatch. Markers
// written without record_count are trusted.
//
// # Metrics
//
//   - scraper_checkpoint_writes_total{artifact} - Successful artifact writes
//   - scraper_checkpoint_bytes{artifact} - Size of the last write in bytes
//   - scraper_checkpoint_errors_total{operation} - Failed reads and writes
package checkpoint
