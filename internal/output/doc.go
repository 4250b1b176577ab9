// Package output provides deterministic encoding for reports.
//
// Identical analyses must produce byte-identical JSON so that reports can
// be diffed, cached by content and compared in tests. DeterministicEncode
// guarantees this by:
//
//  1. Stable key ordering: object keys are sorted alphabetically
//  2. Float formatting: rounded to at most 6 decimal places
//  3. Null handling: nil fields and empty collections are omitted
//
// Run-specific fields such as the run ID, timestamps and durations are
// listed in SnapshotExcludeFields; CompareSnapshots ignores them.
package output
