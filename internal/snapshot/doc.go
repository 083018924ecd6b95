// Package snapshot stores habitat build snapshots as labeled container images.
//
// Every snapshot lives in the repository habitat-<habitat> under the tag
// <phaseId>-<phaseName>. Its labels record the hash of each phase that
// contributed to it, keyed by phase name, plus:
//   - habitat.result: pass or fail
//   - habitat.timestamp: RFC 3339 creation time (UTC)
//
// Labels are the only persisted cache state. A missing image is never an
// error here: GetWithLabels returns nil and Remove skips it.
package snapshot
