// Package build drives habitat builds on top of the snapshot cache.
//
// A build hashes every phase of a habitat, asks the cache resolver for
// the most advanced snapshot that is still valid, and starts a build
// container from it (or from the base image). Each remaining phase runs
// as a pipeline stage followed by a snapshot stage, so an interrupted or
// failed build resumes after the last committed phase next time.
//
// # Locking
//
// Builds and cleans of the same habitat are serialized with a lock file
// in the locks directory. A second build fails fast with an exit code of
// errors.ExitHabitatLocked instead of waiting.
//
// # Failed phases
//
// With keep_failed enabled, the container of a failed phase is committed
// under that phase's tag with a fail result and only the hashes of the
// phases before it, so it can be inspected but never resumed from.
//
// # Usage
//
//	b := build.NewBuilder(eng, paths, settings)
//	result, err := b.Build(ctx, habitat, build.Options{Listener: console.Event})
package build
