// Package cache decides where a habitat build resumes.
//
// The resolver walks the phase list from the last phase to the first and
// returns the first snapshot whose labels match the current hashes for
// that phase and every earlier one. A hash change in phase k therefore
// invalidates every snapshot at or after k with no explicit bookkeeping:
// validity is recomputed from hashes on every build.
package cache
