// Package bucket implements the single deterministic rollout-bucketing
// function shared by the Policy Engine's risk gate and the Intake
// Controller's throttle decision (spec.md §4.4, §4.6, §9
// "Deterministic rollout & throttle bucket" — documented there as a
// public contract, not an implementation detail, precisely because two
// independent call sites must agree on it).
package bucket

import (
	"crypto/sha256"
	"encoding/binary"
)

// hashBytes is the number of leading bytes of SHA-256(id) used to
// derive the bucket (8 hex characters == 4 bytes). spec.md §9 calls
// this out as a public contract: changing it would desynchronize the
// risk gate and the intake throttle, which must place the same intent
// in the same rollout slice.
const hashBytes = 4

// divisor is 16^8 == 2^32, the number of distinct buckets.
const divisor = float64(1 << (8 * hashBytes))

// Rollout returns a deterministic value in [0, 1) derived from id.
// Grounded on original_source/policy.py's _rollout_bucket and
// intake.py's _throttle_bucket, which must produce identical output
// for the same id (SHA-256 → first 8 hex chars → divide by 16^8).
func Rollout(id string) float64 {
	sum := sha256.Sum256([]byte(id))
	n := binary.BigEndian.Uint32(sum[:hashBytes])
	return float64(n) / divisor
}
