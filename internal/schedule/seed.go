// Package schedule plans the debate workload: deterministic seeds,
// model pairings, and the resume-aware task list.
package schedule

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// DeriveDebateSeed deterministically derives a per-debate seed so
// resuming a run with the same tag reproduces the same side swaps and
// judge panels. The digest is truncated to 31 bits to stay positive in
// any downstream RNG.
func DeriveDebateSeed(tag, topicID, proID, conID string, rep int) int64 {
	h, err := blake2b.New(8, nil)
	if err != nil {
		panic(err) // only fails for invalid digest sizes
	}
	fmt.Fprintf(h, "%s|%s|%s|%s|%d", tag, topicID, proID, conID, rep)
	digest := h.Sum(nil)
	return int64(binary.BigEndian.Uint64(digest) & 0x7FFFFFFF)
}

// RetrySeedOffset perturbs a task's seed on its single retry pass so
// the retry is not a verbatim repeat of a deterministically doomed run.
const RetrySeedOffset = 17
