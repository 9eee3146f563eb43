// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

// Package diff turns local edits into wire deltas and applies inbound
// deltas back onto records.
//
// Text fields delegate to the diff-match-patch primitive, which produces a
// compact string-serializable delta and applies it fuzzily to targets that
// may have drifted. Collections keyed by a stable identity go through a
// generic symmetric-difference-by-key. Scalar fields compare directly.
package diff

import (
	"fmt"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	// diffTimeout bounds the time spent looking for an optimal diff.
	diffTimeout = time.Second

	// diffEditCost is the cost of an empty edit operation used by the
	// efficiency cleanup pass.
	diffEditCost = 4

	// cleanupThreshold is the minimum number of diff segments before the
	// efficiency cleanup pass runs. Below it the diff is already compact.
	cleanupThreshold = 2
)

// TextDiffer wraps a diff-match-patch instance. Methods are safe for use
// from a single goroutine, matching the engine's run-to-completion model.
type TextDiffer struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewTextDiffer returns a TextDiffer tuned for interactive note editing.
func NewTextDiffer() *TextDiffer {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = diffTimeout
	dmp.DiffEditCost = diffEditCost
	return &TextDiffer{dmp: dmp}
}

// Delta returns the compact delta transforming old into new. The result
// is empty-change ("=" form) when the strings are equal.
func (t *TextDiffer) Delta(oldText, newText string) string {
	diffs := t.dmp.DiffMain(oldText, newText, false)
	if len(diffs) > cleanupThreshold {
		diffs = t.dmp.DiffCleanupEfficiency(diffs)
	}
	return t.dmp.DiffToDelta(diffs)
}

// PatchPair rebuilds the diffs encoded in delta against base (the shadow
// text the delta was produced from), then applies them to both base and
// target. target may have drifted from base; the patch is applied fuzzily.
//
// Returns the patched base, the patched target, and whether the delta
// carried any actual change.
func (t *TextDiffer) PatchPair(base, target, delta string) (string, string, bool, error) {
	diffs, err := t.dmp.DiffFromDelta(base, delta)
	if err != nil {
		return base, target, false, fmt.Errorf("rebuild diffs from delta: %w", err)
	}
	if !hasChange(diffs) {
		return base, target, false, nil
	}

	patches := t.dmp.PatchMake(base, diffs)
	newBase, _ := t.dmp.PatchApply(patches, base)
	newTarget, _ := t.dmp.PatchApply(patches, target)
	return newBase, newTarget, true, nil
}

// MapPosition translates a caret offset in base through the delta, so the
// caret keeps pointing at the same logical spot after the patch.
func (t *TextDiffer) MapPosition(base, delta string, pos int) int {
	diffs, err := t.dmp.DiffFromDelta(base, delta)
	if err != nil {
		return pos
	}
	return t.dmp.DiffXIndex(diffs, pos)
}

func hasChange(diffs []diffmatchpatch.Diff) bool {
	for _, d := range diffs {
		if d.Type != diffmatchpatch.DiffEqual {
			return true
		}
	}
	return false
}
