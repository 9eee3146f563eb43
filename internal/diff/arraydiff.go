// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package diff

// ChangedPair holds the shadow and client versions of an item whose
// tracked sub-fields differ.
type ChangedPair[T any] struct {
	ID     string
	Shadow T
	Client T
}

// ArrayDelta is the result of a keyed array diff: identities added on the
// client, removed from the client, and present on both sides with a
// tracked field changed.
type ArrayDelta[T any] struct {
	Added   []string
	Removed []string
	Changed []ChangedPair[T]
}

// Empty reports whether the delta carries no changes.
func (d ArrayDelta[T]) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// ArrayDiff computes the symmetric difference by key between client and
// shadow. Items whose identity function returns an empty string are
// skipped (not yet syncable). changed decides whether an item present on
// both sides counts as modified; it may be nil.
//
// The walk is O(n) with a lookup table and independent of item order.
func ArrayDiff[T any](client, shadow []T, identity func(T) string, changed func(shadow, client T) bool) ArrayDelta[T] {
	var delta ArrayDelta[T]

	lookup := make(map[string]T, len(shadow))
	seen := make(map[string]bool, len(shadow))
	for _, item := range shadow {
		id := identity(item)
		if id == "" {
			continue
		}
		lookup[id] = item
	}

	for _, item := range client {
		id := identity(item)
		if id == "" {
			continue
		}
		seen[id] = true

		prev, ok := lookup[id]
		if !ok {
			delta.Added = append(delta.Added, id)
			continue
		}
		if changed != nil && changed(prev, item) {
			delta.Changed = append(delta.Changed, ChangedPair[T]{ID: id, Shadow: prev, Client: item})
		}
	}

	for _, item := range shadow {
		id := identity(item)
		if id == "" || seen[id] {
			continue
		}
		delta.Removed = append(delta.Removed, id)
	}

	return delta
}
