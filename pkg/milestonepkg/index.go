// Package milestonepkg defines the milestone index and essence types
// shared by every component that participates in milestone confirmation
// (tangle, propagator, milestone validator/solidifier, whiteflag,
// coordinator). Named milestonepkg rather than milestone to avoid a
// package-name collision with the pkg/milestone component package.
package milestonepkg

import "fmt"

// Index is the monotonically increasing index of a milestone.
type Index uint32

func (i Index) String() string {
	return fmt.Sprintf("%d", uint32(i))
}

// IndexComparator is a less-than comparator usable with sort.Slice.
func IndexComparator(a, b Index) bool {
	return a < b
}
