// Package tipselect implements Component I: tip scoring, the
// insertion/retention policy for the non-lazy tip set, and random
// sampling selection, per spec.md §4.I.
package tipselect

import "github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"

// Score classifies a candidate tip's depth against the latest solid
// milestone index.
type Score int

const (
	// NonLazy tips are eligible for selection as parents of new messages.
	NonLazy Score = iota
	// SemiLazy tips are too deep to select but not yet below max depth.
	SemiLazy
	// Lazy tips are too deep to ever be selected again.
	Lazy
)

func (s Score) String() string {
	switch s {
	case NonLazy:
		return "NonLazy"
	case SemiLazy:
		return "SemiLazy"
	case Lazy:
		return "Lazy"
	default:
		return "Unknown"
	}
}

const (
	// ytrsiDelta bounds how far behind a tip's youngest root-snapshot
	// index may trail lsmi before the tip is lazy.
	ytrsiDelta = 8
	// belowMaxDepth bounds how far behind a tip's oldest root-snapshot
	// index may trail lsmi before the tip is unconditionally lazy.
	belowMaxDepth = 15
	// otrsiDelta is the looser OTRSI bound past which a tip within
	// belowMaxDepth is only semi-lazy, not non-lazy.
	otrsiDelta = 13
)

// score computes a tip's lazy/semi-lazy/non-lazy classification from the
// current latest solid milestone index and the tip's own OTRSI/YTRSI, per
// the table in §4.I.
func score(lsmi, otrsi, ytrsi milestonepkg.Index) Score {
	if delta(lsmi, ytrsi) > ytrsiDelta {
		return Lazy
	}

	if delta(lsmi, otrsi) > belowMaxDepth {
		return Lazy
	}

	if delta(lsmi, otrsi) > otrsiDelta {
		return SemiLazy
	}

	return NonLazy
}

// delta computes lsmi-x floored at 0, since a tip may legitimately have
// an OTRSI/YTRSI at or above lsmi (e.g. it roots at the latest milestone
// itself), which must never be treated as a negative depth.
func delta(lsmi, x milestonepkg.Index) milestonepkg.Index {
	if x >= lsmi {
		return 0
	}

	return lsmi - x
}
