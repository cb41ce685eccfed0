// Package milestone implements Component F: milestone signature
// validation and the solidifier that advances the latest solid
// milestone index, per spec.md §4.F.
package milestone

import (
	"github.com/iotaledger/hive.go/core/events"

	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
)

// Events are fired by the validator and solidifier.
type Events struct {
	// MilestoneValidated fires once a milestone's signatures check out
	// and its vertex has been flagged.
	MilestoneValidated *events.Event
	// LatestSolidMilestoneChanged fires once the solidifier bumps the
	// latest solid milestone index to a new target.
	LatestSolidMilestoneChanged *events.Event
}

func newEvents() *Events {
	return &Events{
		MilestoneValidated:          events.NewEvent(tangle.MilestoneIndexCaller),
		LatestSolidMilestoneChanged: events.NewEvent(tangle.MilestoneIndexCaller),
	}
}
