package tangle

import (
	"github.com/iotaledger/hive.go/core/events"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
)

// Events are the events issued directly by the Tangle store. Components
// further up the pipeline (propagator, milestone solidifier) own their
// own richer events (Solidified, LatestSolidMilestoneChanged); these are
// the ones tied to raw store mutations every other package may want to
// observe without depending on the propagator package.
type Events struct {
	// MessageStored is fired after a new vertex is inserted.
	MessageStored *events.Event
	// MilestoneIndexChanged is fired whenever AddMilestone records a new
	// milestone index -> message id mapping.
	MilestoneIndexChanged *events.Event
}

// MessageIDCaller unpacks a single hornet.MessageId parameter.
func MessageIDCaller(handler interface{}, params ...interface{}) {
	handler.(func(hornet.MessageId))(params[0].(hornet.MessageId))
}

// MilestoneIndexCaller unpacks a single milestonepkg.Index parameter.
func MilestoneIndexCaller(handler interface{}, params ...interface{}) {
	handler.(func(milestonepkg.Index))(params[0].(milestonepkg.Index))
}

func newEvents() *Events {
	return &Events{
		MessageStored:         events.NewEvent(MessageIDCaller),
		MilestoneIndexChanged: events.NewEvent(MilestoneIndexCaller),
	}
}
