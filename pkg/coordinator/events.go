package coordinator

import (
	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
)

// CheckpointCaller unpacks a checkpoint message index/position/count plus
// the message it produced for IssuedCheckpointMessage subscribers.
func CheckpointCaller(handler interface{}, params ...interface{}) {
	handler.(func(checkpointIndex, entryIndex, entryCount int, messageID hornet.MessageId))(
		params[0].(int), params[1].(int), params[2].(int), params[3].(hornet.MessageId),
	)
}

// MilestoneCaller unpacks a milestone index plus the message ID it was
// sent as for IssuedMilestone subscribers.
func MilestoneCaller(handler interface{}, params ...interface{}) {
	handler.(func(index milestonepkg.Index, messageID hornet.MessageId))(
		params[0].(milestonepkg.Index), params[1].(hornet.MessageId),
	)
}

// QuorumFinishedCaller unpacks a completed quorum check's result for
// QuorumFinished subscribers.
func QuorumFinishedCaller(handler interface{}, params ...interface{}) {
	handler.(func(result *QuorumFinishedResult))(params[0].(*QuorumFinishedResult))
}
