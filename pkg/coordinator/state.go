package coordinator

import (
	"time"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
)

// State is the coordinator's persisted bookkeeping, written to the state
// file after every successful issuance so a restarted coordinator resumes
// from where it left off rather than re-bootstrapping the network.
type State struct {
	LatestMilestoneMessageID hornet.MessageId   `json:"latestMilestoneMessageId"`
	LatestMilestoneIndex     milestonepkg.Index `json:"latestMilestoneIndex"`
	LatestMilestoneTime      time.Time          `json:"latestMilestoneTime"`
}
