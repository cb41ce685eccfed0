package request

import (
	"time"

	"github.com/iotaledger/hive.go/core/logger"
)

// Scheduler drives both requesters' retry loops on a shared ticker,
// matching original_source's requester/message.rs timeouts interval
// selected alongside the inbound event stream in one select loop.
type Scheduler struct {
	*logger.WrappedLogger

	messages      *MessageRequester
	milestones    *MilestoneRequester
	retryInterval time.Duration
}

// NewScheduler creates a Scheduler ticking both requesters' retry loops
// every retryInterval.
func NewScheduler(messages *MessageRequester, milestones *MilestoneRequester, retryInterval time.Duration, log *logger.Logger) *Scheduler {
	s := &Scheduler{
		messages:      messages,
		milestones:    milestones,
		retryInterval: retryInterval,
	}
	s.WrappedLogger = logger.NewWrappedLogger(log)

	return s
}

// Run blocks, retrying stale requests every retryInterval until shutdown
// is closed. Per §5, the worker suspends only at this select's channel
// boundary and holds no lock across the tick.
func (s *Scheduler) Run(shutdown <-chan struct{}) {
	ticker := time.NewTicker(s.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-shutdown:
			s.LogInfof("Stopped")

			return
		case <-ticker.C:
			messagesRetried := s.messages.RetryStale(s.retryInterval)
			milestonesRetried := s.milestones.RetryStale(s.retryInterval)
			if messagesRetried > 0 || milestonesRetried > 0 {
				s.LogDebugf("retried %d messages, %d milestones", messagesRetried, milestonesRetried)
			}
		}
	}
}
