package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/iotaledger/hive.go/core/syncutils"

	"github.com/iotaledger/hornet-tangle-core/pkg/errorhandling"
	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
)

var (
	// ErrQuorumMerkleTreeHashMismatch is returned if the quorum encounters a different merkle tree hash than the one calculated locally.
	ErrQuorumMerkleTreeHashMismatch = errors.New("coordinator quorum merkle tree hash mismatch")
	// ErrQuorumGroupNoAnswer is returned if a quorum group did not answer in time.
	ErrQuorumGroupNoAnswer = errors.New("coordinator quorum group did not answer in time")
)

// whiteFlagMethod is the fully-qualified gRPC method sibling coordinator
// replicas expose for cross-checking a milestone's merkle roots before
// it is issued.
const whiteFlagMethod = "/hornettanglecore.coordinator.WhiteFlag/ComputeMerkleRoots"

// QuorumClientConfig configures a single quorum group member. Target is
// a gRPC dial target ("host:port"), replacing the teacher's BaseURL/
// Username/Password HTTP basic-auth fields now that the quorum talks
// gRPC directly to a sibling coordinator instead of a node's HTTP API.
type QuorumClientConfig struct {
	Alias  string
	Target string
}

// QuorumClientStatistic reports the outcome of the most recent quorum
// call to a single group member.
type QuorumClientStatistic struct {
	Group               string
	Alias               string
	Target              string
	ResponseTimeSeconds float64
	Error               error
}

// QuorumFinishedResult is fired via Events.QuorumFinished once a quorum
// check completes.
type QuorumFinishedResult struct {
	Duration time.Duration
	Err      error
}

// merkleRootsRequest/merkleRootsResponse are the quorum's wire shapes,
// marshaled with the package's custom "json" grpc codec (see codec.go).
type merkleRootsRequest struct {
	Index               milestonepkg.Index
	Timestamp           uint32
	Parents             hornet.MessageIDs
	PreviousMilestoneID hornet.MessageId
}

type merkleRootsResponse struct {
	InclusionMerkleRoot milestonepkg.MerkleProof
	AppliedMerkleRoot   milestonepkg.MerkleProof
}

type quorumGroupEntry struct {
	conn  *grpc.ClientConn
	stats *QuorumClientStatistic
}

type quorum struct {
	Groups  map[string][]*quorumGroupEntry
	Timeout time.Duration

	quorumStatsLock syncutils.RWMutex
}

// newQuorum dials every configured quorum group member over gRPC.
// Dialing is lazy/non-blocking (grpc.Dial does not block on connect), so
// an unreachable sibling only surfaces as an error the first time it is
// actually invoked.
func newQuorum(quorumGroups map[string][]*QuorumClientConfig, timeout time.Duration) *quorum {
	if len(quorumGroups) == 0 {
		panic("coordinator quorum groups not found")
	}

	groups := make(map[string][]*quorumGroupEntry)
	for groupName, groupNodes := range quorumGroups {
		if len(groupNodes) == 0 {
			panic(fmt.Sprintf("invalid coo quorum group: %s, no nodes given", groupName))
		}

		entries := make([]*quorumGroupEntry, len(groupNodes))
		for i, client := range groupNodes {
			conn, err := grpc.Dial(
				client.Target,
				grpc.WithTransportCredentials(insecure.NewCredentials()),
				grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
			)
			if err != nil {
				panic(fmt.Sprintf("coo quorum group %s: dialing %s: %s", groupName, client.Target, err))
			}

			entries[i] = &quorumGroupEntry{
				conn:  conn,
				stats: &QuorumClientStatistic{Group: groupName, Alias: client.Alias, Target: client.Target},
			}
		}
		groups[groupName] = entries
	}

	return &quorum{Groups: groups, Timeout: timeout}
}

// checkMerkleTreeHashQuorumGroup fans the request out to every member of
// one quorum group in parallel and reports success once at least one
// member agrees with cooMerkleRoots, matching the teacher's "any one
// group member confirming is enough" semantics.
func (q *quorum) checkMerkleTreeHashQuorumGroup(
	cooMerkleRoots *MilestoneMerkleRoots,
	groupName string,
	entries []*quorumGroupEntry,
	wg *sync.WaitGroup,
	quorumDoneChan chan struct{},
	quorumErrChan chan error,
	index milestonepkg.Index,
	timestamp uint32,
	parents hornet.MessageIDs,
	previousMilestoneID hornet.MessageId,
	onGroupEntryError func(groupName string, entry *quorumGroupEntry, err error),
) {
	defer wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), q.Timeout)
	defer cancel()

	req := &merkleRootsRequest{
		Index:               index,
		Timestamp:           timestamp,
		Parents:             parents,
		PreviousMilestoneID: previousMilestoneID,
	}

	resultChan := make(chan *merkleRootsResponse, len(entries))
	errChan := make(chan error, len(entries))

	for _, entry := range entries {
		go func(entry *quorumGroupEntry) {
			start := time.Now()

			resp := &merkleRootsResponse{}
			err := entry.conn.Invoke(ctx, whiteFlagMethod, req, resp)

			q.quorumStatsLock.Lock()
			entry.stats.ResponseTimeSeconds = time.Since(start).Seconds()
			entry.stats.Error = err
			q.quorumStatsLock.Unlock()

			if err != nil {
				if onGroupEntryError != nil {
					onGroupEntryError(groupName, entry, err)
				}
				errChan <- err

				return
			}
			resultChan <- resp
		}(entry)
	}

	validResults := 0
	for i := 0; i < len(entries); i++ {
		select {
		case <-quorumDoneChan:
			return
		case <-errChan:
			continue
		case resp := <-resultChan:
			if resp.AppliedMerkleRoot != cooMerkleRoots.AppliedMerkleRoot || resp.InclusionMerkleRoot != cooMerkleRoots.InclusionMerkleRoot {
				select {
				case quorumErrChan <- errorhandling.CriticalError(ErrQuorumMerkleTreeHashMismatch):
				default:
				}

				return
			}
			validResults++
		case <-ctx.Done():
			if validResults == 0 {
				select {
				case quorumErrChan <- errorhandling.SoftError(ErrQuorumGroupNoAnswer):
				default:
				}
			}

			return
		}
	}

	if validResults == 0 {
		select {
		case quorumErrChan <- errorhandling.SoftError(ErrQuorumGroupNoAnswer):
		default:
		}
	}
}

// checkMerkleTreeHash fans the request out to every configured quorum
// group in parallel, and returns once every group has either confirmed
// cooMerkleRoots or the first group error is observed.
func (q *quorum) checkMerkleTreeHash(
	cooMerkleRoots *MilestoneMerkleRoots,
	index milestonepkg.Index,
	timestamp uint32,
	parents hornet.MessageIDs,
	previousMilestoneID hornet.MessageId,
	onGroupEntryError func(groupName string, entry *quorumGroupEntry, err error),
) error {
	var wg sync.WaitGroup
	quorumDoneChan := make(chan struct{})
	quorumErrChan := make(chan error, len(q.Groups))

	for groupName, entries := range q.Groups {
		wg.Add(1)
		go q.checkMerkleTreeHashQuorumGroup(cooMerkleRoots, groupName, entries, &wg, quorumDoneChan, quorumErrChan, index, timestamp, parents, previousMilestoneID, onGroupEntryError)
	}

	allDoneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDoneChan)
	}()

	select {
	case err := <-quorumErrChan:
		close(quorumDoneChan)

		return err
	case <-allDoneChan:
		close(quorumDoneChan)

		return nil
	}
}

// quorumStatsSnapshot returns a copy of the most recent per-member
// statistics, safe to read concurrently with in-flight quorum checks.
func (q *quorum) quorumStatsSnapshot() []QuorumClientStatistic {
	q.quorumStatsLock.RLock()
	defer q.quorumStatsLock.RUnlock()

	var stats []QuorumClientStatistic
	for _, entries := range q.Groups {
		for _, entry := range entries {
			stats = append(stats, *entry.stats)
		}
	}

	return stats
}
