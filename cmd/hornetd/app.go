// Command hornetd runs a single Tangle node: the in-memory DAG store, wire
// gossip, peer state machine, the hasher/processor pipeline, solidity
// propagation, milestone validation and solidification, the request layer,
// tip selection, and (optionally) a local milestone coordinator for
// devnet/integration use, wired together with go.uber.org/dig the same way
// inx-coordinator's surrounding inx-app sidecar wires its own worker graph --
// the teacher ships dig in its go.mod but never imports it directly, since
// that wiring lives one layer up, in the binary that embeds it.
package main

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/core/events"
	"github.com/iotaledger/hive.go/core/logger"

	"github.com/iotaledger/hornet-tangle-core/pkg/config"
	"github.com/iotaledger/hornet-tangle-core/pkg/coordinator"
	"github.com/iotaledger/hornet-tangle-core/pkg/crypto"
	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/metrics"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestone"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/peer"
	"github.com/iotaledger/hornet-tangle-core/pkg/pipeline"
	"github.com/iotaledger/hornet-tangle-core/pkg/propagator"
	"github.com/iotaledger/hornet-tangle-core/pkg/request"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
	"github.com/iotaledger/hornet-tangle-core/pkg/ternary"
	"github.com/iotaledger/hornet-tangle-core/pkg/tipselect"
	"github.com/iotaledger/hornet-tangle-core/pkg/wire"
)

// solidifierTick bounds how often the solidifier loop retries advancing the
// latest solid milestone index. Advance is cheap (one mutex, a handful of
// map reads) when there is nothing to do, so a short tick is harmless. The
// tick is the loop's only trigger; no event wakes it early.
const solidifierTick = 200 * time.Millisecond

// App holds every long-lived worker a running node owns, assembled once at
// startup by the dig container in buildApp.
type App struct {
	cfg  *config.NodeConfig
	bind string

	tangle     *tangle.Tangle
	metricsReg *metrics.Metrics
	peers      *peer.Manager
	msgReq     *request.MessageRequester
	msReq      *request.MilestoneRequester
	scheduler  *request.Scheduler
	prop       *propagator.Propagator
	validator  *milestone.Validator
	solidifier *milestone.Solidifier
	pipe       *pipeline.Pipeline
	tips       *tipselect.Pool
	coo        *coordinator.Coordinator

	log *logger.Logger

	listener net.Listener

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	shutdownScheduler  chan struct{}
	shutdownSolidifier chan struct{}
	shutdownPipeline   chan struct{}

	wg sync.WaitGroup
}

// buildApp wires every component via dig.Provide/dig.Invoke, the container
// resolving each constructor's dependencies from the others already
// provided. cfg and extra (this binary's own flags beyond pkg/config's
// protocol surface) are supplied directly rather than through the
// container, since they are values already fully formed by the time main
// parses them.
func buildApp(cfg *config.NodeConfig, extra extraFlags) (*App, error) {
	container := dig.New()

	providers := []interface{}{
		func() *logger.Logger { return nil },
		func() *config.NodeConfig { return cfg },
		metrics.New,
		func() crypto.Sponge { return crypto.Blake2bSponge{} },
		func() crypto.Verifier { return crypto.InsecureTestVerifier{} },
		tangle.New,
		peer.NewManager,
		func(tng *tangle.Tangle, peers *peer.Manager, m *metrics.Metrics, log *logger.Logger) *request.MessageRequester {
			return request.NewMessageRequester(tng, peers, m, log)
		},
		func(tng *tangle.Tangle, peers *peer.Manager, m *metrics.Metrics, log *logger.Logger) *request.MilestoneRequester {
			return request.NewMilestoneRequester(tng, peers, m, log)
		},
		func(msgR *request.MessageRequester, msR *request.MilestoneRequester, log *logger.Logger) *request.Scheduler {
			return request.NewScheduler(msgR, msR, cfg.RetryInterval(), log)
		},
		func(tng *tangle.Tangle, log *logger.Logger) *propagator.Propagator {
			return propagator.New(tng, log)
		},
		func(tng *tangle.Tangle, sponge crypto.Sponge, verifier crypto.Verifier, m *metrics.Metrics, log *logger.Logger) *milestone.Validator {
			return milestone.NewValidator(tng, validatorConfig(cfg, extra), sponge, verifier, m, log)
		},
		func(tng *tangle.Tangle, msgR *request.MessageRequester, msR *request.MilestoneRequester, peers *peer.Manager, log *logger.Logger) *milestone.Solidifier {
			return milestone.NewSolidifier(tng, msgR, msR, peers, log)
		},
		func(
			tng *tangle.Tangle,
			sponge crypto.Sponge,
			prop *propagator.Propagator,
			msgR *request.MessageRequester,
			validator *milestone.Validator,
			peers *peer.Manager,
			m *metrics.Metrics,
			log *logger.Logger,
		) *pipeline.Pipeline {
			return pipeline.New(tng, sponge, pipeline.Config{
				MWM:                cfg.MWM(),
				SnapshotTimestamp:  cfg.SnapshotTimestamp(),
				AllowedDrift:       cfg.AllowedTimestampWindow(),
				CoordinatorAddress: ternary.Trytes(cfg.CoordinatorAddress()),
			}, prop, msgR, validator, peers, m, log)
		},
		func(tng *tangle.Tangle, log *logger.Logger) *tipselect.Pool {
			return tipselect.New(tng, log)
		},
	}

	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return nil, errors.Wrap(err, "hornetd: dig provide failed")
		}
	}

	app := &App{
		cfg:                cfg,
		bind:               extra.bindAddress,
		conns:              make(map[net.Conn]struct{}),
		shutdownScheduler:  make(chan struct{}),
		shutdownSolidifier: make(chan struct{}),
		shutdownPipeline:   make(chan struct{}),
	}

	err := container.Invoke(func(
		tng *tangle.Tangle,
		m *metrics.Metrics,
		peers *peer.Manager,
		msgR *request.MessageRequester,
		msR *request.MilestoneRequester,
		scheduler *request.Scheduler,
		prop *propagator.Propagator,
		validator *milestone.Validator,
		solidifier *milestone.Solidifier,
		pipe *pipeline.Pipeline,
		tips *tipselect.Pool,
		sponge crypto.Sponge,
		log *logger.Logger,
	) error {
		app.tangle = tng
		app.metricsReg = m
		app.peers = peers
		app.msgReq = msgR
		app.msReq = msR
		app.scheduler = scheduler
		app.prop = prop
		app.validator = validator
		app.solidifier = solidifier
		app.pipe = pipe
		app.tips = tips
		app.log = log

		if extra.enableCoordinator {
			coo, err := buildCoordinator(app, sponge, extra)
			if err != nil {
				return err
			}
			app.coo = coo
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "hornetd: dig invoke failed")
	}

	app.wireEvents()

	return app, nil
}

func validatorConfig(cfg *config.NodeConfig, extra extraFlags) milestone.ValidatorConfig {
	keys := map[string]struct{}{extra.coordinatorPubKeyHex: {}}

	return milestone.ValidatorConfig{
		Threshold:          1,
		PublicKeys:         keys,
		AllowedFutureDrift: cfg.AllowedTimestampWindow(),
	}
}

// buildCoordinator wires a local milestone coordinator, per SPEC_FULL's
// supplemented local/devnet coordinator feature. Its SendMessageFunc is the
// closure that makes this node both the coordinator's host and, like any
// other peer, a consumer of the milestone message it issues: insert into
// the tangle, propagate solidity, validate the milestone, and gossip it.
func buildCoordinator(app *App, sponge crypto.Sponge, extra extraFlags) (*coordinator.Coordinator, error) {
	pubKey := app.cfg.CoordinatorPubKey()
	signer := crypto.InsecureTestSigner{KeyHandle: pubKey[:]}
	signerProvider := singleSignerProvider{signer: signer}

	sendMessage := func(message *tangle.Message) (hornet.MessageId, error) {
		messageID := ternary.HashToMessageID(ternary.Hash(sponge.Sum(message.RawBytes)))

		if !app.tangle.Insert(messageID, message) {
			return messageID, nil
		}

		app.prop.Enqueue(messageID)

		if ms, ok := message.Payload.(*tangle.MilestonePayload); ok {
			if err := app.validator.Validate(messageID, ms.Milestone, time.Now()); err != nil {
				return messageID, err
			}
		}

		frame := encodeMilestoneFrame(message)
		for _, p := range app.peers.Peers() {
			p.EnqueueBroadcast(frame)
		}

		return messageID, nil
	}

	coo, err := coordinator.New(
		coordinator.NewLocalMerkleRootFunc(app.tangle, sponge),
		app.tangle.IsSynced,
		sponge,
		signerProvider,
		sendMessage,
		coordinator.WithStateFilePath(extra.coordinatorStatePath),
		coordinator.WithMilestoneInterval(extra.milestoneInterval),
	)
	if err != nil {
		return nil, err
	}

	latest := &coordinator.LatestMilestoneInfo{
		Index:     app.tangle.GetLatestMilestoneIndex(),
		MessageID: hornet.NullMessageID,
	}
	if err := coo.InitState(extra.bootstrap, extra.startIndex, latest); err != nil {
		return nil, errors.Wrap(err, "hornetd: coordinator init state failed")
	}

	return coo, nil
}

// singleSignerProvider always returns the same test signer regardless of
// milestone index, standing in for the indexed key-range rotation a
// production WOTS key manager would perform -- out of scope per the opaque
// crypto boundary.
type singleSignerProvider struct {
	signer crypto.Signer
}

func (s singleSignerProvider) SignerForIndex(uint32) (crypto.Signer, error) {
	return s.signer, nil
}

// encodeMilestoneFrame reframes a locally-issued milestone message's raw
// bytes as an ordinary gossip Transaction frame: a milestone message has no
// separate wire message type of its own, since in the legacy protocol it is
// simply a transaction whose address matches the coordinator's, per §4.D.
func encodeMilestoneFrame(message *tangle.Message) []byte {
	compressed := wire.CompressTransactionBytes(message.RawBytes)

	return wire.EncodeTransaction(wire.Transaction{CompressedBytes: compressed})
}

// wireEvents hooks the propagator's and solidifier's events into the tip
// pool, the same Attach(events.NewClosure(...))
// pattern pkg/milestone's own tests exercise against these event types.
func (app *App) wireEvents() {
	app.prop.Events.MessageSolid.Attach(events.NewClosure(func(messageID hornet.MessageId) {
		vertex, ok := app.tangle.Get(messageID)
		if !ok {
			return
		}

		app.tips.Insert(messageID, vertex.Message.Parent1, vertex.Message.Parent2)
	}))

	app.solidifier.Events.LatestSolidMilestoneChanged.Attach(events.NewClosure(func(milestonepkg.Index) {
		app.tips.Rescore()
	}))
}

// Run starts every worker, opens the listener, and dials the configured
// static peers. It returns once the listener is accepting connections; the
// workers themselves keep running in background goroutines until Shutdown.
func (app *App) Run() error {
	app.pipe.Start(app.shutdownPipeline)
	app.prop.Start()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.scheduler.Run(app.shutdownScheduler)
	}()

	app.wg.Add(1)
	go app.runSolidifierLoop()

	ln, err := net.Listen("tcp", app.bind)
	if err != nil {
		return errors.Wrap(err, "hornetd: listen failed")
	}
	app.listener = ln

	app.wg.Add(1)
	go app.acceptLoop()

	for _, addr := range app.cfg.Peers() {
		app.wg.Add(1)
		go app.dial(addr)
	}

	if app.coo != nil {
		app.wg.Add(1)
		go app.runCoordinatorLoop()
	}

	return nil
}

func (app *App) runSolidifierLoop() {
	defer app.wg.Done()

	ticker := time.NewTicker(solidifierTick)
	defer ticker.Stop()

	drain := func() {
		for app.solidifier.Advance(time.Now()) {
		}
	}

	for {
		select {
		case <-app.shutdownSolidifier:
			return
		case <-ticker.C:
			drain()
		}
	}
}

func (app *App) runCoordinatorLoop() {
	defer app.wg.Done()

	if _, err := app.coo.Bootstrap(); err != nil {
		app.logf("coordinator bootstrap failed: %s", err)
	}

	ticker := time.NewTicker(app.coo.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-app.shutdownSolidifier:
			return
		case <-ticker.C:
			p1, p2, ok := app.tips.Select()
			if !ok {
				continue
			}

			parents := hornet.MessageIDs{p1}
			if p2 != p1 {
				parents = append(parents, p2)
			}

			if _, err := app.coo.IssueMilestone(parents); err != nil {
				app.logf("milestone issuance failed: %s", err)
			}
		}
	}
}

func (app *App) acceptLoop() {
	defer app.wg.Done()

	for {
		conn, err := app.listener.Accept()
		if err != nil {
			return
		}

		app.trackConn(conn)

		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			defer app.untrackConn(conn)

			localPort, sourcePort := connPorts(conn)
			p := peer.NewPeer(conn.RemoteAddr().String())
			peer.RunReader(conn, p, app.peers, app.cfg, app.handlers(), localPort, sourcePort, app.log)
		}()
	}
}

func (app *App) dial(addr string) {
	defer app.wg.Done()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		app.logf("dial %s failed: %s", addr, err)

		return
	}

	app.trackConn(conn)
	defer app.untrackConn(conn)

	localPort, sourcePort := connPorts(conn)
	p := peer.NewPeer(addr)
	peer.RunReader(conn, p, app.peers, app.cfg, app.handlers(), localPort, sourcePort, app.log)
}

func (app *App) handlers() peer.Handlers {
	source := peer.TangleSource{Tangle: app.tangle}

	return peer.Handlers{
		Transactions: app.pipe,
		Messages:     source,
		Milestones:   source,
	}
}

func (app *App) trackConn(conn net.Conn) {
	app.connsMu.Lock()
	defer app.connsMu.Unlock()

	app.conns[conn] = struct{}{}
}

func (app *App) untrackConn(conn net.Conn) {
	app.connsMu.Lock()
	defer app.connsMu.Unlock()

	delete(app.conns, conn)
}

// Shutdown tears the node down leaf-first: stop accepting and force-close
// every connection first, then the hasher/processor pipeline, then the
// propagator, then the requesters' retry scheduler, then the solidifier
// loop. The tangle store itself owns no worker and needs no explicit stop.
func (app *App) Shutdown(ctx context.Context) {
	if app.listener != nil {
		app.listener.Close()
	}

	app.connsMu.Lock()
	for conn := range app.conns {
		conn.Close()
	}
	app.connsMu.Unlock()

	app.pipe.Stop()
	close(app.shutdownPipeline)

	app.prop.Stop()

	close(app.shutdownScheduler)
	close(app.shutdownSolidifier)

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		app.logf("shutdown timed out waiting for workers")
	}
}

func (app *App) logf(format string, args ...interface{}) {
	if app.log != nil {
		app.log.Warnf(format, args...)
	}
}

// connPorts extracts the local and remote TCP ports of conn for handshake
// construction/validation; a non-TCP conn (never produced by net.Listen
// "tcp"/net.Dial "tcp") yields zero ports.
func connPorts(conn net.Conn) (localPort, sourcePort uint16) {
	if addr, ok := conn.LocalAddr().(*net.TCPAddr); ok {
		localPort = uint16(addr.Port)
	}
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		sourcePort = uint16(addr.Port)
	}

	return localPort, sourcePort
}
