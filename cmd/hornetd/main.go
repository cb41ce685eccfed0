package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/iotaledger/hornet-tangle-core/pkg/config"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
)

// extraFlags holds the flags this binary defines beyond pkg/config's
// protocol-parameter surface: the node's own bind addresses and the local
// coordinator toggle. pkg/config intentionally stops at the protocol
// parameters every peer validates a handshake against; everything a single
// process needs to know about itself to start lives here instead, per
// spec.md §1's REST/CLI/config-loading non-goal -- this file is the
// "collaborator" the spec defers that concern to.
type extraFlags struct {
	bindAddress          string
	restAddress          string
	enableCoordinator    bool
	bootstrap            bool
	startIndex           milestonepkg.Index
	coordinatorStatePath string
	coordinatorPubKeyHex string
	milestoneInterval    time.Duration
	shutdownGracePeriod  time.Duration
}

func main() {
	fs := config.FlagSet()
	fs.String("bind-address", "0.0.0.0:15600", "address this node listens for peer connections on")
	fs.String("rest-address", "0.0.0.0:14265", "address the REST API listens on")
	fs.Bool("coordinator", false, "run a local milestone coordinator against this node")
	fs.Bool("bootstrap", false, "bootstrap the local coordinator's network (first milestone)")
	fs.Uint32("start-index", 1, "the coordinator's starting milestone index when bootstrapping")
	fs.String("coordinator-state", "coordinator.state", "path to the local coordinator's state file")
	fs.Duration("milestone-interval", 10*time.Second, "interval the local coordinator issues milestones at")
	fs.Duration("shutdown-grace-period", 10*time.Second, "time allotted for workers to drain on shutdown")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		log.Fatalf("hornetd: flag parse failed: %s", err)
	}

	opts, err := config.OptionsFromFlags(fs)
	if err != nil {
		log.Fatalf("hornetd: %s", err)
	}
	cfg := config.New(opts...)

	extra, err := extraFromFlags(fs)
	if err != nil {
		log.Fatalf("hornetd: %s", err)
	}

	app, err := buildApp(cfg, extra)
	if err != nil {
		log.Fatalf("hornetd: %s", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("hornetd: %s", err)
	}
	log.Printf("hornetd: listening for peers on %s", extra.bindAddress)

	restServer := &http.Server{
		Addr:    extra.restAddress,
		Handler: newRESTHandler(app),
	}
	go func() {
		if err := restServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("hornetd: rest server: %s", err)
		}
	}()
	log.Printf("hornetd: rest API listening on %s", extra.restAddress)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Printf("hornetd: shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), extra.shutdownGracePeriod)
	defer cancel()

	restServer.Shutdown(ctx)
	app.Shutdown(ctx)

	log.Printf("hornetd: stopped")
}

func extraFromFlags(fs *pflag.FlagSet) (extraFlags, error) {
	bindAddress, err := fs.GetString("bind-address")
	if err != nil {
		return extraFlags{}, err
	}

	restAddress, err := fs.GetString("rest-address")
	if err != nil {
		return extraFlags{}, err
	}

	enableCoordinator, err := fs.GetBool("coordinator")
	if err != nil {
		return extraFlags{}, err
	}

	bootstrap, err := fs.GetBool("bootstrap")
	if err != nil {
		return extraFlags{}, err
	}

	startIndex, err := fs.GetUint32("start-index")
	if err != nil {
		return extraFlags{}, err
	}

	coordinatorStatePath, err := fs.GetString("coordinator-state")
	if err != nil {
		return extraFlags{}, err
	}

	coordinatorPubKeyHex, err := fs.GetString("coordinator-pubkey")
	if err != nil {
		return extraFlags{}, err
	}

	milestoneInterval, err := fs.GetDuration("milestone-interval")
	if err != nil {
		return extraFlags{}, err
	}

	shutdownGracePeriod, err := fs.GetDuration("shutdown-grace-period")
	if err != nil {
		return extraFlags{}, err
	}

	if enableCoordinator && coordinatorPubKeyHex == "" {
		return extraFlags{}, fmt.Errorf("hornetd: -coordinator requires -coordinator-pubkey")
	}

	return extraFlags{
		bindAddress:          bindAddress,
		restAddress:          restAddress,
		enableCoordinator:    enableCoordinator,
		bootstrap:            bootstrap,
		startIndex:           milestonepkg.Index(startIndex),
		coordinatorStatePath: coordinatorStatePath,
		coordinatorPubKeyHex: coordinatorPubKeyHex,
		milestoneInterval:    milestoneInterval,
		shutdownGracePeriod:  shutdownGracePeriod,
	}, nil
}
