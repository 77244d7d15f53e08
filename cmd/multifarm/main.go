// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/multifarmlabs/multifarm/api"
	"github.com/multifarmlabs/multifarm/auth"
	"github.com/multifarmlabs/multifarm/eventdb"
	"github.com/multifarmlabs/multifarm/farm"
	"github.com/multifarmlabs/multifarm/farm/storage"
	"github.com/multifarmlabs/multifarm/health"
	"github.com/multifarmlabs/multifarm/lvldb"
	"github.com/multifarmlabs/multifarm/metrics"
	"github.com/multifarmlabs/multifarm/multifarm"
	"github.com/multifarmlabs/multifarm/state"
	"github.com/multifarmlabs/multifarm/token"
)

var (
	version   string
	gitCommit string
	logger    = log.New("pkg", "main")
)

func fullVersion() string {
	if gitCommit == "" {
		return version + "-dev"
	}
	return fmt.Sprintf("%s-%s", version, gitCommit)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".multifarm"
	}
	return filepath.Join(home, ".multifarm")
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "multifarm",
		Usage:     "multi-asset staking reward-distribution engine",
		Copyright: "2026 The multifarm developers",
		Flags: []cli.Flag{
			dataDirFlag,
			configFlag,
			apiAddrFlag,
			apiCorsFlag,
			apiEventsLimitFlag,
			enableMetricsFlag,
			verbosityFlag,
		},
		Action: defaultAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogger(ctx *cli.Context) {
	level := log.FromLegacyLevel(ctx.Int(verbosityFlag.Name))
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, level, false)))
}

// bookAddressFor derives the token book's storage address from the engine
// address so multiple engines can share one database. Addresses are derived
// with keccak like contract addresses; storage slots use blake2b.
func bookAddressFor(engine multifarm.Address) multifarm.Address {
	return multifarm.BytesToAddress(multifarm.Keccak256([]byte("token-book"), engine.Bytes()).Bytes())
}

var genesisDoneKey = multifarm.BytesToBytes32([]byte("genesis-done"))

func defaultAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	initLogger(ctx)
	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}

	cfg, err := loadConfig(ctx.String(configFlag.Name))
	if err != nil {
		return err
	}
	engineAddr, err := multifarm.ParseAddress(cfg.Engine)
	if err != nil {
		return err
	}

	dataDir := ctx.String(dataDirFlag.Name)
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return err
	}

	mainDB, err := lvldb.New(filepath.Join(dataDir, "main.db"), lvldb.Options{})
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing main database..."); mainDB.Close() }()

	eventDB, err := eventdb.New(filepath.Join(dataDir, "events.db"))
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing event database..."); eventDB.Close() }()

	st := state.New(mainDB)
	book := token.NewBook(storage.NewContext(bookAddressFor(*engineAddr), st))
	allow := auth.NewAllowlist(storage.NewContext(*engineAddr, st))
	engine := farm.New(*engineAddr, st, allow, book)

	healthTracker := health.New(func() error {
		_, err := mainDB.Has(genesisDoneKey.Bytes())
		return err
	})

	// Listeners run with the engine lock held, so commits are counted here
	// instead of querying the engine version back.
	var commits atomic.Uint64
	engine.Subscribe(func(e farm.Event) {
		healthTracker.CommitObserved(commits.Add(1))
		if err := eventDB.Log(e); err != nil {
			logger.Warn("failed to log event", "kind", e.Kind, "err", err)
		}
	})

	genesisDone := storage.NewCell(storage.NewContext(*engineAddr, st), genesisDoneKey)
	done, err := genesisDone.Get()
	if err != nil {
		return err
	}
	if done.IsZero() {
		if err := applyMints(cfg, book); err != nil {
			return err
		}
		genesisDone.Set(uint256.NewInt(1))
		if err := st.Commit(); err != nil {
			return err
		}
	}
	if err := applyConfig(cfg, engine, allow, book); err != nil {
		return err
	}
	logger.Info("engine ready", "address", engineAddr, "sources", len(cfg.Sources))

	handler := api.New(engine, eventDB, healthTracker, api.Options{
		AllowedOrigins: ctx.String(apiCorsFlag.Name),
		EventsLimit:    ctx.Uint64(apiEventsLimitFlag.Name),
		EnableMetrics:  ctx.Bool(enableMetricsFlag.Name),
	})

	listener, err := net.Listen("tcp", ctx.String(apiAddrFlag.Name))
	if err != nil {
		return err
	}
	server := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var group errgroup.Group
	group.Go(func() error {
		logger.Info("API server started", "addr", listener.Addr())
		if err := server.Serve(listener); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-runCtx.Done()
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
