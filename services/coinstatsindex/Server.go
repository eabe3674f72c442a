package coinstatsindex

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bsv-blockchain/coinstatsindex/errors"
	"github.com/bsv-blockchain/coinstatsindex/model"
	"github.com/bsv-blockchain/coinstatsindex/services/blockchain"
	"github.com/bsv-blockchain/coinstatsindex/settings"
	"github.com/bsv-blockchain/coinstatsindex/stores/kv"
	"github.com/bsv-blockchain/coinstatsindex/ulogger"
	"github.com/bsv-blockchain/coinstatsindex/util/health"
	"github.com/bsv-blockchain/coinstatsindex/util/retry"
	"github.com/ordishs/gocore"
)

// State is the lifecycle state of the indexer service.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateSyncing
	StateIdle
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateReady:
		return "READY"
	case StateSyncing:
		return "SYNCING"
	case StateIdle:
		return "IDLE"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

const (
	retryCount   = 5
	retryBackoff = 500 * time.Millisecond
)

// Server drives the index: it streams new blocks from the block source,
// rewinds on reorgs, and serialises all writes. The index core never
// retries; transient store and source failures are retried here.
type Server struct {
	// logger provides logging functionality
	logger ulogger.Logger

	// settings contains configuration settings
	settings *settings.Settings

	// store is the KV store the index persists through
	store kv.Store

	// chain provides blocks, undo data and index navigation
	chain blockchain.ClientI

	// index is the single-writer indexer core
	index *Index

	// stats tracks operational statistics
	stats *gocore.Stat

	// state is the lifecycle state, guarded by mu
	state State

	// quarantined is set on terminal errors; the index must be wiped and
	// re-synced by the operator
	quarantined bool

	// running indicates a sync pass is in progress
	running bool

	// mu guards state, quarantined and running
	mu sync.Mutex

	// triggerCh is used to trigger sync operations
	triggerCh chan string
}

// New creates the indexer service with the provided collaborators.
func New(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, store kv.Store, chain blockchain.ClientI) (*Server, error) {
	index, err := NewIndex(logger, tSettings, store, chain)
	if err != nil {
		return nil, err
	}

	return &Server{
		logger:    logger,
		settings:  tSettings,
		store:     store,
		chain:     chain,
		index:     index,
		stats:     gocore.NewStat("coinstatsindex"),
		state:     StateUninitialized,
		triggerCh: make(chan string, 5),
	}, nil
}

// Index exposes the core for direct lookups.
func (s *Server) Index() *Index {
	return s.index
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Server) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
}

// Health checks the health of the service and its dependencies. Liveness
// fails only when the service is quarantined; readiness also requires the
// store and block source to respond.
func (s *Server) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	s.mu.Lock()
	quarantined := s.quarantined
	s.mu.Unlock()

	if quarantined {
		return http.StatusServiceUnavailable, "index quarantined; wipe and re-sync required", nil
	}

	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	checks := make([]health.Check, 0, 2)

	if s.store != nil {
		checks = append(checks, health.Check{Name: "Store", Check: s.store.Health})
	}

	if s.chain != nil {
		checks = append(checks, health.Check{Name: "BlockchainClient", Check: s.chain.Health})
	}

	return health.CheckAll(ctx, checkLiveness, checks)
}

// Init loads the persisted index state. A terminal error quarantines the
// service.
func (s *Server) Init(ctx context.Context) error {
	if err := s.index.Init(ctx); err != nil {
		if errors.IsTerminalError(err) {
			s.quarantine(err)
		}

		return err
	}

	s.setState(StateReady)

	return nil
}

// Start runs the sync loop until ctx is cancelled. The readyCh is closed
// once the subscription is established.
func (s *Server) Start(ctx context.Context, readyCh chan<- struct{}) error {
	if s.State() != StateReady {
		close(readyCh)
		return errors.NewServiceNotStartedError("service is %s, call Init first", s.State())
	}

	ch, err := s.chain.Subscribe(ctx)
	if err != nil {
		close(readyCh)
		return err
	}

	close(readyCh)

	go func() {
		// Kick off the first sync pass
		s.triggerCh <- "startup"
	}()

	for {
		select {
		case <-ctx.Done():
			s.setState(StateStopped)
			return ctx.Err()

		case <-ch:
			if err := s.trigger(ctx, "blockchain"); err != nil {
				return err
			}

		case source := <-s.triggerCh:
			if err := s.trigger(ctx, source); err != nil {
				return err
			}

		case <-time.After(time.Minute):
			if err := s.trigger(ctx, "timer"); err != nil {
				return err
			}
		}
	}
}

// Stop interrupts any running rewind and marks the service stopped.
func (s *Server) Stop(_ context.Context) error {
	s.index.Interrupt()
	s.setState(StateStopped)

	return nil
}

// trigger runs one sync pass, ensuring only one runs at a time.
func (s *Server) trigger(ctx context.Context, source string) error {
	s.mu.Lock()

	if s.running || s.quarantined || s.state == StateStopped {
		s.mu.Unlock()
		return nil
	}

	s.running = true
	s.state = StateSyncing
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false

		if s.state == StateSyncing {
			s.state = StateIdle
		}
		s.mu.Unlock()
	}()

	s.logger.Debugf("trigger from %s to sync to tip", source)

	if err := s.syncToTip(ctx); err != nil {
		if errors.IsTerminalError(err) {
			s.quarantine(err)
			return err
		}

		s.logger.Warnf("sync pass failed, will retry: %v", err)
	}

	return nil
}

func (s *Server) quarantine(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quarantined = true
	s.state = StateStopped

	s.logger.Errorf("index quarantined, operator must wipe and re-sync: %v", err)
}

// syncToTip applies blocks until the index matches the source's best tip,
// rewinding first when the indexed chain is no longer the active one.
func (s *Server) syncToTip(ctx context.Context) error {
	start := gocore.CurrentTime()
	defer s.stats.NewStat("syncToTip").AddTime(start)

	tip, err := retry.Retry(ctx, s.logger, func() (*model.BlockIndex, error) {
		return s.chain.GetBestBlockIndex(ctx)
	}, retryCount, retryBackoff, "get best block")
	if err != nil {
		return err
	}

	if err = s.maybeRewind(ctx, tip); err != nil {
		return err
	}

	applied := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		bestHeight, haveBest := s.index.BestHeight()

		nextHeight := uint32(0)
		if haveBest {
			if bestHeight >= tip.Height {
				return nil
			}

			nextHeight = bestHeight + 1
		}

		if s.settings.CoinStats.BlockBatchSize > 0 && applied >= s.settings.CoinStats.BlockBatchSize {
			// Yield between batches so stop and reorg signals are picked up
			// during long catch-ups; the next pass continues from here.
			select {
			case s.triggerCh <- "iteration":
			default:
			}

			return nil
		}

		if err = s.applyHeight(ctx, nextHeight); err != nil {
			return err
		}

		applied++
	}
}

func (s *Server) applyHeight(ctx context.Context, height uint32) error {
	block, err := retry.Retry(ctx, s.logger, func() (*model.Block, error) {
		return s.chain.GetBlockByHeight(ctx, height)
	}, retryCount, retryBackoff, "get block")
	if err != nil {
		return err
	}

	var undo *model.BlockUndo

	if height > 0 {
		undo, err = retry.Retry(ctx, s.logger, func() (*model.BlockUndo, error) {
			return s.chain.GetBlockUndo(ctx, block.Hash())
		}, retryCount, retryBackoff, "get block undo")
		if err != nil {
			return err
		}
	}

	err = s.index.ApplyBlock(ctx, block, undo)
	if err != nil && errors.IsRetryableError(err) {
		_, err = retry.Retry(ctx, s.logger, func() (struct{}, error) {
			return struct{}{}, s.index.ApplyBlock(ctx, block, undo)
		}, retryCount, retryBackoff, "apply block")
	}

	if err != nil {
		return err
	}

	s.logger.Debugf("applied block %s at height %d", block.Hash(), height)

	return nil
}

// maybeRewind checks whether the indexed best block still lies on the
// active chain and rewinds to the fork point when it does not.
func (s *Server) maybeRewind(ctx context.Context, tip *model.BlockIndex) error {
	bestHeight, haveBest := s.index.BestHeight()
	if !haveBest {
		return nil
	}

	bestHash := s.index.BestHash()

	if bestHeight <= tip.Height {
		ancestor, err := s.chain.Ancestor(ctx, tip, bestHeight)
		if err != nil {
			return err
		}

		if ancestor.Hash.IsEqual(&bestHash) {
			return nil
		}
	}

	current, err := s.chain.GetBlockIndex(ctx, &bestHash)
	if err != nil {
		return err
	}

	forkPoint, err := s.findForkPoint(ctx, current, tip)
	if err != nil {
		return err
	}

	s.logger.Infof("chain reorganisation: rewinding from %s at height %d to %s at height %d", current.Hash, current.Height, forkPoint.Hash, forkPoint.Height)

	return s.index.Rewind(ctx, current, forkPoint)
}

// findForkPoint walks back from the indexed best block until it reaches a
// block that is an ancestor of the new tip.
func (s *Server) findForkPoint(ctx context.Context, current, tip *model.BlockIndex) (*model.BlockIndex, error) {
	for {
		if current.Height <= tip.Height {
			ancestor, err := s.chain.Ancestor(ctx, tip, current.Height)
			if err != nil {
				return nil, err
			}

			if ancestor.Hash.IsEqual(&current.Hash) {
				return current, nil
			}
		}

		var err error

		current, err = s.chain.Prev(ctx, current)
		if err != nil {
			return nil, err
		}
	}
}
