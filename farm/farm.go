// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package farm implements the multi-asset staking reward-distribution
// engine. Accounts deposit staking assets, reward sources stream income
// through pluggable distributors, each source is apportioned across the
// assets by adjustable weights, and every account can withdraw exactly its
// accrued portion without the engine ever iterating over accounts.
//
// Every mutating operation first pulls pending distributor amounts, then
// advances the farm-level and asset-level accumulators for every reward
// source relevant to the touched asset, and only then applies the mutation.
// Any quantity used as a denominator or weight in a cumulative formula has
// its accumulator advanced with the old value before the value changes.
package farm

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/multifarmlabs/multifarm/auth"
	"github.com/multifarmlabs/multifarm/distributor"
	"github.com/multifarmlabs/multifarm/farm/accrual"
	"github.com/multifarmlabs/multifarm/farm/emission"
	"github.com/multifarmlabs/multifarm/farm/ledger"
	"github.com/multifarmlabs/multifarm/farm/reverts"
	"github.com/multifarmlabs/multifarm/farm/shares"
	"github.com/multifarmlabs/multifarm/farm/storage"
	"github.com/multifarmlabs/multifarm/metrics"
	"github.com/multifarmlabs/multifarm/multifarm"
	"github.com/multifarmlabs/multifarm/state"
	"github.com/multifarmlabs/multifarm/token"
)

var (
	logger = log.New("pkg", "farm")

	metricOpCount = metrics.LazyLoadCounterVec("engine_operation_count", []string{"op"})
	metricPayouts = metrics.LazyLoadCounter("engine_payout_count")
	metricSources = metrics.LazyLoadGauge("engine_reward_sources")
)

// Farm is the engine facade. All mutating operations execute inside one
// exclusive critical section spanning the whole engine; read-only queries
// take a shared lock against consistent state.
type Farm struct {
	addr       multifarm.Address
	state      *state.State
	authorizer auth.Authorizer
	tokens     token.Registry

	ledger   *ledger.Service
	shares   *shares.Service
	emission *emission.Service
	accrual  *accrual.Service

	mu           sync.RWMutex
	distributors map[multifarm.Address]distributor.Distributor
	listeners    []Listener
	pending      []Event
	version      uint64
}

// New creates the engine at addr over the given state. The authorizer gates
// privileged calls; tokens resolves asset identifiers to their transfer
// surface.
func New(addr multifarm.Address, st *state.State, authorizer auth.Authorizer, tokens token.Registry) *Farm {
	sctx := storage.NewContext(addr, st)
	return &Farm{
		addr:         addr,
		state:        st,
		authorizer:   authorizer,
		tokens:       tokens,
		ledger:       ledger.New(sctx),
		shares:       shares.New(sctx),
		emission:     emission.New(sctx),
		accrual:      accrual.New(sctx),
		distributors: make(map[multifarm.Address]distributor.Distributor),
	}
}

// Address returns the engine's own address, the custody of staked assets
// and undistributed reward.
func (f *Farm) Address() multifarm.Address {
	return f.addr
}

// Subscribe registers a listener for committed events.
func (f *Farm) Subscribe(l Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
}

// Version returns a counter bumped by every committed mutation. It keys
// caches of derived read-only results.
func (f *Farm) Version() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.version
}

// run executes one mutating operation transactionally: all storage effects
// revert if fn fails, and buffered events are delivered only after commit.
func (f *Farm) run(op string, fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pending = f.pending[:0]
	checkpoint := f.state.NewCheckpoint()
	if err := fn(); err != nil {
		f.state.RevertTo(checkpoint)
		f.pending = f.pending[:0]
		logger.Debug("operation rolled back", "op", op, "err", err)
		return err
	}
	if err := f.state.Commit(); err != nil {
		f.state.RevertTo(checkpoint)
		f.pending = f.pending[:0]
		return errors.Wrap(err, "failed to commit")
	}
	f.version++
	metricOpCount().AddWithLabel(1, map[string]string{"op": op})

	events := f.pending
	f.pending = nil
	for _, e := range events {
		for _, l := range f.listeners {
			l(e)
		}
	}
	return nil
}

func (f *Farm) emit(e Event) {
	e.Time = time.Now()
	f.pending = append(f.pending, e)
}

func (f *Farm) authorize(caller multifarm.Address) error {
	ok, err := f.authorizer.IsAuthorized(caller)
	if err != nil {
		return err
	}
	if !ok {
		return errors.WithMessage(reverts.ErrUnauthorized, caller.String())
	}
	return nil
}

// custody returns the engine-held reward balance of the source, excluding
// any of the same token staked through the ledger.
func (f *Farm) custody(source multifarm.Address) (*uint256.Int, error) {
	bal, err := f.tokens.Token(source).BalanceOf(f.addr)
	if err != nil {
		return nil, err
	}
	staked, err := f.ledger.TotalStaked(source)
	if err != nil {
		return nil, err
	}
	if bal.Lt(staked) {
		return new(uint256.Int), nil
	}
	return new(uint256.Int).Sub(bal, staked), nil
}

// accrueSource advances the source's farm-level accumulator against the
// current custody balance and total weight.
func (f *Farm) accrueSource(source multifarm.Address) error {
	custody, err := f.custody(source)
	if err != nil {
		return err
	}
	totalWeight, err := f.shares.TotalWeight(source)
	if err != nil {
		return err
	}
	_, err = f.emission.Accrue(source, custody, totalWeight)
	return err
}

// refreshAll pulls every bound distributor and advances every registered
// source's farm-level accumulator. It must run before any operation that
// reads or mutates shares, stakes or accumulators.
func (f *Farm) refreshAll() error {
	sources, err := f.emission.Registered()
	if err != nil {
		return err
	}
	for _, source := range sources {
		if d, ok := f.distributors[source]; ok && d.Farm() == f.addr {
			if _, err := d.Distribute(); err != nil {
				return errors.WithMessage(err, "failed to distribute")
			}
		}
		if err := f.accrueSource(source); err != nil {
			return err
		}
	}
	return nil
}

// refreshAsset advances the asset-level accumulator of every registered
// reward source for the asset, returning those sources. Zero-weight sources
// advance too: a stake about to change is a divisor of their recorded
// history, and skipping them would leave staker snapshots stale across the
// off period.
func (f *Farm) refreshAsset(asset multifarm.Address) ([]multifarm.Address, error) {
	sources, err := f.emission.Registered()
	if err != nil {
		return nil, err
	}
	if err := f.refreshAssetFor(asset, sources); err != nil {
		return nil, err
	}
	return sources, nil
}

func (f *Farm) refreshAssetFor(asset multifarm.Address, sources []multifarm.Address) error {
	totalStaked, err := f.ledger.TotalStaked(asset)
	if err != nil {
		return err
	}
	for _, source := range sources {
		acc, err := f.emission.Get(source)
		if err != nil {
			return err
		}
		weight, err := f.shares.Weight(source, asset)
		if err != nil {
			return err
		}
		if err := f.accrual.AccrueAsset(source, asset, acc.CumulativePerShare, weight, totalStaked); err != nil {
			return err
		}
	}
	return nil
}

// refreshStaker banks the account's accrued share for each source.
func (f *Farm) refreshStaker(asset, account multifarm.Address, sources []multifarm.Address) error {
	stake, err := f.ledger.Get(asset, account)
	if err != nil {
		return err
	}
	for _, source := range sources {
		acc, err := f.accrual.Asset(source, asset)
		if err != nil {
			return err
		}
		if err := f.accrual.AccrueStaker(source, asset, account, acc.CumulativePerUnit, stake); err != nil {
			return err
		}
	}
	return nil
}

// payout transfers the account's banked reward of each source and zeroes the
// banks. A zero bank is skipped without a transfer.
func (f *Farm) payout(asset, account multifarm.Address, sources []multifarm.Address) (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, source := range sources {
		amount, err := f.accrual.TakeBanked(source, asset, account)
		if err != nil {
			return nil, err
		}
		if amount.IsZero() {
			continue
		}
		if err := f.tokens.Token(source).Transfer(f.addr, account, amount); err != nil {
			return nil, err
		}
		if err := f.emission.AddClaimed(source, amount); err != nil {
			return nil, err
		}
		var overflow bool
		if total, overflow = new(uint256.Int).AddOverflow(total, amount); overflow {
			return nil, errors.WithMessage(reverts.ErrOverflow, "payout total")
		}
		metricPayouts().Add(1)
		f.emit(Event{Kind: EventClaim, Source: source, Asset: asset, Account: account, Amount: amount})
	}
	return total, nil
}

// Stake deposits amount of asset for account, paying out any prior accrual
// first. The account must have approved the engine to pull the asset.
func (f *Farm) Stake(account, asset multifarm.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return errors.WithMessage(reverts.ErrInvalidAmount, "zero stake amount")
	}
	return f.run("stake", func() error {
		if err := f.refreshAll(); err != nil {
			return err
		}
		avail, err := f.refreshAsset(asset)
		if err != nil {
			return err
		}
		if err := f.refreshStaker(asset, account, avail); err != nil {
			return err
		}
		if _, err := f.payout(asset, account, avail); err != nil {
			return err
		}
		if err := f.ledger.Deposit(asset, account, amount); err != nil {
			return err
		}
		if err := f.tokens.Token(asset).TransferFrom(f.addr, account, f.addr, amount); err != nil {
			return err
		}
		f.emit(Event{Kind: EventStake, Asset: asset, Account: account, Amount: amount.Clone()})
		return nil
	})
}

// Unstake withdraws amount of asset for account, paying out any prior
// accrual first.
func (f *Farm) Unstake(account, asset multifarm.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return errors.WithMessage(reverts.ErrInvalidAmount, "zero unstake amount")
	}
	return f.run("unstake", func() error {
		if err := f.refreshAll(); err != nil {
			return err
		}
		return f.unstake(account, asset, amount)
	})
}

func (f *Farm) unstake(account, asset multifarm.Address, amount *uint256.Int) error {
	avail, err := f.refreshAsset(asset)
	if err != nil {
		return err
	}
	if err := f.refreshStaker(asset, account, avail); err != nil {
		return err
	}
	if _, err := f.payout(asset, account, avail); err != nil {
		return err
	}
	if err := f.ledger.Withdraw(asset, account, amount); err != nil {
		return err
	}
	if err := f.tokens.Token(asset).Transfer(f.addr, account, amount); err != nil {
		return err
	}
	f.emit(Event{Kind: EventUnstake, Asset: asset, Account: account, Amount: amount.Clone()})
	return nil
}

// Exit fully withdraws the account from each asset, paying out all accrued
// reward. Assets with zero stake are settled for reward only.
func (f *Farm) Exit(account multifarm.Address, assets []multifarm.Address) error {
	return f.run("exit", func() error {
		if err := f.refreshAll(); err != nil {
			return err
		}
		for _, asset := range assets {
			stake, err := f.ledger.Get(asset, account)
			if err != nil {
				return err
			}
			if stake.IsZero() {
				avail, err := f.refreshAsset(asset)
				if err != nil {
					return err
				}
				if err := f.refreshStaker(asset, account, avail); err != nil {
					return err
				}
				if _, err := f.payout(asset, account, avail); err != nil {
					return err
				}
				continue
			}
			if err := f.unstake(account, asset, stake); err != nil {
				return err
			}
		}
		return nil
	})
}

// Claim pays out the account's banked reward of the given sources for one
// asset and returns the total paid. A nil sources slice claims every
// registered source. Unregistered sources are skipped.
func (f *Farm) Claim(account, asset multifarm.Address, sources []multifarm.Address) (*uint256.Int, error) {
	total := new(uint256.Int)
	err := f.run("claim", func() error {
		if err := f.refreshAll(); err != nil {
			return err
		}
		targets := sources
		if targets == nil {
			var err error
			if targets, err = f.emission.Registered(); err != nil {
				return err
			}
		} else {
			filtered := targets[:0:0]
			for _, source := range targets {
				registered, err := f.emission.IsRegistered(source)
				if err != nil {
					return err
				}
				if registered {
					filtered = append(filtered, source)
				}
			}
			targets = filtered
		}
		// refresh even zero-weight sources so their banked remainder folds
		// and stays claimable after weight or distributor removal
		if err := f.refreshAssetFor(asset, targets); err != nil {
			return err
		}
		if err := f.refreshStaker(asset, account, targets); err != nil {
			return err
		}
		paid, err := f.payout(asset, account, targets)
		if err != nil {
			return err
		}
		total = paid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}

// SetShares reassigns the source's weights over the given assets. The past
// period's attribution is frozen with the old weights before any new weight
// takes effect.
func (f *Farm) SetShares(caller, source multifarm.Address, assets []multifarm.Address, weights []*uint256.Int) error {
	if err := f.authorize(caller); err != nil {
		return err
	}
	if len(assets) != len(weights) {
		return errors.WithMessagef(reverts.ErrArrayLengthMismatch, "%d assets, %d weights", len(assets), len(weights))
	}
	return f.run("set-shares", func() error {
		registered, err := f.emission.IsRegistered(source)
		if err != nil {
			return err
		}
		if !registered {
			return errors.WithMessage(reverts.ErrInvalidDistributor, "unknown reward source")
		}
		if err := f.refreshAll(); err != nil {
			return err
		}
		// freeze the elapsed period under the old weights
		for _, asset := range assets {
			if err := f.refreshAssetFor(asset, []multifarm.Address{source}); err != nil {
				return err
			}
		}
		// the refresh above already moved each asset's farm-level snapshot
		// to the current cumulative, so a 0→nonzero transition starts with
		// no retroactive backlog
		for i, asset := range assets {
			if _, _, err := f.shares.SetWeight(source, asset, weights[i]); err != nil {
				return err
			}
			f.emit(Event{Kind: EventSharesSet, Source: source, Asset: asset, Amount: weights[i].Clone()})
		}
		return nil
	})
}

// AddDistributor registers or replaces the source's distributor binding.
// The distributor must designate this engine as its farm.
func (f *Farm) AddDistributor(caller, source multifarm.Address, d distributor.Distributor) error {
	if err := f.authorize(caller); err != nil {
		return err
	}
	if d == nil || d.Farm() != f.addr {
		return errors.WithMessage(reverts.ErrInvalidDistributor, "distributor does not designate this farm")
	}
	return f.run("add-distributor", func() error {
		if err := f.emission.Register(source); err != nil {
			return err
		}
		f.distributors[source] = d
		metricSources().Set(int64(len(f.distributors)))
		f.emit(Event{Kind: EventDistributorAdded, Source: source, Amount: new(uint256.Int)})
		return nil
	})
}

// RemoveDistributor flushes a final farm-level refresh then clears the
// source's binding. Banked balances remain claimable afterwards.
func (f *Farm) RemoveDistributor(caller, source multifarm.Address) error {
	if err := f.authorize(caller); err != nil {
		return err
	}
	return f.run("remove-distributor", func() error {
		d, ok := f.distributors[source]
		if !ok {
			return errors.WithMessage(reverts.ErrInvalidDistributor, "no distributor bound")
		}
		if d.Farm() == f.addr {
			if _, err := d.Distribute(); err != nil {
				return errors.WithMessage(err, "failed to distribute")
			}
		}
		if err := f.accrueSource(source); err != nil {
			return err
		}
		delete(f.distributors, source)
		metricSources().Set(int64(len(f.distributors)))
		f.emit(Event{Kind: EventDistributorRemoved, Source: source, Amount: new(uint256.Int)})
		return nil
	})
}

// Sweep rescues stray tokens held by the engine. Staked assets and
// registered reward sources are refused; their balances belong to stakers.
func (f *Farm) Sweep(caller, asset, to multifarm.Address, amount *uint256.Int) error {
	if err := f.authorize(caller); err != nil {
		return err
	}
	return f.run("sweep", func() error {
		registered, err := f.emission.IsRegistered(asset)
		if err != nil {
			return err
		}
		if registered {
			return errors.WithMessage(reverts.ErrInvalidAmount, "cannot sweep a reward source")
		}
		staked, err := f.ledger.TotalStaked(asset)
		if err != nil {
			return err
		}
		if !staked.IsZero() {
			return errors.WithMessage(reverts.ErrInvalidAmount, "cannot sweep a staked asset")
		}
		return f.tokens.Token(asset).Transfer(f.addr, to, amount)
	})
}

// StakeOf returns the account's stake in the asset.
func (f *Farm) StakeOf(asset, account multifarm.Address) (*uint256.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ledger.Get(asset, account)
}

// TotalStaked returns the asset's total staked amount.
func (f *Farm) TotalStaked(asset multifarm.Address) (*uint256.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ledger.TotalStaked(asset)
}

// Weight returns the source's share weight for the asset.
func (f *Farm) Weight(source, asset multifarm.Address) (*uint256.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.shares.Weight(source, asset)
}

// TotalWeight returns the source's total share weight.
func (f *Farm) TotalWeight(source multifarm.Address) (*uint256.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.shares.TotalWeight(source)
}

// AvailableRewards returns the reward sources currently carrying nonzero
// weight for the asset.
func (f *Farm) AvailableRewards(asset multifarm.Address) ([]multifarm.Address, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.shares.Available(asset)
}

// RewardSources returns every reward source ever registered.
func (f *Farm) RewardSources() ([]multifarm.Address, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.emission.Registered()
}

// DistributorOf returns the source's bound distributor, or nil.
func (f *Farm) DistributorOf(source multifarm.Address) distributor.Distributor {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.distributors[source]
}

// Claimable projects the exact amount a claim of the source for the asset
// would pay the account, without mutating state. It equals what an
// immediately following Claim pays, absent intervening state changes.
func (f *Farm) Claimable(source, asset, account multifarm.Address) (*uint256.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	custody, err := f.custody(source)
	if err != nil {
		return nil, err
	}
	if d, ok := f.distributors[source]; ok && d.Farm() == f.addr {
		pending, err := d.Pending()
		if err != nil {
			return nil, err
		}
		var overflow bool
		if custody, overflow = new(uint256.Int).AddOverflow(custody, pending); overflow {
			return nil, errors.WithMessage(reverts.ErrOverflow, "custody preview")
		}
	}
	totalWeight, err := f.shares.TotalWeight(source)
	if err != nil {
		return nil, err
	}
	perShare, err := f.emission.PreviewPerShare(source, custody, totalWeight)
	if err != nil {
		return nil, err
	}

	weight, err := f.shares.Weight(source, asset)
	if err != nil {
		return nil, err
	}
	totalStaked, err := f.ledger.TotalStaked(asset)
	if err != nil {
		return nil, err
	}
	perUnit, err := f.accrual.PreviewPerUnit(source, asset, perShare, weight, totalStaked)
	if err != nil {
		return nil, err
	}

	stake, err := f.ledger.Get(asset, account)
	if err != nil {
		return nil, err
	}
	return f.accrual.PreviewBanked(source, asset, account, perUnit, stake)
}
