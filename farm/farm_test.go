// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package farm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multifarmlabs/multifarm/auth"
	"github.com/multifarmlabs/multifarm/distributor"
	"github.com/multifarmlabs/multifarm/farm/reverts"
	"github.com/multifarmlabs/multifarm/farm/storage"
	"github.com/multifarmlabs/multifarm/kv"
	"github.com/multifarmlabs/multifarm/multifarm"
	"github.com/multifarmlabs/multifarm/state"
	"github.com/multifarmlabs/multifarm/token"
)

var (
	engineAddr = multifarm.BytesToAddress([]byte("engine"))
	bookAddr   = multifarm.BytesToAddress([]byte("book"))
	distAddr   = multifarm.BytesToAddress([]byte("dist"))
	admin      = multifarm.BytesToAddress([]byte("admin"))
	intruder   = multifarm.BytesToAddress([]byte("intruder"))

	assetA  = multifarm.BytesToAddress([]byte("asset-a"))
	assetB  = multifarm.BytesToAddress([]byte("asset-b"))
	rewardR = multifarm.BytesToAddress([]byte("reward-r"))

	alice = multifarm.BytesToAddress([]byte("alice"))
	bob   = multifarm.BytesToAddress([]byte("bob"))
	carol = multifarm.BytesToAddress([]byte("carol"))
)

type env struct {
	t    *testing.T
	farm *Farm
	book *token.Book
	dist *distributor.Manual
}

func newEnv(t *testing.T) *env {
	st := state.New(kv.NewMemDB())
	book := token.NewBook(storage.NewContext(bookAddr, st))
	allow := auth.NewAllowlist(storage.NewContext(engineAddr, st))
	require.NoError(t, allow.Grant(admin))

	f := New(engineAddr, st, allow, book)
	d := distributor.NewManual(book.Token(rewardR), distAddr, engineAddr)
	require.NoError(t, f.AddDistributor(admin, rewardR, d))

	return &env{t: t, farm: f, book: book, dist: d}
}

func (e *env) stake(account, asset multifarm.Address, amount uint64) {
	require.NoError(e.t, e.book.Mint(asset, account, uint256.NewInt(amount)))
	require.NoError(e.t, e.book.Approve(asset, account, engineAddr, uint256.NewInt(amount)))
	require.NoError(e.t, e.farm.Stake(account, asset, uint256.NewInt(amount)))
}

func (e *env) reward(amount uint64) {
	require.NoError(e.t, e.book.Mint(rewardR, distAddr, uint256.NewInt(amount)))
	require.NoError(e.t, e.dist.Queue(uint256.NewInt(amount)))
}

func (e *env) rewardBalance(holder multifarm.Address) *uint256.Int {
	bal, err := e.book.BalanceOf(rewardR, holder)
	require.NoError(e.t, err)
	return bal
}

// Reward source R delivers 1000 units over assets A (weight 1) and B
// (weight 3). A holds two stakers of 100 units each, B one staker of 50.
// A's stakers accrue 125 each, B's staker 750, spending the delivery
// exactly.
func TestDistributionScenario(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.farm.SetShares(admin, rewardR,
		[]multifarm.Address{assetA, assetB},
		[]*uint256.Int{uint256.NewInt(1), uint256.NewInt(3)}))

	e.stake(alice, assetA, 100)
	e.stake(bob, assetA, 100)
	e.stake(carol, assetB, 50)

	e.reward(1000)

	for _, tc := range []struct {
		account  multifarm.Address
		asset    multifarm.Address
		expected uint64
	}{
		{alice, assetA, 125},
		{bob, assetA, 125},
		{carol, assetB, 750},
	} {
		claimable, err := e.farm.Claimable(rewardR, tc.asset, tc.account)
		require.NoError(t, err)
		assert.Equal(t, uint256.NewInt(tc.expected), claimable)

		paid, err := e.farm.Claim(tc.account, tc.asset, []multifarm.Address{rewardR})
		require.NoError(t, err)
		assert.Equal(t, claimable, paid, "claim must pay exactly what claimable reported")
		assert.Equal(t, claimable, e.rewardBalance(tc.account))
	}

	// the whole delivery is spent
	assert.True(t, e.rewardBalance(engineAddr).IsZero())
}

func TestStakePaysPriorAccrual(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.farm.SetShares(admin, rewardR,
		[]multifarm.Address{assetA}, []*uint256.Int{uint256.NewInt(1)}))

	e.stake(alice, assetA, 100)
	e.reward(300)

	// topping up pays the accrual earned so far
	e.stake(alice, assetA, 100)
	assert.Equal(t, uint256.NewInt(300), e.rewardBalance(alice))

	claimable, err := e.farm.Claimable(rewardR, assetA, alice)
	require.NoError(t, err)
	assert.True(t, claimable.IsZero())
}

func TestUnstakePaysAndReturnsStake(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.farm.SetShares(admin, rewardR,
		[]multifarm.Address{assetA}, []*uint256.Int{uint256.NewInt(1)}))

	e.stake(alice, assetA, 100)
	e.reward(400)

	require.NoError(t, e.farm.Unstake(alice, assetA, uint256.NewInt(100)))

	assert.Equal(t, uint256.NewInt(400), e.rewardBalance(alice))
	aBal, err := e.book.BalanceOf(assetA, alice)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(100), aBal)

	stake, err := e.farm.StakeOf(assetA, alice)
	require.NoError(t, err)
	assert.True(t, stake.IsZero())

	// no retroactive accrual once fully out
	e.reward(500)
	claimable, err := e.farm.Claimable(rewardR, assetA, alice)
	require.NoError(t, err)
	assert.True(t, claimable.IsZero())
}

func TestUnstakeExceedingStake(t *testing.T) {
	e := newEnv(t)

	e.stake(alice, assetA, 100)
	err := e.farm.Unstake(alice, assetA, uint256.NewInt(101))
	assert.ErrorIs(t, err, reverts.ErrInvalidAmount)

	stake, err := e.farm.StakeOf(assetA, alice)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(100), stake)
}

func TestZeroAmounts(t *testing.T) {
	e := newEnv(t)
	assert.ErrorIs(t, e.farm.Stake(alice, assetA, new(uint256.Int)), reverts.ErrInvalidAmount)
	assert.ErrorIs(t, e.farm.Unstake(alice, assetA, new(uint256.Int)), reverts.ErrInvalidAmount)
}

func TestExit(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.farm.SetShares(admin, rewardR,
		[]multifarm.Address{assetA, assetB},
		[]*uint256.Int{uint256.NewInt(1), uint256.NewInt(1)}))

	e.stake(alice, assetA, 100)
	e.stake(alice, assetB, 40)
	e.reward(800)

	require.NoError(t, e.farm.Exit(alice, []multifarm.Address{assetA, assetB}))

	// both stakes returned, both reward halves paid
	aBal, err := e.book.BalanceOf(assetA, alice)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(100), aBal)
	bBal, err := e.book.BalanceOf(assetB, alice)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(40), bBal)
	assert.Equal(t, uint256.NewInt(800), e.rewardBalance(alice))
}

func TestZeroWeightRetention(t *testing.T) {
	e := newEnv(t)

	e.stake(alice, assetA, 100)

	// reward arrives while the source carries no weight at all
	e.reward(600)
	paid, err := e.farm.Claim(alice, assetA, []multifarm.Address{rewardR})
	require.NoError(t, err)
	assert.True(t, paid.IsZero())

	// restoring weight makes the retained amount claimable
	require.NoError(t, e.farm.SetShares(admin, rewardR,
		[]multifarm.Address{assetA}, []*uint256.Int{uint256.NewInt(2)}))

	claimable, err := e.farm.Claimable(rewardR, assetA, alice)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(600), claimable)

	paid, err = e.farm.Claim(alice, assetA, []multifarm.Address{rewardR})
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(600), paid)
}

func TestZeroStakeBanking(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.farm.SetShares(admin, rewardR,
		[]multifarm.Address{assetA}, []*uint256.Int{uint256.NewInt(1)}))

	// attribution while nothing is staked banks at asset level
	e.reward(250)
	e.stake(bob, assetB, 1) // unrelated op drives the refresh

	e.stake(alice, assetA, 100)
	// alice arrived after the banked period, yet the bank folds into her
	// accrual since she is the sole staker when it distributes
	e.reward(250)

	claimable, err := e.farm.Claimable(rewardR, assetA, alice)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(500), claimable)
}

func TestSetSharesFreezesOldPeriod(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.farm.SetShares(admin, rewardR,
		[]multifarm.Address{assetA, assetB},
		[]*uint256.Int{uint256.NewInt(1), uint256.NewInt(1)}))

	e.stake(alice, assetA, 10)
	e.stake(bob, assetB, 10)

	e.reward(100)

	// flipping the weights must not reattribute the elapsed period
	require.NoError(t, e.farm.SetShares(admin, rewardR,
		[]multifarm.Address{assetA, assetB},
		[]*uint256.Int{uint256.NewInt(3), uint256.NewInt(1)}))

	claimableA, err := e.farm.Claimable(rewardR, assetA, alice)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(50), claimableA)

	e.reward(100)
	claimableA, err = e.farm.Claimable(rewardR, assetA, alice)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(125), claimableA)
}

func TestAuthorization(t *testing.T) {
	e := newEnv(t)

	err := e.farm.SetShares(intruder, rewardR,
		[]multifarm.Address{assetA}, []*uint256.Int{uint256.NewInt(1)})
	assert.ErrorIs(t, err, reverts.ErrUnauthorized)

	err = e.farm.AddDistributor(intruder, rewardR, e.dist)
	assert.ErrorIs(t, err, reverts.ErrUnauthorized)

	err = e.farm.RemoveDistributor(intruder, rewardR)
	assert.ErrorIs(t, err, reverts.ErrUnauthorized)

	err = e.farm.Sweep(intruder, assetA, intruder, uint256.NewInt(1))
	assert.ErrorIs(t, err, reverts.ErrUnauthorized)
}

func TestSetSharesValidation(t *testing.T) {
	e := newEnv(t)

	err := e.farm.SetShares(admin, rewardR,
		[]multifarm.Address{assetA, assetB}, []*uint256.Int{uint256.NewInt(1)})
	assert.ErrorIs(t, err, reverts.ErrArrayLengthMismatch)

	unknown := multifarm.BytesToAddress([]byte("unknown"))
	err = e.farm.SetShares(admin, unknown,
		[]multifarm.Address{assetA}, []*uint256.Int{uint256.NewInt(1)})
	assert.ErrorIs(t, err, reverts.ErrInvalidDistributor)
}

func TestAddDistributorRejectsForeignFarm(t *testing.T) {
	e := newEnv(t)

	foreign := distributor.NewManual(e.book.Token(rewardR), distAddr, bookAddr)
	err := e.farm.AddDistributor(admin, rewardR, foreign)
	assert.ErrorIs(t, err, reverts.ErrInvalidDistributor)
}

func TestRemoveDistributorKeepsBanked(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.farm.SetShares(admin, rewardR,
		[]multifarm.Address{assetA}, []*uint256.Int{uint256.NewInt(1)}))
	e.stake(alice, assetA, 100)
	e.reward(200)

	require.NoError(t, e.farm.RemoveDistributor(admin, rewardR))
	assert.Nil(t, e.farm.DistributorOf(rewardR))

	// the final flush made the delivery claimable without a distributor
	paid, err := e.farm.Claim(alice, assetA, []multifarm.Address{rewardR})
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(200), paid)
}

func TestTransferFailureRollsBack(t *testing.T) {
	e := newEnv(t)

	// no approval: the pull fails after the ledger mutation
	require.NoError(t, e.book.Mint(assetA, alice, uint256.NewInt(100)))
	err := e.farm.Stake(alice, assetA, uint256.NewInt(100))
	assert.ErrorIs(t, err, reverts.ErrTransferFailure)

	stake, err := e.farm.StakeOf(assetA, alice)
	require.NoError(t, err)
	assert.True(t, stake.IsZero())
	total, err := e.farm.TotalStaked(assetA)
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestSweep(t *testing.T) {
	e := newEnv(t)

	stray := multifarm.BytesToAddress([]byte("stray"))
	require.NoError(t, e.book.Mint(stray, engineAddr, uint256.NewInt(77)))

	require.NoError(t, e.farm.Sweep(admin, stray, admin, uint256.NewInt(77)))
	bal, err := e.book.BalanceOf(stray, admin)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(77), bal)

	// staked assets and reward sources are off limits
	e.stake(alice, assetA, 10)
	assert.ErrorIs(t, e.farm.Sweep(admin, assetA, admin, uint256.NewInt(1)), reverts.ErrInvalidAmount)
	assert.ErrorIs(t, e.farm.Sweep(admin, rewardR, admin, uint256.NewInt(1)), reverts.ErrInvalidAmount)
}

func TestEvents(t *testing.T) {
	e := newEnv(t)

	var got []Event
	e.farm.Subscribe(func(ev Event) { got = append(got, ev) })

	require.NoError(t, e.farm.SetShares(admin, rewardR,
		[]multifarm.Address{assetA}, []*uint256.Int{uint256.NewInt(1)}))
	e.stake(alice, assetA, 100)
	e.reward(50)
	_, err := e.farm.Claim(alice, assetA, nil)
	require.NoError(t, err)

	// a failing op emits nothing
	before := len(got)
	assert.Error(t, e.farm.Stake(alice, assetA, new(uint256.Int)))
	assert.Len(t, got, before)

	var kinds []EventKind
	for _, ev := range got {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{EventSharesSet, EventStake, EventClaim}, kinds)
}

func TestVersionBumpsOnCommitOnly(t *testing.T) {
	e := newEnv(t)

	v := e.farm.Version()
	e.stake(alice, assetA, 10)
	assert.Equal(t, v+1, e.farm.Version())

	assert.Error(t, e.farm.Unstake(alice, assetA, uint256.NewInt(11)))
	assert.Equal(t, v+1, e.farm.Version())
}

// Conservation: everything ever queued ends up either paid out or still in
// engine custody, with no dust beyond one unit per operation.
func TestConservation(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.farm.SetShares(admin, rewardR,
		[]multifarm.Address{assetA, assetB},
		[]*uint256.Int{uint256.NewInt(2), uint256.NewInt(5)}))

	e.stake(alice, assetA, 33)
	e.reward(101)
	e.stake(bob, assetA, 67)
	e.reward(57)
	e.stake(carol, assetB, 13)
	e.reward(997)
	require.NoError(t, e.farm.Unstake(alice, assetA, uint256.NewInt(20)))
	e.reward(11)

	require.NoError(t, e.farm.Exit(alice, []multifarm.Address{assetA}))
	require.NoError(t, e.farm.Exit(bob, []multifarm.Address{assetA}))
	require.NoError(t, e.farm.Exit(carol, []multifarm.Address{assetB}))

	queued := uint256.NewInt(101 + 57 + 997 + 11)
	paid := new(uint256.Int).Add(e.rewardBalance(alice), e.rewardBalance(bob))
	paid.Add(paid, e.rewardBalance(carol))
	residual := e.rewardBalance(engineAddr)

	total := new(uint256.Int).Add(paid, residual)
	assert.Equal(t, queued, total)

	// residual is rounding dust only
	assert.True(t, residual.Lt(uint256.NewInt(16)), "residual %s", residual.Dec())
}

func TestStakeDuringZeroWeightPeriod(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.farm.SetShares(admin, rewardR,
		[]multifarm.Address{assetA}, []*uint256.Int{uint256.NewInt(1)}))

	e.stake(alice, assetA, 100)
	e.stake(bob, assetA, 100)
	e.reward(200)

	// zero the weight; the elapsed period is frozen at 100 each
	require.NoError(t, e.farm.SetShares(admin, rewardR,
		[]multifarm.Address{assetA}, []*uint256.Int{new(uint256.Int)}))

	// alice doubles her stake during the off period; her accrual settles
	// against the old stake before the deposit takes effect
	e.stake(alice, assetA, 100)
	assert.Equal(t, uint256.NewInt(100), e.rewardBalance(alice))

	paid, err := e.farm.Claim(alice, assetA, nil)
	require.NoError(t, err)
	assert.True(t, paid.IsZero())

	// bob's entitlement is untouched by alice's top-up
	paid, err = e.farm.Claim(bob, assetA, nil)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(100), paid)

	// an off-period entrant gets none of the historical cumulative
	e.stake(carol, assetA, 100)
	paid, err = e.farm.Claim(carol, assetA, nil)
	require.NoError(t, err)
	assert.True(t, paid.IsZero())
}

// flakyStore fails the next batch write when armed.
type flakyStore struct {
	kv.GetPutter
	failNext bool
}

func (s *flakyStore) NewBatch() kv.Batch {
	if s.failNext {
		s.failNext = false
		return &failingBatch{s.GetPutter.NewBatch()}
	}
	return s.GetPutter.NewBatch()
}

type failingBatch struct{ kv.Batch }

func (b *failingBatch) Write() error { return errors.New("batch write failed") }

func TestCommitFailureRollsBack(t *testing.T) {
	store := &flakyStore{GetPutter: kv.NewMemDB()}
	st := state.New(store)
	book := token.NewBook(storage.NewContext(bookAddr, st))
	allow := auth.NewAllowlist(storage.NewContext(engineAddr, st))
	require.NoError(t, allow.Grant(admin))

	f := New(engineAddr, st, allow, book)
	d := distributor.NewManual(book.Token(rewardR), distAddr, engineAddr)
	require.NoError(t, f.AddDistributor(admin, rewardR, d))
	require.NoError(t, f.SetShares(admin, rewardR,
		[]multifarm.Address{assetA}, []*uint256.Int{uint256.NewInt(1)}))

	for _, who := range []multifarm.Address{alice, bob} {
		require.NoError(t, book.Mint(assetA, who, uint256.NewInt(100)))
		require.NoError(t, book.Approve(assetA, who, engineAddr, uint256.NewInt(100)))
	}

	store.failNext = true
	assert.Error(t, f.Stake(alice, assetA, uint256.NewInt(100)))

	// the next commit must not flush the failed operation's journal
	require.NoError(t, f.Stake(bob, assetA, uint256.NewInt(100)))

	stake, err := f.StakeOf(assetA, alice)
	require.NoError(t, err)
	assert.True(t, stake.IsZero())
	total, err := f.TotalStaked(assetA)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(100), total)

	bal, err := book.BalanceOf(assetA, alice)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(100), bal)
}
