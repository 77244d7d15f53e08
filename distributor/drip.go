// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distributor

import (
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/multifarmlabs/multifarm/farm/reverts"
	"github.com/multifarmlabs/multifarm/multifarm"
	"github.com/multifarmlabs/multifarm/token"
)

// Drip is a distributor emitting at a fixed rate per second, capped by the
// funds held at its address. The clock is injectable for tests.
type Drip struct {
	token token.Token
	addr  multifarm.Address
	farm  multifarm.Address
	rate  *uint256.Int
	now   func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewDrip creates a drip distributor emitting rate units per second from
// addr to farm. A nil now defaults to time.Now.
func NewDrip(tok token.Token, addr, farm multifarm.Address, rate *uint256.Int, now func() time.Time) *Drip {
	if now == nil {
		now = time.Now
	}
	return &Drip{
		token: tok,
		addr:  addr,
		farm:  farm,
		rate:  rate.Clone(),
		now:   now,
		last:  now(),
	}
}

// accrued computes the emission for the elapsed whole seconds, capped at the
// whole seconds the held balance can fund. Unfunded seconds are not consumed;
// they emit once the address is topped up.
func (d *Drip) accrued() (*uint256.Int, time.Duration, error) {
	elapsed := d.now().Sub(d.last) / time.Second
	if elapsed <= 0 || d.rate.IsZero() {
		return new(uint256.Int), 0, nil
	}
	secs := uint256.NewInt(uint64(elapsed))
	bal, err := d.token.BalanceOf(d.addr)
	if err != nil {
		return nil, 0, err
	}
	if funded := new(uint256.Int).Div(bal, d.rate); funded.Lt(secs) {
		secs = funded
		elapsed = time.Duration(funded.Uint64())
	}
	amount, overflow := new(uint256.Int).MulOverflow(d.rate, secs)
	if overflow {
		return nil, 0, errors.WithMessage(reverts.ErrOverflow, "drip emission")
	}
	return amount, elapsed, nil
}

// Farm implements Distributor.
func (d *Drip) Farm() multifarm.Address {
	return d.farm
}

// Pending implements Distributor.
func (d *Drip) Pending() (*uint256.Int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	amount, _, err := d.accrued()
	return amount, err
}

// Distribute implements Distributor.
func (d *Drip) Distribute() (*uint256.Int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	amount, covered, err := d.accrued()
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return amount, nil
	}
	if err := d.token.Transfer(d.addr, d.farm, amount); err != nil {
		return nil, err
	}
	// advance only over the seconds actually paid for; the fraction and any
	// unfunded tail keep accruing
	d.last = d.last.Add(covered * time.Second)
	return amount, nil
}
