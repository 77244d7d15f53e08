// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distributor

import (
	"sync"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/multifarmlabs/multifarm/farm/reverts"
	"github.com/multifarmlabs/multifarm/multifarm"
	"github.com/multifarmlabs/multifarm/token"
)

// Manual is a distributor whose emission is queued explicitly by an
// operator. Queued amounts must already sit at the distributor's own address.
type Manual struct {
	token token.Token
	addr  multifarm.Address
	farm  multifarm.Address

	mu      sync.Mutex
	pending *uint256.Int
}

// NewManual creates a manual distributor holding funds at addr and emitting
// to farm.
func NewManual(tok token.Token, addr, farm multifarm.Address) *Manual {
	return &Manual{
		token:   tok,
		addr:    addr,
		farm:    farm,
		pending: new(uint256.Int),
	}
}

// Queue schedules amount for the next distribution. The distributor's
// address must already hold it.
func (m *Manual) Queue(amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal, err := m.token.BalanceOf(m.addr)
	if err != nil {
		return err
	}
	pending, overflow := new(uint256.Int).AddOverflow(m.pending, amount)
	if overflow {
		return errors.WithMessage(reverts.ErrOverflow, "pending emission")
	}
	if bal.Lt(pending) {
		return errors.WithMessage(reverts.ErrInvalidAmount, "queued emission exceeds held funds")
	}
	m.pending = pending
	return nil
}

// Farm implements Distributor.
func (m *Manual) Farm() multifarm.Address {
	return m.farm
}

// Pending implements Distributor.
func (m *Manual) Pending() (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending.Clone(), nil
}

// Distribute implements Distributor.
func (m *Manual) Distribute() (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending.IsZero() {
		return new(uint256.Int), nil
	}
	amount := m.pending
	if err := m.token.Transfer(m.addr, m.farm, amount); err != nil {
		return nil, err
	}
	m.pending = new(uint256.Int)
	return amount, nil
}
