// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package token

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/multifarmlabs/multifarm/farm/reverts"
	"github.com/multifarmlabs/multifarm/farm/storage"
	"github.com/multifarmlabs/multifarm/multifarm"
)

var (
	slotBalances   = multifarm.BytesToBytes32([]byte("token-balances"))
	slotSupplies   = multifarm.BytesToBytes32([]byte("token-supplies"))
	slotAllowances = multifarm.BytesToBytes32([]byte("token-allowances"))
)

// holderKey identifies one holder's balance of one asset.
type holderKey struct {
	asset  multifarm.Address
	holder multifarm.Address
}

func (k holderKey) Bytes() []byte {
	return append(k.asset.Bytes(), k.holder.Bytes()...)
}

// allowanceKey identifies one spender's allowance over one holder's balance.
type allowanceKey struct {
	asset   multifarm.Address
	holder  multifarm.Address
	spender multifarm.Address
}

func (k allowanceKey) Bytes() []byte {
	b := append(k.asset.Bytes(), k.holder.Bytes()...)
	return append(b, k.spender.Bytes()...)
}

// Book is a state-backed multi-asset balance ledger. It implements Registry;
// the views it hands out share the underlying state, so they roll back with
// the enclosing operation's checkpoint.
type Book struct {
	balances   *storage.Mapping[holderKey, *uint256.Int]
	supplies   *storage.Mapping[multifarm.Address, *uint256.Int]
	allowances *storage.Mapping[allowanceKey, *uint256.Int]
}

// NewBook creates a balance ledger over the given context.
func NewBook(sctx *storage.Context) *Book {
	return &Book{
		balances:   storage.NewMapping[holderKey, *uint256.Int](sctx, slotBalances),
		supplies:   storage.NewMapping[multifarm.Address, *uint256.Int](sctx, slotSupplies),
		allowances: storage.NewMapping[allowanceKey, *uint256.Int](sctx, slotAllowances),
	}
}

// Token returns the transfer surface of one asset.
func (b *Book) Token(asset multifarm.Address) Token {
	return &bookToken{b, asset}
}

// BalanceOf returns the holder's balance of the asset.
func (b *Book) BalanceOf(asset, holder multifarm.Address) (*uint256.Int, error) {
	bal, err := b.balances.Get(holderKey{asset, holder})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get balance")
	}
	return bal, nil
}

// TotalSupply returns the asset's minted supply.
func (b *Book) TotalSupply(asset multifarm.Address) (*uint256.Int, error) {
	supply, err := b.supplies.Get(asset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get supply")
	}
	return supply, nil
}

// Mint credits newly issued units to the holder.
func (b *Book) Mint(asset, holder multifarm.Address, amount *uint256.Int) error {
	bal, err := b.BalanceOf(asset, holder)
	if err != nil {
		return err
	}
	supply, err := b.TotalSupply(asset)
	if err != nil {
		return err
	}
	newBal, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return errors.WithMessage(reverts.ErrOverflow, "balance")
	}
	newSupply, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return errors.WithMessage(reverts.ErrOverflow, "supply")
	}
	if err := b.balances.Set(holderKey{asset, holder}, newBal); err != nil {
		return errors.Wrap(err, "failed to set balance")
	}
	return errors.Wrap(b.supplies.Set(asset, newSupply), "failed to set supply")
}

// Approve grants spender an allowance over holder's balance, replacing any
// previous one.
func (b *Book) Approve(asset, holder, spender multifarm.Address, amount *uint256.Int) error {
	return errors.Wrap(b.allowances.Set(allowanceKey{asset, holder, spender}, amount), "failed to set allowance")
}

// Allowance returns the spender's remaining allowance over holder's balance.
func (b *Book) Allowance(asset, holder, spender multifarm.Address) (*uint256.Int, error) {
	a, err := b.allowances.Get(allowanceKey{asset, holder, spender})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get allowance")
	}
	return a, nil
}

func (b *Book) move(asset, from, to multifarm.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	fromBal, err := b.BalanceOf(asset, from)
	if err != nil {
		return err
	}
	if fromBal.Lt(amount) {
		return errors.WithMessage(reverts.ErrTransferFailure, "insufficient balance")
	}
	toBal, err := b.BalanceOf(asset, to)
	if err != nil {
		return err
	}
	newToBal, overflow := new(uint256.Int).AddOverflow(toBal, amount)
	if overflow {
		return errors.WithMessage(reverts.ErrOverflow, "balance")
	}
	if err := b.balances.Set(holderKey{asset, from}, new(uint256.Int).Sub(fromBal, amount)); err != nil {
		return errors.Wrap(err, "failed to set balance")
	}
	return errors.Wrap(b.balances.Set(holderKey{asset, to}, newToBal), "failed to set balance")
}

// bookToken binds the ledger to one asset.
type bookToken struct {
	book  *Book
	asset multifarm.Address
}

func (t *bookToken) BalanceOf(holder multifarm.Address) (*uint256.Int, error) {
	return t.book.BalanceOf(t.asset, holder)
}

func (t *bookToken) Transfer(from, to multifarm.Address, amount *uint256.Int) error {
	return t.book.move(t.asset, from, to, amount)
}

func (t *bookToken) TransferFrom(spender, from, to multifarm.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	allowance, err := t.book.Allowance(t.asset, from, spender)
	if err != nil {
		return err
	}
	if allowance.Lt(amount) {
		return errors.WithMessage(reverts.ErrTransferFailure, "insufficient allowance")
	}
	if err := t.book.move(t.asset, from, to, amount); err != nil {
		return err
	}
	return t.book.Approve(t.asset, from, spender, new(uint256.Int).Sub(allowance, amount))
}
