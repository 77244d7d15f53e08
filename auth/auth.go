// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package auth gates the engine's privileged operations: distributor
// registration, share changes and sweeps.
package auth

import (
	"github.com/pkg/errors"

	"github.com/multifarmlabs/multifarm/farm/storage"
	"github.com/multifarmlabs/multifarm/multifarm"
)

var slotAuthorized = multifarm.BytesToBytes32([]byte("authorized-callers"))

// Authorizer decides whether a caller may perform privileged operations. It
// is injected at engine construction and consulted per call.
type Authorizer interface {
	IsAuthorized(caller multifarm.Address) (bool, error)
}

// Allowlist is a state-backed Authorizer.
type Allowlist struct {
	callers *storage.AddressList
}

// NewAllowlist creates an allowlist over the given context.
func NewAllowlist(sctx *storage.Context) *Allowlist {
	return &Allowlist{storage.NewAddressList(sctx, slotAuthorized)}
}

// Grant adds the caller. Idempotent.
func (a *Allowlist) Grant(caller multifarm.Address) error {
	return errors.Wrap(a.callers.Add(caller), "failed to grant authorization")
}

// Revoke removes the caller. Removing an absent caller is a no-op.
func (a *Allowlist) Revoke(caller multifarm.Address) error {
	return errors.Wrap(a.callers.Remove(caller), "failed to revoke authorization")
}

// IsAuthorized implements Authorizer.
func (a *Allowlist) IsAuthorized(caller multifarm.Address) (bool, error) {
	return a.callers.Contains(caller)
}

// All returns every authorized caller.
func (a *Allowlist) All() ([]multifarm.Address, error) {
	return a.callers.All()
}
