// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package reverts defines caller-visible failures of engine operations.
// Any error carrying one of these causes means the operation performed no
// state change at all.
package reverts

import "errors"

// Revert is a caller-visible failure of an engine operation.
type Revert struct {
	message string
}

// New creates a revert error.
func New(message string) *Revert {
	return &Revert{message: message}
}

func (e *Revert) Error() string {
	return e.message
}

// Failure taxonomy of the engine.
var (
	// ErrInvalidAmount rejects zero amounts and over-balance unstakes.
	ErrInvalidAmount = New("invalid amount")
	// ErrUnauthorized rejects privileged calls from non-authorized callers.
	ErrUnauthorized = New("unauthorized")
	// ErrArrayLengthMismatch rejects setShares calls with unequal argument arrays.
	ErrArrayLengthMismatch = New("array length mismatch")
	// ErrTransferFailure reports a failed external asset movement. The whole
	// enclosing operation is rolled back.
	ErrTransferFailure = New("transfer failed")
	// ErrOverflow reports arithmetic that would exceed the representable range.
	// The engine fails closed instead of wrapping.
	ErrOverflow = New("arithmetic overflow")
	// ErrInvalidDistributor rejects distributors that do not designate this
	// engine as their farm.
	ErrInvalidDistributor = New("invalid distributor")
)

// IsRevert reports whether err carries a Revert cause.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	var re *Revert
	return errors.As(err, &re)
}
