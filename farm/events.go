// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package farm

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/multifarmlabs/multifarm/multifarm"
)

// EventKind identifies the type of an engine event.
type EventKind string

const (
	EventStake              EventKind = "stake"
	EventUnstake            EventKind = "unstake"
	EventClaim              EventKind = "claim"
	EventDistributorAdded   EventKind = "distributor-added"
	EventDistributorRemoved EventKind = "distributor-removed"
	EventSharesSet          EventKind = "shares-set"
)

// Event is an observability record of one committed engine effect. Events
// are delivered only after the enclosing operation commits; a rolled-back
// operation emits nothing.
type Event struct {
	Kind    EventKind
	Source  multifarm.Address // reward source; zero for pure stake movements
	Asset   multifarm.Address
	Account multifarm.Address
	Amount  *uint256.Int
	Time    time.Time
}

// Listener receives committed events. It is invoked synchronously after
// commit, outside any storage mutation but inside the engine's exclusive
// section; keep it fast.
type Listener func(Event)
