// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package events exposes filtered queries over committed engine events.
package events

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/multifarmlabs/multifarm/api/utils"
	"github.com/multifarmlabs/multifarm/eventdb"
	"github.com/multifarmlabs/multifarm/farm"
	"github.com/multifarmlabs/multifarm/multifarm"
)

// Events serves event queries.
type Events struct {
	db    *eventdb.EventDB
	limit uint64
}

// New creates the handler group. limit caps the page size of any query.
func New(db *eventdb.EventDB, limit uint64) *Events {
	return &Events{db, limit}
}

// Filter is the request body of an event query.
type Filter struct {
	Kind    *farm.EventKind    `json:"kind"`
	Source  *multifarm.Address `json:"source"`
	Asset   *multifarm.Address `json:"asset"`
	Account *multifarm.Address `json:"account"`
	From    uint64             `json:"from"`
	To      uint64             `json:"to"`
	Order   eventdb.Order      `json:"order"`
	Offset  uint64             `json:"offset"`
	Limit   uint64             `json:"limit"`
}

// LoggedEvent is one event in a query response.
type LoggedEvent struct {
	Seq     int64              `json:"seq"`
	Kind    farm.EventKind     `json:"kind"`
	Source  *multifarm.Address `json:"source,omitempty"`
	Asset   multifarm.Address  `json:"asset"`
	Account multifarm.Address  `json:"account"`
	Amount  string             `json:"amount"`
	Time    int64              `json:"time"`
}

func (e *Events) handleFilter(w http.ResponseWriter, req *http.Request) error {
	var filter Filter
	if err := utils.ParseJSON(req.Body, &filter); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	limit := filter.Limit
	if limit == 0 || limit > e.limit {
		limit = e.limit
	}

	records, err := e.db.Filter(req.Context(), &eventdb.Filter{
		Kind:    filter.Kind,
		Source:  filter.Source,
		Asset:   filter.Asset,
		Account: filter.Account,
		From:    filter.From,
		To:      filter.To,
		Order:   filter.Order,
		Offset:  filter.Offset,
		Limit:   limit,
	})
	if err != nil {
		return err
	}

	logged := make([]*LoggedEvent, 0, len(records))
	for _, r := range records {
		le := &LoggedEvent{
			Seq:     r.Seq,
			Kind:    r.Kind,
			Asset:   r.Asset,
			Account: r.Account,
			Amount:  r.Amount.Dec(),
			Time:    r.Time.Unix(),
		}
		if !r.Source.IsZero() {
			source := r.Source
			le.Source = &source
		}
		logged = append(logged, le)
	}
	return utils.WriteJSON(w, logged)
}

// Mount attaches the handlers under pathPrefix.
func (e *Events) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodPost).
		HandlerFunc(utils.WrapHandlerFunc(e.handleFilter))
	sub.Path("/").
		Methods(http.MethodPost).
		HandlerFunc(utils.WrapHandlerFunc(e.handleFilter))
}
