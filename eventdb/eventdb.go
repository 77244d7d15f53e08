// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package eventdb persists committed engine events in sqlite for later
// filtering by API consumers.
package eventdb

import (
	"context"
	"database/sql"
	"time"

	"github.com/holiman/uint256"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/multifarmlabs/multifarm/farm"
	"github.com/multifarmlabs/multifarm/multifarm"
)

const eventTableSchema = `CREATE TABLE IF NOT EXISTS event (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	kind TEXT NOT NULL,
	source BLOB NOT NULL,
	asset BLOB NOT NULL,
	account BLOB NOT NULL,
	amount TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS event_i0 ON event(kind);
CREATE INDEX IF NOT EXISTS event_i1 ON event(account);
CREATE INDEX IF NOT EXISTS event_i2 ON event(asset);`

// EventDB stores engine events.
type EventDB struct {
	path string
	db   *sql.DB
}

// New creates or opens the event db at the given path.
func New(path string) (eventDB *EventDB, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if eventDB == nil {
			db.Close()
		}
	}()
	if _, err := db.Exec(eventTableSchema); err != nil {
		return nil, err
	}
	return &EventDB{path, db}, nil
}

// NewMem creates an event db in ram.
func NewMem() (*EventDB, error) {
	return New(":memory:")
}

// Close closes the event db.
func (db *EventDB) Close() {
	db.db.Close()
}

func (db *EventDB) Path() string {
	return db.path
}

// Log appends one committed event.
func (db *EventDB) Log(e farm.Event) error {
	_, err := db.db.Exec(
		"INSERT INTO event(ts, kind, source, asset, account, amount) VALUES(?,?,?,?,?,?)",
		e.Time.Unix(),
		string(e.Kind),
		e.Source.Bytes(),
		e.Asset.Bytes(),
		e.Account.Bytes(),
		e.Amount.Dec(),
	)
	return errors.Wrap(err, "failed to insert event")
}

// Record is one stored event with its sequence number.
type Record struct {
	Seq int64
	farm.Event
}

// Order of filtered results.
type Order string

const (
	ASC  Order = "asc"
	DESC Order = "desc"
)

// Filter narrows event queries. Nil pointer fields match everything.
type Filter struct {
	Kind    *farm.EventKind
	Source  *multifarm.Address
	Asset   *multifarm.Address
	Account *multifarm.Address
	// From and To bound the event time in unix seconds; To is honored only
	// when >= From.
	From uint64
	To   uint64

	Order  Order
	Offset uint64
	Limit  uint64
}

// Filter returns stored events matching the filter, oldest first unless
// descending order is requested.
func (db *EventDB) Filter(ctx context.Context, filter *Filter) ([]*Record, error) {
	stmt := "SELECT seq, ts, kind, source, asset, account, amount FROM event WHERE 1"
	var args []any
	if filter == nil {
		filter = &Filter{}
	}
	if filter.Kind != nil {
		stmt += " AND kind = ?"
		args = append(args, string(*filter.Kind))
	}
	if filter.Source != nil {
		stmt += " AND source = ?"
		args = append(args, filter.Source.Bytes())
	}
	if filter.Asset != nil {
		stmt += " AND asset = ?"
		args = append(args, filter.Asset.Bytes())
	}
	if filter.Account != nil {
		stmt += " AND account = ?"
		args = append(args, filter.Account.Bytes())
	}
	if filter.From > 0 {
		stmt += " AND ts >= ?"
		args = append(args, filter.From)
	}
	if filter.To >= filter.From && filter.To > 0 {
		stmt += " AND ts <= ?"
		args = append(args, filter.To)
	}
	if filter.Order == DESC {
		stmt += " ORDER BY seq DESC"
	} else {
		stmt += " ORDER BY seq ASC"
	}
	if filter.Limit > 0 {
		stmt += " LIMIT ?, ?"
		args = append(args, filter.Offset, filter.Limit)
	}

	rows, err := db.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query events")
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			r       Record
			ts      int64
			kind    string
			source  []byte
			asset   []byte
			account []byte
			amount  string
		)
		if err := rows.Scan(&r.Seq, &ts, &kind, &source, &asset, &account, &amount); err != nil {
			return nil, errors.Wrap(err, "failed to scan event")
		}
		value, err := uint256.FromDecimal(amount)
		if err != nil {
			return nil, errors.Wrap(err, "corrupt event amount")
		}
		r.Event = farm.Event{
			Kind:    farm.EventKind(kind),
			Source:  multifarm.BytesToAddress(source),
			Asset:   multifarm.BytesToAddress(asset),
			Account: multifarm.BytesToAddress(account),
			Amount:  value,
			Time:    time.Unix(ts, 0).UTC(),
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}
