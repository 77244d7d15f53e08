// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package farms exposes the engine's read surface over HTTP.
package farms

import (
	"net/http"

	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/multifarmlabs/multifarm/api/utils"
	"github.com/multifarmlabs/multifarm/farm"
	"github.com/multifarmlabs/multifarm/multifarm"
)

// Farms serves engine state queries. Claimable projections are cached per
// engine version; any committed mutation invalidates the whole cache by
// changing the version component of the key.
type Farms struct {
	engine *farm.Farm
	cache  *lru.Cache
}

// New creates the handler group.
func New(engine *farm.Farm) *Farms {
	cache, _ := lru.New(1024)
	return &Farms{engine: engine, cache: cache}
}

type claimableKey struct {
	version uint64
	source  multifarm.Address
	asset   multifarm.Address
	account multifarm.Address
}

func parseAddr(vars map[string]string, name string) (multifarm.Address, error) {
	addr, err := multifarm.ParseAddress(vars[name])
	if err != nil {
		return multifarm.Address{}, utils.BadRequest(errors.WithMessage(err, name))
	}
	return *addr, nil
}

func (f *Farms) handleGetStake(w http.ResponseWriter, req *http.Request) error {
	vars := mux.Vars(req)
	asset, err := parseAddr(vars, "asset")
	if err != nil {
		return err
	}
	account, err := parseAddr(vars, "account")
	if err != nil {
		return err
	}
	stake, err := f.engine.StakeOf(asset, account)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, utils.M{"stake": stake.Dec()})
}

func (f *Farms) handleGetAsset(w http.ResponseWriter, req *http.Request) error {
	asset, err := parseAddr(mux.Vars(req), "asset")
	if err != nil {
		return err
	}
	total, err := f.engine.TotalStaked(asset)
	if err != nil {
		return err
	}
	avail, err := f.engine.AvailableRewards(asset)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, utils.M{
		"totalStaked":      total.Dec(),
		"availableRewards": avail,
	})
}

func (f *Farms) handleGetSources(w http.ResponseWriter, _ *http.Request) error {
	sources, err := f.engine.RewardSources()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, sources)
}

func (f *Farms) handleGetSource(w http.ResponseWriter, req *http.Request) error {
	source, err := parseAddr(mux.Vars(req), "source")
	if err != nil {
		return err
	}
	totalWeight, err := f.engine.TotalWeight(source)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, utils.M{
		"totalWeight":    totalWeight.Dec(),
		"hasDistributor": f.engine.DistributorOf(source) != nil,
	})
}

func (f *Farms) handleGetWeight(w http.ResponseWriter, req *http.Request) error {
	vars := mux.Vars(req)
	source, err := parseAddr(vars, "source")
	if err != nil {
		return err
	}
	asset, err := parseAddr(vars, "asset")
	if err != nil {
		return err
	}
	weight, err := f.engine.Weight(source, asset)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, utils.M{"weight": weight.Dec()})
}

func (f *Farms) handleGetClaimable(w http.ResponseWriter, req *http.Request) error {
	vars := mux.Vars(req)
	source, err := parseAddr(vars, "source")
	if err != nil {
		return err
	}
	asset, err := parseAddr(vars, "asset")
	if err != nil {
		return err
	}
	account, err := parseAddr(vars, "account")
	if err != nil {
		return err
	}

	key := claimableKey{f.engine.Version(), source, asset, account}
	var claimable *uint256.Int
	if cached, ok := f.cache.Get(key); ok {
		claimable = cached.(*uint256.Int)
	} else {
		// stale by at most one version; a cached value never overstates the
		// amount a claim at that version would pay
		if claimable, err = f.engine.Claimable(source, asset, account); err != nil {
			return err
		}
		f.cache.Add(key, claimable)
	}
	return utils.WriteJSON(w, utils.M{"claimable": claimable.Dec()})
}

// Mount attaches the handlers under pathPrefix.
func (f *Farms) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/stakes/{asset}/{account}").
		Methods(http.MethodGet).
		HandlerFunc(utils.WrapHandlerFunc(f.handleGetStake))
	sub.Path("/assets/{asset}").
		Methods(http.MethodGet).
		HandlerFunc(utils.WrapHandlerFunc(f.handleGetAsset))
	sub.Path("/sources").
		Methods(http.MethodGet).
		HandlerFunc(utils.WrapHandlerFunc(f.handleGetSources))
	sub.Path("/sources/{source}").
		Methods(http.MethodGet).
		HandlerFunc(utils.WrapHandlerFunc(f.handleGetSource))
	sub.Path("/sources/{source}/weights/{asset}").
		Methods(http.MethodGet).
		HandlerFunc(utils.WrapHandlerFunc(f.handleGetWeight))
	sub.Path("/claimable/{source}/{asset}/{account}").
		Methods(http.MethodGet).
		HandlerFunc(utils.WrapHandlerFunc(f.handleGetClaimable))
}
