// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/multifarmlabs/multifarm/auth"
	"github.com/multifarmlabs/multifarm/distributor"
	"github.com/multifarmlabs/multifarm/farm"
	"github.com/multifarmlabs/multifarm/multifarm"
	"github.com/multifarmlabs/multifarm/token"
)

// Config declares the engine deployment: its address, the privileged
// callers, the reward sources with their distributors, and the share
// weights.
type Config struct {
	Engine string   `yaml:"engine"`
	Admins []string `yaml:"admins"`

	Sources []SourceConfig `yaml:"sources"`
	Shares  []ShareConfig  `yaml:"shares"`

	// Mints seed the state-backed token book on first boot. Dev and test
	// deployments only.
	Mints []MintConfig `yaml:"mints"`
}

// SourceConfig declares one reward source and its distributor.
type SourceConfig struct {
	Address     string `yaml:"address"`
	Distributor struct {
		Type    string `yaml:"type"` // manual | drip
		Address string `yaml:"address"`
		Rate    string `yaml:"rate"` // units per second, drip only
	} `yaml:"distributor"`
}

// ShareConfig declares one (source, asset) weight.
type ShareConfig struct {
	Source string `yaml:"source"`
	Asset  string `yaml:"asset"`
	Weight string `yaml:"weight"`
}

// MintConfig seeds one balance.
type MintConfig struct {
	Asset  string `yaml:"asset"`
	Holder string `yaml:"holder"`
	Amount string `yaml:"amount"`
}

// loadConfig reads and validates the yaml config at path.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if cfg.Engine == "" {
		return nil, errors.New("config: engine address required")
	}
	if len(cfg.Admins) == 0 {
		return nil, errors.New("config: at least one admin required")
	}
	return &cfg, nil
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromDecimal(s)
}

// buildDistributor constructs the configured distributor for one source.
func buildDistributor(cfg *SourceConfig, book *token.Book, engineAddr multifarm.Address) (distributor.Distributor, error) {
	source, err := multifarm.ParseAddress(cfg.Address)
	if err != nil {
		return nil, errors.WithMessage(err, "source address")
	}
	addr, err := multifarm.ParseAddress(cfg.Distributor.Address)
	if err != nil {
		return nil, errors.WithMessage(err, "distributor address")
	}
	tok := book.Token(*source)

	switch cfg.Distributor.Type {
	case "manual", "":
		return distributor.NewManual(tok, *addr, engineAddr), nil
	case "drip":
		rate, err := parseAmount(cfg.Distributor.Rate)
		if err != nil {
			return nil, errors.WithMessage(err, "drip rate")
		}
		if rate.IsZero() {
			return nil, errors.New("drip rate must be positive")
		}
		return distributor.NewDrip(tok, *addr, engineAddr, rate, time.Now), nil
	default:
		return nil, errors.Errorf("unknown distributor type %q", cfg.Distributor.Type)
	}
}

// applyConfig grants admins, binds distributors and applies share weights.
// It is idempotent across restarts; re-applying identical weights does not
// disturb accrual.
func applyConfig(cfg *Config, engine *farm.Farm, allow *auth.Allowlist, book *token.Book) error {
	var operator multifarm.Address
	for i, s := range cfg.Admins {
		addr, err := multifarm.ParseAddress(s)
		if err != nil {
			return errors.WithMessage(err, "admin address")
		}
		if err := allow.Grant(*addr); err != nil {
			return err
		}
		if i == 0 {
			operator = *addr
		}
	}

	for i := range cfg.Sources {
		source, err := multifarm.ParseAddress(cfg.Sources[i].Address)
		if err != nil {
			return errors.WithMessage(err, "source address")
		}
		d, err := buildDistributor(&cfg.Sources[i], book, engine.Address())
		if err != nil {
			return err
		}
		if err := engine.AddDistributor(operator, *source, d); err != nil {
			return err
		}
	}

	// group weights per source so each reassignment freezes one period
	bySource := make(map[multifarm.Address][]ShareConfig)
	var order []multifarm.Address
	for _, s := range cfg.Shares {
		source, err := multifarm.ParseAddress(s.Source)
		if err != nil {
			return errors.WithMessage(err, "share source")
		}
		if _, ok := bySource[*source]; !ok {
			order = append(order, *source)
		}
		bySource[*source] = append(bySource[*source], s)
	}
	for _, source := range order {
		var (
			assets  []multifarm.Address
			weights []*uint256.Int
		)
		for _, s := range bySource[source] {
			asset, err := multifarm.ParseAddress(s.Asset)
			if err != nil {
				return errors.WithMessage(err, "share asset")
			}
			weight, err := parseAmount(s.Weight)
			if err != nil {
				return errors.WithMessage(err, "share weight")
			}
			assets = append(assets, *asset)
			weights = append(weights, weight)
		}
		if err := engine.SetShares(operator, source, assets, weights); err != nil {
			return err
		}
	}
	return nil
}

// applyMints seeds the token book. Run only on a fresh state.
func applyMints(cfg *Config, book *token.Book) error {
	for _, m := range cfg.Mints {
		asset, err := multifarm.ParseAddress(m.Asset)
		if err != nil {
			return errors.WithMessage(err, "mint asset")
		}
		holder, err := multifarm.ParseAddress(m.Holder)
		if err != nil {
			return errors.WithMessage(err, "mint holder")
		}
		amount, err := parseAmount(m.Amount)
		if err != nil {
			return errors.WithMessage(err, "mint amount")
		}
		if err := book.Mint(*asset, *holder, amount); err != nil {
			return err
		}
	}
	return nil
}
