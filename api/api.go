// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api assembles the HTTP surface of the engine: the farm read
// surface, event queries, the health report and the metrics endpoint.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	apievents "github.com/multifarmlabs/multifarm/api/events"
	"github.com/multifarmlabs/multifarm/api/farms"
	"github.com/multifarmlabs/multifarm/api/utils"
	"github.com/multifarmlabs/multifarm/eventdb"
	"github.com/multifarmlabs/multifarm/farm"
	"github.com/multifarmlabs/multifarm/health"
	"github.com/multifarmlabs/multifarm/metrics"
)

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins string
	EventsLimit    uint64
	EnableMetrics  bool
}

// New assembles the handler. eventDB may be nil to disable event queries,
// healthTracker may be nil to disable the health endpoint.
func New(engine *farm.Farm, eventDB *eventdb.EventDB, healthTracker *health.Health, opts Options) http.Handler {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	farms.New(engine).Mount(router, "/farms")
	if eventDB != nil {
		limit := opts.EventsLimit
		if limit == 0 {
			limit = 1000
		}
		apievents.New(eventDB, limit).Mount(router, "/events")
	}
	if healthTracker != nil {
		router.Path("/health").
			Methods(http.MethodGet).
			Name("GET /health").
			HandlerFunc(utils.WrapHandlerFunc(func(w http.ResponseWriter, _ *http.Request) error {
				status, err := healthTracker.Status()
				if err != nil {
					return err
				}
				status.EngineVersion = engine.Version()
				w.Header().Set("Content-Type", utils.JSONContentType)
				if !status.Healthy {
					w.WriteHeader(http.StatusServiceUnavailable)
				}
				return json.NewEncoder(w).Encode(status)
			}))
	}

	if opts.EnableMetrics {
		router.Use(metricsMiddleware)
		if h := metrics.HTTPHandler(); h != nil {
			router.Path("/metrics").Handler(h)
		}
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)
	return handler
}
