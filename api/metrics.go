// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/multifarmlabs/multifarm/metrics"
)

var (
	metricRequestCount = metrics.LazyLoadCounterVec("api_request_count", []string{"path", "code", "method"})
	metricRequestMs    = metrics.LazyLoadHistogram("api_request_duration_ms", metrics.BucketHTTPReqs)
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// metricsMiddleware records request counts and durations per route.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path := req.URL.Path
		if route := mux.CurrentRoute(req); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, req)

		metricRequestMs().Observe(time.Since(start).Milliseconds())
		metricRequestCount().AddWithLabel(1, map[string]string{
			"path":   path,
			"code":   strconv.Itoa(rec.status),
			"method": req.Method,
		})
	})
}
