package capability

import (
	"encoding/json"
	"net/http"

	"github.com/nholik/deploy-sentinel/internal/healthreport"
)

// HealthHandler serves the liveness endpoint. It returns 200 whenever
// the process can serve requests, degraded capabilities included.
func HealthHandler(registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := registry.Report()
		status := http.StatusOK
		if !report.Healthy {
			status = http.StatusServiceUnavailable
		}
		writeReport(w, status, report)
	}
}

// StatusHandler serves the full per-capability breakdown.
func StatusHandler(registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := registry.Report()
		status := http.StatusOK
		if !report.Healthy {
			status = http.StatusServiceUnavailable
		}
		writeReport(w, status, report)
	}
}

// ReadyHandler serves readiness: capability initialization must have
// completed and every required capability must be up.
func ReadyHandler(registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := registry.Report()
		status := http.StatusOK
		if !registry.Ready() || !report.Healthy {
			status = http.StatusServiceUnavailable
		}
		writeReport(w, status, report)
	}
}

func writeReport(w http.ResponseWriter, status int, report healthreport.Report) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}
