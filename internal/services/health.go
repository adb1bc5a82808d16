package services

import (
	"discord-store-bot/internal/logger"
	"encoding/json"
	"net/http"
)

type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Components []ComponentStatus `json:"components"`
}

// HealthHandler отдаёт состояние бота: 200 если всё online, иначе 503
func HealthHandler(board *StatusBoard, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer logger.NotifyOnPanic("HealthHandler")
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		resp := healthResponse{Status: "ok", Version: version, Components: board.Statuses()}
		code := http.StatusOK
		if !board.Healthy() {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if r.Method == http.MethodHead {
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
