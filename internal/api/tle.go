package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/missiontle/internal/upstream"
)

// missionTLEsHandler serves GET /tle/{mission_id}.
func missionTLEsHandler(logger *slog.Logger, svc MissionTLEs, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		missionID := r.PathValue("mission_id")

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		res, err := svc.GetMissionTLEs(ctx, missionID)
		if err != nil {
			status, body := errorResponse(err)
			logger.Error("mission TLE lookup failed",
				"component", "api",
				"mission_id", missionID,
				"status", status,
				"error", err,
			)
			writeJSON(w, status, body)
			return
		}
		if res == nil {
			writeText(w, http.StatusNotFound, fmt.Sprintf("No TLEs found for mission %s", missionID))
			return
		}

		w.Header().Set("X-Transactions-Spent", strconv.Itoa(res.Spent))
		w.Header().Set("X-Transactions-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("X-Result-Truncated", strconv.FormatBool(res.Truncated))
		writeJSON(w, http.StatusOK, res)
	}
}

// errorResponse maps a failed lookup to a status and JSON body. Provider
// failures are reported as 502, deadlines as 504, anything else as 500.
func errorResponse(err error) (int, map[string]string) {
	var ue *upstream.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, map[string]string{"error": "upstream request timed out"}
	case errors.As(err, &ue):
		return http.StatusBadGateway, map[string]string{
			"error":    "upstream provider failure",
			"kind":     string(ue.Kind),
			"provider": ue.Provider,
		}
	default:
		return http.StatusInternalServerError, map[string]string{"error": "internal error"}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(msg))
}
