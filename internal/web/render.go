package web

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hpungsan/lookout/internal/errors"
)

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderError writes {"error": message} with the status carried by err.
// Errors that are not a DashError become INTERNAL.
func renderError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var dErr *errors.DashError
	if !stderrors.As(err, &dErr) {
		dErr = errors.NewInternal(err)
	}

	if dErr.Status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", string(dErr.Code), "error", err)
	}

	renderJSON(w, dErr.Status, map[string]string{"error": dErr.Message})
}

// readBody reads the whole request body within timeout. The size cap is
// applied by the router's RequestSize middleware.
func readBody(w http.ResponseWriter, r *http.Request, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		rc := http.NewResponseController(w)
		if err := rc.SetReadDeadline(time.Now().Add(timeout)); err == nil {
			defer func() { _ = rc.SetReadDeadline(time.Time{}) }()
		}
	}

	body, err := io.ReadAll(r.Body)
	if err == nil {
		return body, nil
	}

	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		return nil, errors.NewPayloadTooLarge(maxErr.Limit)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return nil, errors.NewRequestTimeout()
	}
	return nil, errors.NewMalformedInput(err.Error())
}
