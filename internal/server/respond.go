package server

import (
	"encoding/json"
	"net/http"

	pkgerrors "github.com/matzehuels/pkggather/pkg/errors"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error     errorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

type errorDetail struct {
	Code    pkgerrors.Code `json:"code"`
	Message string         `json:"message"`
}

// statusFor maps an error code to an HTTP status. The outermost code
// decides, so a fetch failure caused by a timeout is still a 502.
func statusFor(err error) int {
	switch pkgerrors.GetCode(err) {
	case pkgerrors.ErrCodeInvalidInput,
		pkgerrors.ErrCodeInvalidPackage,
		pkgerrors.ErrCodeInvalidVersion,
		pkgerrors.ErrCodeInvalidRange,
		pkgerrors.ErrCodeInvalidFramework,
		pkgerrors.ErrCodeInvalidConfig,
		pkgerrors.ErrCodeInvalidPath,
		pkgerrors.ErrCodeInvalidManifest:
		return http.StatusBadRequest
	case pkgerrors.ErrCodePrimaryTargetNotFound, pkgerrors.ErrCodeNotFound, pkgerrors.ErrCodePackageNotFound:
		return http.StatusNotFound
	case pkgerrors.ErrCodeSourceInit, pkgerrors.ErrCodeSourceFetch, pkgerrors.ErrCodeNetwork:
		return http.StatusBadGateway
	case pkgerrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case pkgerrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case pkgerrors.ErrCodeCancelled:
		return statusClientClosedRequest
	case pkgerrors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := pkgerrors.GetCode(err)
	if code == "" {
		code = pkgerrors.ErrCodeInternal
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, errorBody{
		Error:     errorDetail{Code: code, Message: pkgerrors.UserMessage(err)},
		RequestID: w.Header().Get(HeaderRequestID),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
