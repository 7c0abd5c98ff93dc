// Package http provides the OCS sharing API handlers of the ocsd server.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Azelphur/ownCloud-share-tools/internal/metrics"
	"github.com/Azelphur/ownCloud-share-tools/internal/protocol"
	"github.com/Azelphur/ownCloud-share-tools/internal/repository"
	"github.com/Azelphur/ownCloud-share-tools/internal/service"
)

const msgShareNotFound = "wrong share ID, share doesn't exist"

// writeOCS writes an OCS envelope. The HTTP status is always 200; the
// outcome travels in the meta status code.
func writeOCS(w http.ResponseWriter, log *zap.Logger, code int, message string, data any) {
	env, err := protocol.NewEnvelope(code, message, data)
	if err != nil {
		log.Error("failed to build response", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	metrics.RecordOCSResponse(code)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(env)
}

// writeError maps a service error onto an OCS status code.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var invalid *service.InvalidArgumentError
	switch {
	case errors.As(err, &invalid):
		writeOCS(w, log, protocol.StatusBadRequest, invalid.Msg, nil)
	case errors.Is(err, repository.ErrShareNotFound):
		writeOCS(w, log, protocol.StatusNotFound, msgShareNotFound, nil)
	case errors.Is(err, service.ErrForbidden):
		writeOCS(w, log, protocol.StatusForbidden, err.Error(), nil)
	default:
		log.Error("request failed", zap.Error(err))
		writeOCS(w, log, protocol.StatusServerError, "internal server error", nil)
	}
}
