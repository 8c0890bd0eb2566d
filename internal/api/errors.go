package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"anystore/pkg/backend/core"
	"anystore/pkg/keys"
	"anystore/pkg/store"
)

// detail is the JSON error envelope of the wire protocol.
type detail struct {
	Detail string `json:"detail"`
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(detail{Detail: msg})
}

// writeError maps store errors onto wire statuses. Missing items are
// 404, bad keys 400, capability gaps 501, everything else 500.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrDoesNotExist), errors.Is(err, core.ErrNotFound):
		writeDetail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, keys.ErrInvalidKey), errors.Is(err, keys.ErrPathTraversal):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrUnsupported):
		writeDetail(w, http.StatusNotImplemented, err.Error())
	default:
		h.logger.Error("request failed",
			zap.Error(err), zap.String("path", r.URL.Path))
		writeDetail(w, http.StatusInternalServerError, "internal server error")
	}
}
