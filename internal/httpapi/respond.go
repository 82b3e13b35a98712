package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"jaterm_gateway/internal/middleware"
	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/terminalai"
	"jaterm_gateway/internal/utils"
)

// statusForKind maps a gateway error kind onto an HTTP status
func statusForKind(kind terminalai.ErrorKind) int {
	switch kind {
	case terminalai.KindPolicyDenied:
		return http.StatusForbidden
	case terminalai.KindValidationFailed:
		return http.StatusBadRequest
	case terminalai.KindProviderUnavailable:
		return http.StatusServiceUnavailable
	case terminalai.KindTransportFailure, terminalai.KindParseFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondResult writes a gateway result. Failures keep the result envelope so
// clients always see the same shape.
func respondResult[T any](w http.ResponseWriter, res terminalai.Result[T]) {
	code := http.StatusOK
	if !res.Success {
		code = statusForKind(res.Kind)
	}
	utils.RespondWithJSON(w, code, res)
}

// respondStoreError maps not-found to 404 and everything else to 500
func respondStoreError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, models.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, what+" not found")
		return
	}
	utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load "+what)
}

func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid id format")
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads a positive integer query parameter, falling back to def
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func caller(r *http.Request) terminalai.Caller {
	id, _ := middleware.GetIdentity(r.Context())
	return terminalai.Caller{UserID: id.UserID, Role: id.Role, IP: middleware.ClientIP(r)}
}
