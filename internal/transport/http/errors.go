package httptransport

import (
	"encoding/json"
	"net/http"

	domainerrors "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain-errors"
)

// errorBody is the JSON error envelope every endpoint returns on failure.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var statusByCode = map[domainerrors.Code]int{
	domainerrors.CodeValidation:    http.StatusBadRequest,
	domainerrors.CodeNotFound:      http.StatusNotFound,
	domainerrors.CodeConflict:      http.StatusConflict,
	domainerrors.CodeThirdParty:    http.StatusBadGateway,
	domainerrors.CodeSecurity:      http.StatusForbidden,
	domainerrors.CodeDatabase:      http.StatusInternalServerError,
	domainerrors.CodeConfiguration: http.StatusInternalServerError,
	domainerrors.CodeInternal:      http.StatusInternalServerError,
}

// writeError translates coded errors to HTTP responses. Security and server
// side failures get generic messages so internals never leak to callers.
func writeError(w http.ResponseWriter, err error) {
	code := domainerrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := domainerrors.MessageOf(err)
	switch code {
	case domainerrors.CodeSecurity:
		message = "forbidden"
	case domainerrors.CodeDatabase, domainerrors.CodeConfiguration, domainerrors.CodeInternal:
		message = "internal error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: string(code), Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
