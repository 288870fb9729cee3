package middleware

import (
	"net/http"

	"github.com/agentstation/mirrorsync/internal/server/response"
)

func writeError(w http.ResponseWriter, status int, code, message, details string) {
	response.JSON(w, status, response.Fail(code, message, details))
}
