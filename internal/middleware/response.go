package middleware

import (
	"net/http"

	"github.com/gthanmon/gemini-account-manager/internal/httputil"
)

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}
