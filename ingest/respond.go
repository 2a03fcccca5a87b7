package ingest

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// errorBody is the JSON envelope of every non-2xx response.
type errorBody struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithField("err", err).Warn("encoding response")
	}
}

func respondError(w http.ResponseWriter, status int, code, detail string) {
	respond(w, status, errorBody{Error: code, Detail: detail})
}
