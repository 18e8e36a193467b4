package httputil

import "encoding/json"
import "net/http"

type ErrorBody struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorBody{Error: message})
}

// MaxBodyBytes caps request bodies. Viewer payloads are small: events,
// form values, and journey steps all fit well under a megabyte.
const MaxBodyBytes = 1 << 20

// ReadJSON decodes a JSON request body with the size cap applied.
func ReadJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
