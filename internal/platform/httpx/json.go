package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON serializa v con el status dado. Los errores de escritura se
// ignoran: el header ya salió y no hay a quién reportarlos.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
