package rest

import (
	"encoding/json"
	"log"
	"net/http"
)

// APIResponse is the envelope every ops endpoint replies with.
type APIResponse struct {
	ErrorCode int         `json:"error_code"`
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
}

func writeJSON(w http.ResponseWriter, httpStatus int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[HTTP] write response error: %v", err)
	}
}

func Success(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, APIResponse{Status: "success", Message: message, Data: data})
}

func SuccessAccepted(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusAccepted, APIResponse{Status: "success", Message: message, Data: data})
}

func ErrorBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, APIResponse{ErrorCode: 400, Status: "error", Message: message})
}

func ErrorInternal(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusInternalServerError, APIResponse{ErrorCode: 500, Status: "error", Message: message})
}
