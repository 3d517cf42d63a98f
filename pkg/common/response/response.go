package response

import (
	"encoding/json"
	"net/http"
)

type JsonResponse struct {
	Error   bool   `json:"error"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

func JSON(w http.ResponseWriter, status int, data any, isErr bool, msg string) error {
	resp := &JsonResponse{
		Error:   isErr,
		Message: msg,
	}
	if !isErr {
		resp.Data = data
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(resp)
}
