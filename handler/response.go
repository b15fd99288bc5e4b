package handler

import (
	"encoding/json"
	"go-ledger-api/common"
	"net/http"
	"strconv"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parsePathID reads an int64 path parameter.
func parsePathID(r *http.Request, name, label string) (int64, *common.AppError) {
	raw := r.PathValue(name)
	if raw == "" {
		return 0, common.NewAppError(http.StatusBadRequest, label+" must not be empty", nil)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, common.NewAppError(http.StatusBadRequest, label+" must be a valid integer", err)
	}
	return id, nil
}
