package utils

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
)

// WriteJSONResponse writes a JSON response with the given status code
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.Warn("Failed to encode JSON response", zap.Error(err))
	}
}
