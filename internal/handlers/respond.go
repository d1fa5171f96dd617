package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"familytree/internal/apperr"
	"familytree/internal/logger"
)

// envelope is the uniform response body. Message and MessageAr carry the
// user-facing error text in English and Arabic; both are empty on success.
type envelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Code      string      `json:"code,omitempty"`
	Message   string      `json:"message,omitempty"`
	MessageAr string      `json:"messageAr,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

// respondError translates any error into the envelope. Unknown errors are
// masked as INTERNAL_ERROR so internals never leak to clients.
func respondError(w http.ResponseWriter, log *logger.Logger, err error) {
	appErr := apperr.As(err)
	if appErr == nil {
		appErr = apperr.Internal(err)
	}

	if appErr.Status >= http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	} else {
		log.WithError(err).Debug("request rejected")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success:   false,
		Code:      appErr.Code,
		Message:   appErr.Message,
		MessageAr: appErr.MessageAr,
	})
}

const maxBodyBytes = 1 << 20 // 1 MiB

// pathID parses the numeric {id} path segment
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("Invalid id", "المعرف غير صالح")
	}
	return id, nil
}

// decodeBody reads a JSON request body into dst
func decodeBody(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apperr.Validation("Failed to read request body", "فشل في قراءة محتوى الطلب")
	}
	if len(body) == 0 {
		return apperr.Validation("Request body is required", "محتوى الطلب مطلوب")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.Validation("Invalid JSON in request body", "بيانات JSON غير صالحة في الطلب")
	}
	return nil
}
