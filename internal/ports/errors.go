package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hxann/radiotruyen/internal/reporting"
)

// Error codes the frontend switches on. Plain messages only carry the
// "error" field.
const (
	errCodeMetadataExtractionFailed = "METADATA_EXTRACTION_FAILED"
	errCodeContentExtractionFailed  = "CONTENT_EXTRACTION_FAILED"
)

type errorResponse struct {
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

func writeError(ctx context.Context, w http.ResponseWriter, statusCode int, message string) {
	writeErrorResponse(ctx, w, statusCode, errorResponse{Error: message})
}

func writeCodedError(ctx context.Context, w http.ResponseWriter, statusCode int, errorCode string, message string) {
	writeErrorResponse(ctx, w, statusCode, errorResponse{ErrorCode: errorCode, Message: message})
}

func writeErrorResponse(ctx context.Context, w http.ResponseWriter, statusCode int, resp errorResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		reporting.Report(ctx, fmt.Errorf("failed to marshal error response: %w", err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Máy chủ gặp lỗi, bot không thể xử lý yêu cầu này."}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}
