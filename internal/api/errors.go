package api

import (
	"net/http"
	"strings"
)

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "DT-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "DT-DB-5001",
				Message: "Database schema is not initialized. Restart the service to apply it.",
			}
		case strings.Contains(raw, "postgres"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "DT-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		case status == http.StatusServiceUnavailable:
			return apiError{
				Code:    "DT-API-5030",
				Message: "A backing service this endpoint needs is not configured.",
			}
		default:
			return apiError{
				Code:    "DT-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "DT-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "DT-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusMethodNotAllowed:
		code = "DT-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusConflict:
		code = "DT-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusUnprocessableEntity:
		code = "DT-API-4022"
		msg = "No text could be extracted from the document."
	}

	// 4xx responses carry only user-safe validation context.
	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(raw, "text is required"):
			msg = "Text to classify is required."
		case strings.Contains(raw, "upload needs a file name"):
			msg = "The uploaded file needs a file name."
		case strings.Contains(raw, "no file provided"):
			msg = "No file was provided."
		case strings.Contains(raw, "unsupported file format"):
			msg = "Unsupported file format. Use PDF, DOCX or TXT."
		case strings.Contains(raw, "ocr not available"):
			msg = "The document is a scan and OCR is not available."
		case strings.Contains(raw, "unknown category"), strings.Contains(raw, "is not a category"):
			msg = "Category is not part of the taxonomy."
		case strings.Contains(raw, "invalid feedback"):
			msg = "Feedback needs a file or prediction reference, both categories and a confidence within [0,1]."
		case strings.Contains(raw, "days must be"):
			msg = "days must be a non-negative integer."
		case strings.Contains(raw, "limit must be"):
			msg = "limit must be between 1 and 200."
		case strings.Contains(raw, "format must be"):
			msg = "format must be csv or jsonl."
		case strings.Contains(raw, "name is required"):
			msg = "Artifact name is required."
		case strings.Contains(raw, "invalid artifact name"):
			msg = "Artifact name is not valid."
		case strings.Contains(raw, "artifact not found"):
			msg = "Model artifact was not found."
		case strings.Contains(raw, "no active artifact"):
			msg = "No model artifact is active."
		case strings.Contains(raw, "already"):
			msg = "A retraining run is already in progress."
		}
	}

	return apiError{Code: code, Message: msg}
}
