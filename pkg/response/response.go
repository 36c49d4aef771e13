package response

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	customError "github.com/midipay/financing-engine/pkg/errors"
)

type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      string      `json:"code,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// JSON sends a JSON response with the standard envelope.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	write(w, statusCode, Response{
		Success:   statusCode >= 200 && statusCode < 300,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// Success sends a 200 response.
func Success(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}

// Created sends a 201 response.
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

// Error sends an error response with an explicit status code.
func Error(w http.ResponseWriter, statusCode int, message string, err error) {
	resp := Response{
		Success:   false,
		Message:   message,
		Timestamp: time.Now(),
	}
	if err != nil {
		resp.Error = err.Error()
		resp.Code = customError.CodeOf(err)
	}
	write(w, statusCode, resp)
}

// BusinessError maps a domain error to its HTTP status and sends it.
func BusinessError(w http.ResponseWriter, err error) {
	Error(w, statusFor(err), "", err)
}

// BusinessErrorWithData sends a mapped domain error together with a data
// payload, for failures that still left durable state behind.
func BusinessErrorWithData(w http.ResponseWriter, err error, data interface{}) {
	write(w, statusFor(err), Response{
		Success:   false,
		Error:     err.Error(),
		Code:      customError.CodeOf(err),
		Data:      data,
		Timestamp: time.Now(),
	})
}

func statusFor(err error) int {
	switch customError.CodeOf(err) {
	case customError.ErrCodeValidation:
		return http.StatusBadRequest
	case customError.ErrCodeApplicantNotFound, customError.ErrCodeRequestNotFound:
		return http.StatusNotFound
	case customError.ErrCodeInvalidTransition:
		return http.StatusConflict
	case customError.ErrCodeInsufficientFunds, customError.ErrCodeExcessiveRepayment:
		return http.StatusUnprocessableEntity
	case customError.ErrCodeScoringUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func write(w http.ResponseWriter, statusCode int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// JSONMiddleware sets the JSON content type for all responses.
func JSONMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// LoggingMiddleware logs every request with method, path, status and latency.
func LoggingMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(recorder, r)

			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", recorder.statusCode),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *responseRecorder) WriteHeader(statusCode int) {
	rec.statusCode = statusCode
	rec.ResponseWriter.WriteHeader(statusCode)
}
