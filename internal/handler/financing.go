package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/midipay/financing-engine/internal/domain"
	"github.com/midipay/financing-engine/internal/service"
	customError "github.com/midipay/financing-engine/pkg/errors"
	"github.com/midipay/financing-engine/pkg/response"
)

type FinancingHandler struct {
	service   *service.FinancingService
	validator *validator.Validate
	log       *zap.Logger
}

func NewFinancingHandler(service *service.FinancingService, log *zap.Logger) *FinancingHandler {
	return &FinancingHandler{
		service:   service,
		validator: validator.New(),
		log:       log,
	}
}

// SubmitRequest handles POST /api/v1/financing/requests.
func (h *FinancingHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var payload domain.SubmitFinancingRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.BusinessError(w, customError.WrapValidation("invalid JSON body"))
		return
	}
	if err := h.validator.Struct(&payload); err != nil {
		response.BusinessError(w, customError.WrapValidation(err.Error()))
		return
	}

	request, err := h.service.SubmitRequest(r.Context(), &payload)
	if err != nil {
		h.log.Warn("submit request failed", zap.Error(err))
		if request != nil && customError.CodeOf(err) == customError.ErrCodeScoringUnavailable {
			// The request is durable in submitted; the caller retries later.
			response.BusinessErrorWithData(w, err, domain.FinancingRequestResponse{Request: request})
			return
		}
		response.BusinessError(w, err)
		return
	}

	response.Created(w, domain.FinancingRequestResponse{Request: request})
}

// GetRequest handles GET /api/v1/financing/requests/{id}.
func (h *FinancingHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	request, installments, err := h.service.GetRequest(r.Context(), requestID)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, domain.FinancingRequestResponse{Request: request, Schedule: installments})
}

// GetSchedule handles GET /api/v1/financing/requests/{id}/schedule.
func (h *FinancingHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	_, installments, err := h.service.GetRequest(r.Context(), requestID)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, domain.ScheduleResponse{
		RequestID: requestID.String(),
		Schedule:  installments,
	})
}

// ListRequests handles GET /api/v1/financing/requests, filtered either by
// ?applicant_id= or by ?status=review (the committee queue).
func (h *FinancingHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	applicantID := r.URL.Query().Get("applicant_id")
	status := r.URL.Query().Get("status")

	switch {
	case applicantID != "":
		requests, err := h.service.ListByApplicant(r.Context(), applicantID)
		if err != nil {
			response.BusinessError(w, err)
			return
		}
		response.Success(w, requests)
	case status == domain.StatusReview:
		requests, err := h.service.ListPendingReview(r.Context())
		if err != nil {
			response.BusinessError(w, err)
			return
		}
		response.Success(w, requests)
	default:
		response.BusinessError(w, customError.WrapValidation("provide applicant_id or status=review"))
	}
}

// ReviewDecision handles POST /api/v1/financing/requests/{id}/decision.
func (h *FinancingHandler) ReviewDecision(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var payload domain.ReviewDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.BusinessError(w, customError.WrapValidation("invalid JSON body"))
		return
	}
	if err := h.validator.Struct(&payload); err != nil {
		response.BusinessError(w, customError.WrapValidation(err.Error()))
		return
	}

	request, err := h.service.ReviewDecision(r.Context(), requestID, &payload)
	if err != nil {
		h.log.Warn("review decision failed",
			zap.String("request_id", requestID.String()),
			zap.Error(err))
		response.BusinessError(w, err)
		return
	}

	response.Success(w, domain.FinancingRequestResponse{Request: request})
}

// ApplyRepayment handles POST /api/v1/financing/requests/{id}/repayments.
func (h *FinancingHandler) ApplyRepayment(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var payload domain.RepaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.BusinessError(w, customError.WrapValidation("invalid JSON body"))
		return
	}

	request, err := h.service.ApplyRepayment(r.Context(), requestID, payload.Amount)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, domain.FinancingRequestResponse{Request: request})
}

func (h *FinancingHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := mux.Vars(r)["id"]
	requestID, err := uuid.Parse(raw)
	if err != nil {
		response.BusinessError(w, customError.WrapValidation("request id must be a UUID"))
		return uuid.Nil, false
	}
	return requestID, true
}
