package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tashakor/supportbot/internal/openai"
	"github.com/tashakor/supportbot/internal/records"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response  string `json:"response"`
	BotName   string `json:"bot_name"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		respondError(w, http.StatusBadRequest, "empty_message", "message must not be empty")
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if s.gateway == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "assistant is not configured")
		return
	}

	start := time.Now()
	text, err := s.gateway.Reply(r.Context(), sessionID, message)
	if err != nil {
		s.respondGatewayError(w, err)
		return
	}

	s.metrics.ChatRequests.WithLabelValues("ok").Inc()
	s.metrics.ObserveReplyLatency(time.Since(start))
	s.metrics.ActiveTranscripts.Set(float64(s.conversations.ActiveCount()))

	respondJSON(w, http.StatusOK, chatResponse{
		Response:  text,
		BotName:   s.gateway.BotName(),
		SessionID: sessionID,
	})
}

func (s *Server) respondGatewayError(w http.ResponseWriter, err error) {
	var pe *openai.ProviderError
	if errors.As(err, &pe) {
		s.metrics.ChatRequests.WithLabelValues("provider_error").Inc()
		s.metrics.ProviderErrors.WithLabelValues(pe.Op).Inc()
		respondError(w, http.StatusBadGateway, "provider_error", pe.Error())
		return
	}
	s.metrics.ChatRequests.WithLabelValues("internal_error").Inc()
	respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

type clearRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "session_id is required")
		return
	}

	s.conversations.Clear(req.SessionID)
	s.metrics.ActiveTranscripts.Set(float64(s.conversations.ActiveCount()))

	respondJSON(w, http.StatusOK, map[string]any{
		"message":    "conversation cleared",
		"session_id": req.SessionID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "healthy"
	if s.gateway == nil {
		status = "degraded"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        status,
		"bot_available": s.gateway != nil,
	})
}

type extractRequest struct {
	Conversation string `json:"conversation"`
}

func (s *Server) handleExtractInfo(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Conversation) == "" {
		respondError(w, http.StatusBadRequest, "empty_conversation", "conversation must not be empty")
		return
	}
	if s.gateway == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "assistant is not configured")
		return
	}

	rec, err := s.gateway.Extract(r.Context(), req.Conversation)
	if err != nil {
		s.respondGatewayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

type saveCustomerRequest struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	Product   string `json:"product"`
	Quantity  string `json:"quantity"`
	Price     string `json:"price"`
	Status    string `json:"status"`
	Notes     string `json:"notes"`
}

type saveCustomerResponse struct {
	Success        bool   `json:"success"`
	CustomerNumber string `json:"customer_number"`
}

func (s *Server) handleSaveCustomer(w http.ResponseWriter, r *http.Request) {
	var req saveCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "session_id is required")
		return
	}

	number := s.allocator.Assign(req.SessionID)
	ok := s.recordStore.Append(records.Record{
		CustomerNumber: number,
		Name:           req.Name,
		Phone:          req.Phone,
		Email:          req.Email,
		Address:        req.Address,
		Product:        req.Product,
		Quantity:       req.Quantity,
		Price:          req.Price,
		Status:         req.Status,
		Notes:          req.Notes,
		SessionID:      req.SessionID,
	})

	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	s.metrics.RecordsWritten.WithLabelValues(outcome).Inc()

	// Storage failure surfaces as a boolean, never as a crash; the
	// customer number is still valid and persisted.
	respondJSON(w, http.StatusOK, saveCustomerResponse{
		Success:        ok,
		CustomerNumber: number,
	})
}

func (s *Server) handleListCustomers(w http.ResponseWriter, _ *http.Request) {
	rows, err := s.recordStore.All()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"customers": rows,
		"count":     len(rows),
	})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "missing session id")
		return
	}
	turns := s.conversations.History(id)
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"turns":      turns,
	})
}

func (s *Server) handleSessionArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "missing session id")
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	turns, err := s.archive.RecentTurns(r.Context(), id, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"turns":      turns,
	})
}
