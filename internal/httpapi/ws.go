package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tashakor/supportbot/internal/openai"
	"github.com/tashakor/supportbot/internal/protocol"
	"github.com/tashakor/supportbot/internal/reliability"
)

// handleChatWS runs one chat connection for the embedded web widget.
// Replies are generated synchronously per message, so a connection
// serializes its own turns; write order matches request order.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if s.gateway == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "assistant is not configured")
		return
	}

	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(64 << 10)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.writeWS(conn, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}

		switch msg := parsed.(type) {
		case protocol.UserMessage:
			s.metrics.WSMessages.WithLabelValues("inbound", string(protocol.TypeUserMessage)).Inc()
			key := sessionID
			if msg.SessionID != "" {
				key = msg.SessionID
			}

			start := time.Now()
			text, err := s.gateway.Reply(r.Context(), key, msg.Text)
			if err != nil {
				s.metrics.ChatRequests.WithLabelValues("provider_error").Inc()
				retryable := true
				var pe *openai.ProviderError
				if errors.As(err, &pe) {
					s.metrics.ProviderErrors.WithLabelValues(pe.Op).Inc()
					retryable = reliability.IsRetryableHTTPStatus(pe.Status)
				}
				s.writeWS(conn, protocol.ErrorEvent{
					Type:      protocol.TypeErrorEvent,
					SessionID: key,
					Code:      "provider_error",
					Retryable: retryable,
					Detail:    err.Error(),
				})
				continue
			}

			s.metrics.ChatRequests.WithLabelValues("ok").Inc()
			s.metrics.ObserveReplyLatency(time.Since(start))
			s.metrics.ActiveTranscripts.Set(float64(s.conversations.ActiveCount()))
			s.writeWS(conn, protocol.AssistantReply{
				Type:      protocol.TypeAssistantReply,
				SessionID: key,
				BotName:   s.gateway.BotName(),
				Text:      text,
			})

		case protocol.ClearHistory:
			s.metrics.WSMessages.WithLabelValues("inbound", string(protocol.TypeClearHistory)).Inc()
			s.conversations.Clear(msg.SessionID)
			s.metrics.ActiveTranscripts.Set(float64(s.conversations.ActiveCount()))
			s.writeWS(conn, protocol.HistoryCleared{
				Type:      protocol.TypeHistoryCleared,
				SessionID: msg.SessionID,
			})
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, msg any) {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(msg); err != nil {
		return
	}
	switch m := msg.(type) {
	case protocol.AssistantReply:
		s.metrics.WSMessages.WithLabelValues("outbound", string(m.Type)).Inc()
	case protocol.HistoryCleared:
		s.metrics.WSMessages.WithLabelValues("outbound", string(m.Type)).Inc()
	case protocol.ErrorEvent:
		s.metrics.WSMessages.WithLabelValues("outbound", string(m.Type)).Inc()
	}
}
