// Package httpapi is the network-facing boundary of the support chat
// service. It owns request validation and error presentation; all chat
// and storage logic lives behind the interfaces it consumes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/tashakor/supportbot/internal/archive"
	"github.com/tashakor/supportbot/internal/config"
	"github.com/tashakor/supportbot/internal/conversation"
	"github.com/tashakor/supportbot/internal/customer"
	"github.com/tashakor/supportbot/internal/observability"
	"github.com/tashakor/supportbot/internal/records"
)

// Gateway is the chat surface the handlers call. A nil Gateway puts the
// service in degraded mode: chat-dependent routes answer 503 while the
// process stays up.
type Gateway interface {
	Reply(ctx context.Context, sessionKey, userText string) (string, error)
	Extract(ctx context.Context, conversationText string) (records.Record, error)
	BotName() string
}

// RecordStore is the durable customer-row store.
type RecordStore interface {
	Append(rec records.Record) bool
	All() ([][]string, error)
}

type Server struct {
	cfg           config.Config
	gateway       Gateway
	conversations *conversation.Store
	allocator     *customer.Allocator
	recordStore   RecordStore
	archive       archive.Store
	metrics       *observability.Metrics
	upgrader      websocket.Upgrader
}

func New(cfg config.Config, gateway Gateway, conversations *conversation.Store, allocator *customer.Allocator, recordStore RecordStore, archiveStore archive.Store, metrics *observability.Metrics) *Server {
	if archiveStore == nil {
		archiveStore = archive.NopStore{}
	}
	return &Server{
		cfg:           cfg,
		gateway:       gateway,
		conversations: conversations,
		allocator:     allocator,
		recordStore:   recordStore,
		archive:       archiveStore,
		metrics:       metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from
				// the same origin, so other websites cannot drive a
				// visitor's chat session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/chat", s.handleChat)
	r.Post("/clear", s.handleClear)
	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/extract-info", s.handleExtractInfo)
	r.Post("/save-customer", s.handleSaveCustomer)
	r.Get("/v1/customers", s.handleListCustomers)
	r.Get("/v1/sessions/{id}/history", s.handleSessionHistory)
	r.Get("/v1/sessions/{id}/archive", s.handleSessionArchive)
	r.Get("/v1/chat/ws", s.handleChatWS)

	r.Post("/v1/branding/assets", s.handleUploadAsset)
	r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.Dir(s.cfg.AssetsDir))))

	return r
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
