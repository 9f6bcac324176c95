package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tashakor/supportbot/internal/archive"
	"github.com/tashakor/supportbot/internal/protocol"
	"github.com/tashakor/supportbot/internal/config"
	"github.com/tashakor/supportbot/internal/conversation"
	"github.com/tashakor/supportbot/internal/customer"
	"github.com/tashakor/supportbot/internal/observability"
	"github.com/tashakor/supportbot/internal/openai"
	"github.com/tashakor/supportbot/internal/records"
)

type stubGateway struct {
	reply     string
	err       error
	extracted records.Record
	lastKey   string
	lastText  string
	store     *conversation.Store
}

func (g *stubGateway) Reply(_ context.Context, sessionKey, userText string) (string, error) {
	g.lastKey = sessionKey
	g.lastText = userText
	if g.err != nil {
		return "", g.err
	}
	if g.store != nil {
		g.store.Append(sessionKey, conversation.RoleUser, userText)
		g.store.Append(sessionKey, conversation.RoleAssistant, g.reply)
	}
	return g.reply, nil
}

func (g *stubGateway) Extract(_ context.Context, _ string) (records.Record, error) {
	if g.err != nil {
		return records.Record{}, g.err
	}
	return g.extracted, nil
}

func (g *stubGateway) BotName() string { return "Tashakor Support" }

type stubRecordStore struct {
	appended []records.Record
	ok       bool
	rows     [][]string
}

func (s *stubRecordStore) Append(rec records.Record) bool {
	s.appended = append(s.appended, rec)
	return s.ok
}

func (s *stubRecordStore) All() ([][]string, error) { return s.rows, nil }

func testMetrics(t *testing.T) *observability.Metrics {
	t.Helper()
	return observability.NewMetrics(fmt.Sprintf("test_httpapi_%s_%d", time.Now().Format("150405"), time.Now().UnixNano()%1e6))
}

func newTestServer(t *testing.T, gw Gateway) (*Server, *conversation.Store, *stubRecordStore) {
	t.Helper()
	cfg := config.Config{
		AssetsDir:      filepath.Join(t.TempDir(), "assets"),
		MaxUploadBytes: 1 << 20,
	}
	store := conversation.NewStore()
	if sg, ok := gw.(*stubGateway); ok && sg != nil {
		sg.store = store
	}
	recordStore := &stubRecordStore{ok: true}
	allocator := customer.NewAllocator(filepath.Join(t.TempDir(), "numbers.json"))
	return New(cfg, gw, store, allocator, recordStore, archive.NopStore{}, testMetrics(t)), store, recordStore
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	res, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	return res
}

func TestChatHappyPath(t *testing.T) {
	gw := &stubGateway{reply: "سلام! چطور می‌تونم کمکتون کنم؟"}
	srv, _, _ := newTestServer(t, gw)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res := postJSON(t, ts.URL+"/chat", map[string]string{"message": "سلام", "session_id": "s1"})
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["response"] != gw.reply {
		t.Fatalf("response = %v, want %q", payload["response"], gw.reply)
	}
	if payload["session_id"] != "s1" {
		t.Fatalf("session_id = %v, want %q", payload["session_id"], "s1")
	}
	if payload["bot_name"] != "Tashakor Support" {
		t.Fatalf("bot_name = %v, want Tashakor Support", payload["bot_name"])
	}
	if gw.lastKey != "s1" || gw.lastText != "سلام" {
		t.Fatalf("gateway called with %q/%q, want s1/سلام", gw.lastKey, gw.lastText)
	}
}

func TestChatGeneratesSessionID(t *testing.T) {
	gw := &stubGateway{reply: "ok"}
	srv, _, _ := newTestServer(t, gw)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res := postJSON(t, ts.URL+"/chat", map[string]string{"message": "hi"})
	defer res.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	id, _ := payload["session_id"].(string)
	if id == "" {
		t.Fatalf("missing generated session_id in response: %+v", payload)
	}
}

func TestChatEmptyMessage(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubGateway{reply: "ok"})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res := postJSON(t, ts.URL+"/chat", map[string]string{"message": "   ", "session_id": "s1"})
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestChatDegradedWithoutGateway(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res := postJSON(t, ts.URL+"/chat", map[string]string{"message": "hi"})
	defer res.Body.Close()
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestChatProviderError(t *testing.T) {
	gw := &stubGateway{err: &openai.ProviderError{Op: "complete", Status: 500, Detail: "upstream down"}}
	srv, _, _ := newTestServer(t, gw)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res := postJSON(t, ts.URL+"/chat", map[string]string{"message": "hi", "session_id": "s1"})
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadGateway)
	}

	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["code"] != "provider_error" {
		t.Fatalf("code = %v, want provider_error", payload["code"])
	}
}

func TestClear(t *testing.T) {
	gw := &stubGateway{reply: "ok"}
	srv, store, _ := newTestServer(t, gw)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	store.Append("s1", conversation.RoleUser, "hello")

	res := postJSON(t, ts.URL+"/clear", map[string]string{"session_id": "s1"})
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("clear status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if got := store.History("s1"); len(got) != 0 {
		t.Fatalf("history after clear = %d turns, want 0", len(got))
	}
}

func TestClearMissingSessionID(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubGateway{reply: "ok"})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res := postJSON(t, ts.URL+"/clear", map[string]string{})
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubGateway{reply: "ok"})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer res.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["status"] != "healthy" {
		t.Fatalf("status = %v, want healthy", payload["status"])
	}
	if payload["bot_available"] != true {
		t.Fatalf("bot_available = %v, want true", payload["bot_available"])
	}
}

func TestHealthDegraded(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer res.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["status"] != "degraded" {
		t.Fatalf("status = %v, want degraded", payload["status"])
	}
}

func TestSaveCustomer(t *testing.T) {
	srv, _, recordStore := newTestServer(t, &stubGateway{reply: "ok"})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res := postJSON(t, ts.URL+"/save-customer", map[string]string{
		"session_id": "s1",
		"name":       "Sara Ahmadi",
		"product":    "gift box",
	})
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var payload saveCustomerResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Success {
		t.Fatalf("success = false, want true")
	}
	if payload.CustomerNumber != "CUST-0001" {
		t.Fatalf("customer_number = %q, want %q", payload.CustomerNumber, "CUST-0001")
	}

	if len(recordStore.appended) != 1 {
		t.Fatalf("appended records = %d, want 1", len(recordStore.appended))
	}
	rec := recordStore.appended[0]
	if rec.CustomerNumber != "CUST-0001" || rec.Name != "Sara Ahmadi" || rec.SessionID != "s1" {
		t.Fatalf("appended record = %+v", rec)
	}

	// Same session saves again: same number, another row.
	res2 := postJSON(t, ts.URL+"/save-customer", map[string]string{"session_id": "s1"})
	defer res2.Body.Close()
	var payload2 saveCustomerResponse
	if err := json.NewDecoder(res2.Body).Decode(&payload2); err != nil {
		t.Fatalf("decode second response: %v", err)
	}
	if payload2.CustomerNumber != "CUST-0001" {
		t.Fatalf("second customer_number = %q, want %q", payload2.CustomerNumber, "CUST-0001")
	}
	if len(recordStore.appended) != 2 {
		t.Fatalf("appended records = %d, want 2", len(recordStore.appended))
	}
}

func TestSaveCustomerStorageFailure(t *testing.T) {
	srv, _, recordStore := newTestServer(t, &stubGateway{reply: "ok"})
	recordStore.ok = false
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res := postJSON(t, ts.URL+"/save-customer", map[string]string{"session_id": "s1"})
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d (failure is a boolean, not a crash)", res.StatusCode, http.StatusOK)
	}
	var payload saveCustomerResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Success {
		t.Fatalf("success = true, want false")
	}
}

func TestExtractInfo(t *testing.T) {
	gw := &stubGateway{extracted: records.Record{Name: "Sara", Product: "gift box"}}
	srv, _, _ := newTestServer(t, gw)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res := postJSON(t, ts.URL+"/extract-info", map[string]string{"conversation": "user: two gift boxes please"})
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var rec records.Record
	if err := json.NewDecoder(res.Body).Decode(&rec); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rec.Name != "Sara" || rec.Product != "gift box" {
		t.Fatalf("extracted = %+v, want Sara / gift box", rec)
	}
}

func TestExtractInfoEmptyConversation(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubGateway{reply: "ok"})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res := postJSON(t, ts.URL+"/extract-info", map[string]string{"conversation": ""})
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestSessionHistory(t *testing.T) {
	srv, store, _ := newTestServer(t, &stubGateway{reply: "ok"})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	store.Append("s1", conversation.RoleUser, "hello")
	store.Append("s1", conversation.RoleAssistant, "hi")

	res, err := http.Get(ts.URL + "/v1/sessions/s1/history")
	if err != nil {
		t.Fatalf("GET history error = %v", err)
	}
	defer res.Body.Close()

	var payload struct {
		SessionID string              `json:"session_id"`
		Turns     []conversation.Turn `json:"turns"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(payload.Turns))
	}
	if payload.Turns[0].Content != "hello" {
		t.Fatalf("turns[0] = %+v, want hello", payload.Turns[0])
	}
}

func TestUploadAsset(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubGateway{reply: "ok"})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "logo.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("fake-png-bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	res, err := http.Post(ts.URL+"/v1/branding/assets", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(res.Body)
		t.Fatalf("status = %d, want %d (body %s)", res.StatusCode, http.StatusCreated, body)
	}

	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	name, _ := payload["filename"].(string)
	if name == "" {
		t.Fatalf("missing filename in response: %+v", payload)
	}
	if _, err := os.Stat(filepath.Join(srv.cfg.AssetsDir, name)); err != nil {
		t.Fatalf("uploaded file not stored: %v", err)
	}
}

func TestUploadAssetRejectsExtension(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubGateway{reply: "ok"})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "script.sh")
	fw.Write([]byte("#!/bin/sh"))
	mw.Close()

	res, err := http.Post(ts.URL+"/v1/branding/assets", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestChatWebSocket(t *testing.T) {
	gw := &stubGateway{reply: "پاسخ"}
	srv, _, _ := newTestServer(t, gw)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws?session_id=s1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"type": "user_message", "text": "سلام"}); err != nil {
		t.Fatalf("write error = %v", err)
	}

	var reply protocol.AssistantReply
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read error = %v", err)
	}
	if reply.Type != protocol.TypeAssistantReply {
		t.Fatalf("type = %q, want %q", reply.Type, protocol.TypeAssistantReply)
	}
	if reply.Text != "پاسخ" {
		t.Fatalf("text = %q, want %q", reply.Text, "پاسخ")
	}
	if reply.SessionID != "s1" {
		t.Fatalf("session_id = %q, want s1", reply.SessionID)
	}

	if err := conn.WriteJSON(map[string]string{"type": "clear_history", "session_id": "s1"}); err != nil {
		t.Fatalf("write clear error = %v", err)
	}
	var cleared protocol.HistoryCleared
	if err := conn.ReadJSON(&cleared); err != nil {
		t.Fatalf("read cleared error = %v", err)
	}
	if cleared.Type != protocol.TypeHistoryCleared {
		t.Fatalf("type = %q, want %q", cleared.Type, protocol.TypeHistoryCleared)
	}
}

func TestChatWebSocketRejectsWithoutGateway(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws"
	_, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("dial succeeded, want handshake rejection")
	}
	if res == nil || res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("handshake status = %v, want %d", res, http.StatusServiceUnavailable)
	}
}
