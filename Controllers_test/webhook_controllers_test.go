package Controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/roomturn/controllers"
	"github.com/yeremiapane/roomturn/messaging"
	"github.com/yeremiapane/roomturn/utils"
)

const testSecret = "channel-secret"

type stubHandler struct {
	mu     sync.Mutex
	events []messaging.Event
	fail   map[string]string // event id -> "panic" | "error"
}

func (s *stubHandler) Dispatch(_ context.Context, ev messaging.Event) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	mode := s.fail[ev.WebhookEventID]
	s.mu.Unlock()

	switch mode {
	case "panic":
		panic("boom")
	case "error":
		return errors.New("store unavailable")
	}
	return nil
}

func setupWebhookRouter(h *stubHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	ctrl := controllers.NewWebhookController(h, testSecret, 0)
	router.POST("/webhook", ctrl.Handle)
	router.GET("/webhook", ctrl.Health)
	return router
}

func postWebhook(router *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(controllers.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestWebhookUnparsableBody(t *testing.T) {
	h := &stubHandler{}
	router := setupWebhookRouter(h)

	for _, body := range []string{"{not json", "", `{"destination":"x","events":[]}`, `[1,2,3]`} {
		w := postWebhook(router, []byte(body), "")
		assert.Equal(t, http.StatusOK, w.Code, body)
		assert.Equal(t, map[string]any{"success": true}, decode(t, w), body)
	}
	assert.Empty(t, h.events)
}

func TestWebhookDispatchesSignedEvents(t *testing.T) {
	h := &stubHandler{}
	router := setupWebhookRouter(h)
	body := []byte(`{"destination":"bot","events":[
		{"type":"message","replyToken":"r1","source":{"type":"user","userId":"U-1"},"timestamp":1,"message":{"type":"text","id":"m1","text":"tasks"}},
		{"type":"postback","replyToken":"r2","source":{"type":"user","userId":"U-2"},"timestamp":2,"postback":{"data":"action=check_in"}}
	]}`)

	w := postWebhook(router, body, utils.SignBody(body, testSecret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	require.Len(t, h.events, 2)
	assert.Equal(t, "tasks", h.events[0].Message.Text)
	assert.Equal(t, "U-2", h.events[1].Source.UserID)
	assert.Equal(t, "action=check_in", h.events[1].Postback.Data)
}

func TestWebhookProcessesDespiteBadSignature(t *testing.T) {
	h := &stubHandler{}
	router := setupWebhookRouter(h)
	body := []byte(`{"events":[{"type":"follow","replyToken":"r","source":{"userId":"U-9"}}]}`)

	w := postWebhook(router, body, "bm90LXRoZS1zaWduYXR1cmU=")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, h.events, 1)
}

func TestWebhookIsolatesFailingEvents(t *testing.T) {
	h := &stubHandler{fail: map[string]string{"e1": "panic", "e2": "error"}}
	router := setupWebhookRouter(h)
	body := []byte(`{"events":[
		{"type":"follow","webhookEventId":"e1","source":{"userId":"U-1"}},
		{"type":"follow","webhookEventId":"e2","source":{"userId":"U-2"}},
		{"type":"follow","webhookEventId":"e3","source":{"userId":"U-3"}}
	]}`)

	w := postWebhook(router, body, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"success": true}, decode(t, w))
	assert.Len(t, h.events, 3)
}

func TestWebhookAcknowledgesWhenOneEventFails(t *testing.T) {
	h := &stubHandler{fail: map[string]string{"e1": "error"}}
	router := setupWebhookRouter(h)
	body := []byte(`{"events":[
		{"type":"follow","webhookEventId":"e1","source":{"userId":"U-1"}},
		{"type":"follow","webhookEventId":"e2","source":{"userId":"U-2"}}
	]}`)

	w := postWebhook(router, body, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"success": true}, decode(t, w))
	require.Len(t, h.events, 2)
	assert.Equal(t, "e2", h.events[1].WebhookEventID)
}

func TestWebhookHealth(t *testing.T) {
	router := setupWebhookRouter(&stubHandler{})
	req, _ := http.NewRequest("GET", "/webhook", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}
