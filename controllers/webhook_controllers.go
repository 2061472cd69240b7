package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/roomturn/messaging"
	"github.com/yeremiapane/roomturn/utils"
)

const SignatureHeader = "X-Line-Signature"

// EventHandler processes one webhook event.
type EventHandler interface {
	Dispatch(ctx context.Context, ev messaging.Event) error
}

type WebhookController struct {
	Handler      EventHandler
	Secret       string
	EventTimeout time.Duration
}

func NewWebhookController(handler EventHandler, secret string, eventTimeout time.Duration) *WebhookController {
	if eventTimeout <= 0 {
		eventTimeout = 30 * time.Second
	}
	return &WebhookController{Handler: handler, Secret: secret, EventTimeout: eventTimeout}
}

// Health answers the platform's GET probe.
func (wc *WebhookController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Handle always answers 200 so the platform never redelivers. A bad signature is logged and
// the payload is still processed. A failed event is logged and leaves the acknowledgment
// untouched; only a failure of the handler itself is reported in the body.
func (wc *WebhookController) Handle(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			utils.ErrorLogger.WithField("stack", string(debug.Stack())).Error("panic while handling webhook")
			c.JSON(http.StatusOK, gin.H{"success": false, "error": "internal error"})
		}
	}()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.ErrorLogger.WithError(err).Warn("webhook body unreadable")
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	if !utils.VerifySignature(body, c.GetHeader(SignatureHeader), wc.Secret) {
		utils.ErrorLogger.WithField("ip", c.ClientIP()).Warn("webhook signature mismatch, processing anyway")
	}

	if len(bytes.TrimSpace(body)) == 0 {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	var envelope messaging.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Events) == 0 {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	failed := 0
	for _, ev := range envelope.Events {
		if err := wc.dispatch(c.Request.Context(), ev); err != nil {
			failed++
			utils.ErrorLogger.WithFields(logrus.Fields{
				"event_type": ev.Type,
				"event_id":   ev.WebhookEventID,
				"user_id":    ev.Source.UserID,
			}).WithError(err).Error("webhook event failed")
		}
	}
	if failed > 0 {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"failed": failed,
			"total":  len(envelope.Events),
		}).Warn("webhook batch finished with failed events")
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// dispatch runs one event with its own deadline and turns a panic into an error.
func (wc *WebhookController) dispatch(parent context.Context, ev messaging.Event) (err error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), wc.EventTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			utils.ErrorLogger.WithField("stack", string(debug.Stack())).Error("panic while handling webhook event")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return wc.Handler.Dispatch(ctx, ev)
}
