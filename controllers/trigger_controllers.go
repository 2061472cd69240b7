package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/roomturn/services"
)

// TriggerHandler runs an application-originated notification.
type TriggerHandler interface {
	Handle(ctx context.Context, req services.TriggerRequest) (services.TriggerResult, error)
}

type TriggerController struct {
	Triggers TriggerHandler
}

func NewTriggerController(triggers TriggerHandler) *TriggerController {
	return &TriggerController{Triggers: triggers}
}

// Notify is the trigger endpoint. Unlike the webhook it reports failures by status code.
func (tc *TriggerController) Notify(c *gin.Context) {
	var req services.TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, services.TriggerResult{Success: false, Error: "invalid request body"})
		return
	}

	result, err := tc.Triggers.Handle(c.Request.Context(), req)
	c.JSON(triggerStatus(err), result)
}

func triggerStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, services.ErrBadTrigger):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNoRecipients):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
