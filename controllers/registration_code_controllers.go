package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/roomturn/services"
	"github.com/yeremiapane/roomturn/utils"
)

type RegistrationCodeController struct {
	Registration *services.Registration
}

func NewRegistrationCodeController(registration *services.Registration) *RegistrationCodeController {
	return &RegistrationCodeController{Registration: registration}
}

// IssueCode creates a one-time code the staff member sends to the bot as "register <CODE>".
func (rc *RegistrationCodeController) IssueCode(c *gin.Context) {
	type reqBody struct {
		StaffID  uint `json:"staff_id" binding:"required"`
		TTLHours int  `json:"ttl_hours"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	code, err := rc.Registration.IssueCode(c.Request.Context(), body.StaffID, time.Duration(body.TTLHours)*time.Hour)
	if errors.Is(err, services.ErrNotFound) {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		utils.ErrorLogger.WithError(err).Error("failed to issue registration code")
		utils.RespondError(c, http.StatusInternalServerError, errors.New("could not issue registration code"))
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Registration code issued", gin.H{
		"code":       code.Code,
		"staff_id":   code.StaffID,
		"expires_at": code.ExpiresAt,
	})
}
