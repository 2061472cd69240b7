package Controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/roomturn/controllers"
	"github.com/yeremiapane/roomturn/models"
	"github.com/yeremiapane/roomturn/services"
)

func setupTriggerRouter(bot *services.Bot) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	triggerCtrl := controllers.NewTriggerController(bot.Triggers)
	codeCtrl := controllers.NewRegistrationCodeController(bot.Registration)
	taskCtrl := controllers.NewTaskController(bot.Store)
	router.POST("/api/notify", triggerCtrl.Notify)
	router.POST("/api/registration-codes", codeCtrl.IssueCode)
	router.GET("/api/tasks", taskCtrl.GetTasks)
	return router
}

func postJSON(router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	var body []byte
	switch p := payload.(type) {
	case string:
		body = []byte(p)
	default:
		body, _ = json.Marshal(p)
	}
	req, _ := http.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func seedRoom(t *testing.T, bot *services.Bot, number string) *models.Room {
	t.Helper()
	room := &models.Room{RoomNumber: number, Status: models.RoomOccupied}
	require.NoError(t, bot.Store.DB().Create(room).Error)
	return room
}

func TestCheckoutAlertFallsBackToActiveHousekeepers(t *testing.T) {
	bot, platform := setupTestBot(t)
	router := setupTriggerRouter(bot)
	room := seedRoom(t, bot, "204")
	seedHousekeeper(t, bot, "Ayu", false)
	seedHousekeeper(t, bot, "Budi", false)

	w := postJSON(router, "/api/notify", gin.H{
		"type": "checkout_alert",
		"data": gin.H{"room_id": room.ID, "booking_id": "BK-1"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result services.TriggerResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.SentTo)
	assert.Equal(t, "housekeeper", result.Target)
	assert.NotZero(t, result.TaskID)

	calls := platform.callsTo("/v2/bot/message/multicast")
	require.Len(t, calls, 1)
	assert.ElementsMatch(t, []any{"U-Ayu", "U-Budi"}, calls[0].Body["to"])

	task, err := bot.Store.TaskByID(context.Background(), result.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskPending, task.Status)
	require.NotNil(t, task.BookingID)
	assert.Equal(t, "BK-1", *task.BookingID)
}

func TestCheckoutAlertPrefersOnlineHousekeepers(t *testing.T) {
	bot, platform := setupTestBot(t)
	router := setupTriggerRouter(bot)
	room := seedRoom(t, bot, "305")
	seedHousekeeper(t, bot, "Citra", true)
	seedHousekeeper(t, bot, "Dewi", false)

	w := postJSON(router, "/api/notify", gin.H{
		"type": "checkout_alert",
		"data": gin.H{"room_id": room.ID},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	calls := platform.callsTo("/v2/bot/message/multicast")
	require.Len(t, calls, 1)
	assert.Equal(t, []any{"U-Citra"}, calls[0].Body["to"])
}

func TestCheckoutAlertWithoutHousekeepers(t *testing.T) {
	bot, platform := setupTestBot(t)
	router := setupTriggerRouter(bot)
	room := seedRoom(t, bot, "101")

	w := postJSON(router, "/api/notify", gin.H{
		"type": "checkout_alert",
		"data": gin.H{"room_id": room.ID},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var result services.TriggerResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, "no housekeepers available", result.Error)
	assert.Empty(t, platform.callsTo("/v2/bot/message/multicast"))
}

func TestNotifyRejectsBadRequests(t *testing.T) {
	bot, _ := setupTestBot(t)
	router := setupTriggerRouter(bot)

	w := postJSON(router, "/api/notify", "{broken")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(router, "/api/notify", gin.H{"type": "fireworks", "data": gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var result services.TriggerResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "fireworks")

	w = postJSON(router, "/api/notify", gin.H{"type": "checkout_alert", "data": gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotifyUnknownRoomIsNotFound(t *testing.T) {
	bot, _ := setupTestBot(t)
	router := setupTriggerRouter(bot)
	seedHousekeeper(t, bot, "Eka", true)

	w := postJSON(router, "/api/notify", gin.H{
		"type": "checkout_alert",
		"data": gin.H{"room_id": 9999},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCustomTriggerToRole(t *testing.T) {
	bot, platform := setupTestBot(t)
	router := setupTriggerRouter(bot)
	seedHousekeeper(t, bot, "Fajar", false)

	w := postJSON(router, "/api/notify", gin.H{
		"type": "custom",
		"data": gin.H{"message": "Staff meeting at 3pm", "role": "housekeeper"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result services.TriggerResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "role:housekeeper", result.Target)
	assert.Equal(t, 1, result.SentTo)
	assert.Len(t, platform.callsTo("/v2/bot/message/multicast"), 1)
}

func TestIssueRegistrationCode(t *testing.T) {
	bot, _ := setupTestBot(t)
	router := setupTriggerRouter(bot)
	staff := models.Staff{Name: "Gita", Role: models.RoleTechnician, Active: true}
	require.NoError(t, bot.Store.DB().Create(&staff).Error)

	w := postJSON(router, "/api/registration-codes", gin.H{"staff_id": staff.ID, "ttl_hours": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Status bool `json:"status"`
		Data   struct {
			Code    string `json:"code"`
			StaffID uint   `json:"staff_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Status)
	assert.Len(t, resp.Data.Code, 6)
	assert.Equal(t, staff.ID, resp.Data.StaffID)

	w = postJSON(router, "/api/registration-codes", gin.H{"staff_id": 4242})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = postJSON(router, "/api/registration-codes", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTasksFiltersByStatus(t *testing.T) {
	bot, _ := setupTestBot(t)
	router := setupTriggerRouter(bot)
	room := seedRoom(t, bot, "402")
	require.NoError(t, bot.Store.DB().Create(&models.CleaningTask{RoomID: room.ID, Status: models.TaskPending}).Error)
	require.NoError(t, bot.Store.DB().Create(&models.CleaningTask{RoomID: room.ID, Status: models.TaskInspected}).Error)

	req, _ := http.NewRequest("GET", "/api/tasks?status=pending", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []models.CleaningTask `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, models.TaskPending, resp.Data[0].Status)
}
