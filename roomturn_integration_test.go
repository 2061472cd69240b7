package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/roomturn/config"
	"github.com/yeremiapane/roomturn/controllers"
	"github.com/yeremiapane/roomturn/database"
	"github.com/yeremiapane/roomturn/messaging"
	"github.com/yeremiapane/roomturn/models"
	"github.com/yeremiapane/roomturn/router"
	"github.com/yeremiapane/roomturn/services"
	"github.com/yeremiapane/roomturn/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const integrationSecret = "integration-secret"

func TestMain(m *testing.M) {
	utils.InitLogger("info", "text")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// chatPlatform records replies so the test can read what each user was told.
type chatPlatform struct {
	mu      sync.Mutex
	replies []string
	pushes  int
}

func (p *chatPlatform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body struct {
		Messages []messaging.Message `json:"messages"`
	}
	_ = json.Unmarshal(raw, &body)

	p.mu.Lock()
	switch r.URL.Path {
	case "/v2/bot/message/reply":
		if len(body.Messages) > 0 {
			m := body.Messages[0]
			text := m.Text
			if m.Template != nil {
				text = m.Template.Text
			}
			p.replies = append(p.replies, text)
		}
	case "/v2/bot/message/push", "/v2/bot/message/multicast":
		p.pushes++
	}
	p.mu.Unlock()
	w.Write([]byte("{}"))
}

func (p *chatPlatform) pushCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pushes
}

func (p *chatPlatform) lastReply() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.replies) == 0 {
		return ""
	}
	return p.replies[len(p.replies)-1]
}

// TestRoomTurnover walks one room from checkout to release:
// checkout trigger -> accept (with a losing racer) -> start -> complete -> inspect.
func TestRoomTurnover(t *testing.T) {
	store, platform := setupIntegration(t)
	r := router.SetupRouter(config.Config{
		ChannelSecret:     integrationSecret,
		TriggerRatePerSec: 100,
	}, services.NewBot(store, messaging.NewClient(messaging.Config{
		BaseURL:     platform.URL,
		AccessToken: "token",
	}), nil, nil, nil))
	chat := platform.Config.Handler.(*chatPlatform)

	room := &models.Room{RoomNumber: "512", Status: models.RoomOccupied}
	require.NoError(t, store.DB().Create(room).Error)
	seedIdentity(t, store, "Ayu", models.RoleHousekeeper)
	seedIdentity(t, store, "Budi", models.RoleHousekeeper)
	seedIdentity(t, store, "Hana", models.RoleAdmin)

	// 1. Checkout trigger from the hotel application
	taskID := checkoutTest(t, r, room.ID)

	// 2. Ayu accepts, Budi loses the race
	postback(t, r, "Ayu", fmt.Sprintf("action=accept_clean&task_id=%d", taskID))
	postback(t, r, "Budi", fmt.Sprintf("action=accept_clean&task_id=%d", taskID))
	assert.Equal(t, "This task has already been taken.", chat.lastReply())

	// 3. Start and complete; the administrator hears about it
	announced := chat.pushCount()
	postback(t, r, "Ayu", fmt.Sprintf("action=start_clean&task_id=%d", taskID))
	postback(t, r, "Ayu", fmt.Sprintf("action=complete_clean&task_id=%d", taskID))
	assert.Equal(t, models.RoomCleaning, currentRoomStatus(t, store, room.ID))
	assert.Greater(t, chat.pushCount(), announced)

	// 4. A housekeeper may not inspect, the administrator can
	postback(t, r, "Budi", fmt.Sprintf("action=inspect&task_id=%d", taskID))
	task, err := store.TaskByID(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, task.Status)

	postback(t, r, "Hana", fmt.Sprintf("action=inspect&task_id=%d", taskID))
	assert.Contains(t, chat.lastReply(), "Room 512 inspected")
	assert.Equal(t, models.RoomAvailable, currentRoomStatus(t, store, room.ID))

	// 5. The listing shows the inspected task
	req, _ := http.NewRequest("GET", "/api/tasks?status=inspected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Data []models.CleaningTask `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	require.Len(t, listing.Data, 1)
	assert.Equal(t, taskID, listing.Data[0].ID)
	require.NotNil(t, listing.Data[0].AssigneeID)
}

func setupIntegration(t *testing.T) (*database.Store, *httptest.Server) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:integration?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	platform := httptest.NewServer(&chatPlatform{})
	t.Cleanup(platform.Close)
	return database.NewStore(db), platform
}

func seedIdentity(t *testing.T, store *database.Store, name string, role models.Role) {
	t.Helper()
	staff := models.Staff{Name: name, Role: role, Active: true, IsOnline: true}
	require.NoError(t, store.DB().Create(&staff).Error)
	require.NoError(t, store.UpsertIdentity(context.Background(), &models.StaffIdentity{
		ExternalID:  "U-" + name,
		StaffID:     staff.ID,
		DisplayName: name,
		Status:      models.IdentityActive,
		MenuKey:     role.MenuKey(),
	}))
}

func checkoutTest(t *testing.T, r *gin.Engine, roomID uint) uint {
	t.Helper()
	body, _ := json.Marshal(gin.H{
		"type": "checkout_alert",
		"data": gin.H{"room_id": roomID, "booking_id": "BK-512"},
	})
	req, _ := http.NewRequest("POST", "/api/notify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result services.TriggerResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.True(t, result.Success)
	assert.Equal(t, 2, result.SentTo)
	return result.TaskID
}

func postback(t *testing.T, r *gin.Engine, user, data string) {
	t.Helper()
	body, _ := json.Marshal(messaging.Envelope{Events: []messaging.Event{{
		Type:       messaging.EventTypePostback,
		ReplyToken: "reply-" + user,
		Source:     messaging.Source{Type: "user", UserID: "U-" + user},
		Postback:   &messaging.Postback{Data: data},
	}}})
	req, _ := http.NewRequest("POST", "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(controllers.SignatureHeader, utils.SignBody(body, integrationSecret))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, true, resp["success"], w.Body.String())
}

func currentRoomStatus(t *testing.T, store *database.Store, roomID uint) models.RoomStatus {
	t.Helper()
	room, err := store.RoomByID(context.Background(), roomID)
	require.NoError(t, err)
	return room.Status
}
