package Controllers_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/roomturn/database"
	"github.com/yeremiapane/roomturn/messaging"
	"github.com/yeremiapane/roomturn/models"
	"github.com/yeremiapane/roomturn/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// platformStub stands in for the chat platform API and records every call.
type platformStub struct {
	mu    sync.Mutex
	calls []platformCall
}

type platformCall struct {
	Path string
	Body map[string]any
}

func (p *platformStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	p.mu.Lock()
	p.calls = append(p.calls, platformCall{Path: r.URL.Path, Body: body})
	p.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte("{}"))
}

func (p *platformStub) callsTo(path string) []platformCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []platformCall
	for _, c := range p.calls {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func setupTestBot(t *testing.T) (*services.Bot, *platformStub) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	stub := &platformStub{}
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	client := messaging.NewClient(messaging.Config{BaseURL: server.URL, AccessToken: "test-token"})
	store := database.NewStore(db)
	return services.NewBot(store, client, nil, nil, nil), stub
}

func seedHousekeeper(t *testing.T, bot *services.Bot, name string, online bool) {
	t.Helper()
	staff := models.Staff{Name: name, Role: models.RoleHousekeeper, Active: true, IsOnline: online}
	require.NoError(t, bot.Store.DB().Create(&staff).Error)
	require.NoError(t, bot.Store.DB().Create(&models.StaffIdentity{
		ExternalID: "U-" + name,
		StaffID:    staff.ID,
		Status:     models.IdentityActive,
		MenuKey:    models.RoleHousekeeper.MenuKey(),
	}).Error)
}
