package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/roomturn/database"
	"github.com/yeremiapane/roomturn/messaging"
	"github.com/yeremiapane/roomturn/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type sent struct {
	To       []string
	Token    string
	Messages []messaging.Message
}

// fakeMessenger records every outbound call.
type fakeMessenger struct {
	mu         sync.Mutex
	replies    []sent
	pushes     []sent
	multicasts []sent
	links      map[string]string
	profiles   map[string]*messaging.Profile
	profileErr error
	deliverErr error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		links:    make(map[string]string),
		profiles: make(map[string]*messaging.Profile),
	}
}

func (f *fakeMessenger) Reply(_ context.Context, token string, msgs ...messaging.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, sent{Token: token, Messages: msgs})
	return f.deliverErr
}

func (f *fakeMessenger) Push(_ context.Context, to string, msgs ...messaging.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, sent{To: []string{to}, Messages: msgs})
	return f.deliverErr
}

func (f *fakeMessenger) Multicast(_ context.Context, to []string, msgs ...messaging.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.multicasts = append(f.multicasts, sent{To: append([]string(nil), to...), Messages: msgs})
	return f.deliverErr
}

func (f *fakeMessenger) GetProfile(_ context.Context, userID string) (*messaging.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return nil, &messaging.APIError{StatusCode: 404, Message: "not found"}
}

func (f *fakeMessenger) LinkRichMenu(_ context.Context, userID, richMenuID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[userID] = richMenuID
	return nil
}

func (f *fakeMessenger) lastReplyText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return ""
	}
	return messageText(f.replies[len(f.replies)-1].Messages[0])
}

func (f *fakeMessenger) multicastRecipients() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, 0, len(f.multicasts))
	for _, m := range f.multicasts {
		out = append(out, m.To)
	}
	return out
}

// messageText returns the visible text of a text or buttons message.
func messageText(m messaging.Message) string {
	if m.Template != nil {
		return m.Template.Title + " " + m.Template.Text
	}
	return m.Text
}

func actionData(m messaging.Message) []string {
	if m.Template == nil {
		return nil
	}
	var out []string
	for _, a := range m.Template.Actions {
		out = append(out, a.Data)
	}
	return out
}

func newTestStore(t *testing.T) *database.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return database.NewStore(db)
}

func newTestBot(t *testing.T) (*Bot, *fakeMessenger) {
	t.Helper()
	store := newTestStore(t)
	fake := newFakeMessenger()
	bot := NewBot(store, fake, NewProfileCache(nil, fake, time.Hour), nil, map[string]string{
		models.RoleHousekeeper.MenuKey(): "richmenu-hk",
		models.RoleTechnician.MenuKey():  "richmenu-tech",
		models.RoleAdmin.MenuKey():       "richmenu-admin",
	})
	return bot, fake
}

// seedStaff creates an active staff member with a registered identity "U-<name>".
func seedStaff(t *testing.T, store *database.Store, name string, role models.Role, online bool) *models.StaffIdentity {
	t.Helper()
	ctx := context.Background()
	staff := models.Staff{Name: name, Role: role, Active: true, IsOnline: online}
	require.NoError(t, store.DB().Create(&staff).Error)
	if !online {
		require.NoError(t, store.SetPresence(ctx, staff.ID, false))
	}
	identity := &models.StaffIdentity{
		ExternalID:  "U-" + name,
		StaffID:     staff.ID,
		DisplayName: name,
		Status:      models.IdentityActive,
		MenuKey:     role.MenuKey(),
	}
	require.NoError(t, store.UpsertIdentity(ctx, identity))
	got, err := store.IdentityByExternalID(ctx, identity.ExternalID)
	require.NoError(t, err)
	return got
}

func seedRoom(t *testing.T, store *database.Store, number string, status models.RoomStatus) *models.Room {
	t.Helper()
	room := &models.Room{RoomNumber: number, Status: status}
	require.NoError(t, store.DB().Create(room).Error)
	return room
}

func seedTask(t *testing.T, store *database.Store, room *models.Room, status models.TaskStatus, assignee *uint) *models.CleaningTask {
	t.Helper()
	task := &models.CleaningTask{RoomID: room.ID, Status: status, AssigneeID: assignee}
	require.NoError(t, store.CreateTask(context.Background(), task))
	return task
}

func seedReport(t *testing.T, store *database.Store, room *models.Room, status models.ReportStatus, priority models.Priority, assignee *uint) *models.MaintenanceReport {
	t.Helper()
	report := &models.MaintenanceReport{
		RoomID:      room.ID,
		Description: "leaking tap",
		Priority:    priority,
		Status:      status,
		AssigneeID:  assignee,
	}
	require.NoError(t, store.CreateReport(context.Background(), report))
	return report
}

func roomStatus(t *testing.T, store *database.Store, id uint) models.RoomStatus {
	t.Helper()
	room, err := store.RoomByID(context.Background(), id)
	require.NoError(t, err)
	return room.Status
}

func countNotifications(t *testing.T, store *database.Store, typ models.NotificationType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, store.DB().Model(&models.Notification{}).Where("type = ?", typ).Count(&n).Error)
	return n
}
