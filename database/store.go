package database

import (
	"context"
	"errors"
	"time"

	"github.com/yeremiapane/roomturn/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by single-row lookups when no row matches.
var ErrNotFound = errors.New("record not found")

// Store is the persistence surface the bot core depends on. Status changes on tasks and
// reports go through the CompareAndSet methods: the update applies only when the row still
// has one of the expected statuses, and the caller learns the outcome from the affected row
// count. No in-process locking is involved.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for migrations and tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn against a Store bound to a single database transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// ---- staff & identities ----

func (s *Store) StaffByID(ctx context.Context, id uint) (*models.Staff, error) {
	var staff models.Staff
	if err := s.db.WithContext(ctx).First(&staff, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &staff, nil
}

func (s *Store) StaffByName(ctx context.Context, name string) (*models.Staff, error) {
	var staff models.Staff
	if err := s.db.WithContext(ctx).Where("name = ? AND active = ?", name, true).First(&staff).Error; err != nil {
		return nil, notFound(err)
	}
	return &staff, nil
}

func (s *Store) IdentityByExternalID(ctx context.Context, externalID string) (*models.StaffIdentity, error) {
	var identity models.StaffIdentity
	err := s.db.WithContext(ctx).
		Preload("Staff").
		Where("external_id = ?", externalID).
		First(&identity).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &identity, nil
}

// IdentitiesByStaffID returns the active chat identities linked to a staff record.
func (s *Store) IdentitiesByStaffID(ctx context.Context, staffID uint) ([]models.StaffIdentity, error) {
	var identities []models.StaffIdentity
	err := s.db.WithContext(ctx).
		Preload("Staff").
		Where("staff_id = ? AND status = ?", staffID, models.IdentityActive).
		Find(&identities).Error
	return identities, err
}

// IdentitiesByRole returns active identities of active staff holding role. With onlineOnly
// set, only staff currently marked present are returned.
func (s *Store) IdentitiesByRole(ctx context.Context, role models.Role, onlineOnly bool) ([]models.StaffIdentity, error) {
	q := s.db.WithContext(ctx).
		Preload("Staff").
		Joins("JOIN staff_members ON staff_members.id = staff_identities.staff_id").
		Where("staff_identities.status = ?", models.IdentityActive).
		Where("staff_members.role = ? AND staff_members.active = ?", role, true)
	if onlineOnly {
		q = q.Where("staff_members.is_online = ?", true)
	}

	var identities []models.StaffIdentity
	if err := q.Order("staff_identities.id").Find(&identities).Error; err != nil {
		return nil, err
	}
	return identities, nil
}

// ActiveAdministrators returns every active administrator identity regardless of presence.
func (s *Store) ActiveAdministrators(ctx context.Context) ([]models.StaffIdentity, error) {
	return s.IdentitiesByRole(ctx, models.RoleAdmin, false)
}

// UpsertIdentity inserts the mapping or, when the external id already exists, rebinds it.
func (s *Store) UpsertIdentity(ctx context.Context, identity *models.StaffIdentity) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"staff_id", "display_name", "picture_url", "status", "menu_key", "updated_at",
		}),
	}).Create(identity).Error
}

func (s *Store) SetPresence(ctx context.Context, staffID uint, online bool) error {
	return s.db.WithContext(ctx).
		Model(&models.Staff{}).
		Where("id = ?", staffID).
		Update("is_online", online).Error
}

func (s *Store) CreateAttendance(ctx context.Context, a *models.Attendance) error {
	return s.db.WithContext(ctx).Create(a).Error
}

// ---- registration codes ----

func (s *Store) CreateCode(ctx context.Context, code *models.RegistrationCode) error {
	return s.db.WithContext(ctx).Create(code).Error
}

// FindUsableCode returns the code only while it is unused and unexpired at now.
func (s *Store) FindUsableCode(ctx context.Context, code string, now time.Time) (*models.RegistrationCode, error) {
	var rc models.RegistrationCode
	err := s.db.WithContext(ctx).
		Where("code = ? AND used_at IS NULL AND expires_at > ?", code, now).
		First(&rc).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rc, nil
}

// ConsumeCode marks the code used. It affects zero rows when somebody else consumed it first.
func (s *Store) ConsumeCode(ctx context.Context, id uint, externalID string, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.RegistrationCode{}).
		Where("id = ? AND used_at IS NULL", id).
		Updates(map[string]any{"used_at": now, "used_by": externalID})
	return res.RowsAffected, res.Error
}

// PurgeExpiredCodes deletes unused codes that expired before the cutoff.
func (s *Store) PurgeExpiredCodes(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("used_at IS NULL AND expires_at < ?", before).
		Delete(&models.RegistrationCode{})
	return res.RowsAffected, res.Error
}

// ---- rooms ----

func (s *Store) RoomByID(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	if err := s.db.WithContext(ctx).First(&room, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

func (s *Store) SetRoomStatus(ctx context.Context, roomID uint, status models.RoomStatus) error {
	return s.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", roomID).
		Updates(map[string]any{"status": status, "updated_at": time.Now()}).Error
}

// ---- cleaning tasks ----

func (s *Store) CreateTask(ctx context.Context, task *models.CleaningTask) error {
	return s.db.WithContext(ctx).Create(task).Error
}

func (s *Store) TaskByID(ctx context.Context, id uint) (*models.CleaningTask, error) {
	var task models.CleaningTask
	err := s.db.WithContext(ctx).Preload("Room").Preload("Assignee").First(&task, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &task, nil
}

// TasksByAssignee lists the staff member's tasks in the given statuses, most recent first.
func (s *Store) TasksByAssignee(ctx context.Context, staffID uint, statuses ...models.TaskStatus) ([]models.CleaningTask, error) {
	var tasks []models.CleaningTask
	err := s.db.WithContext(ctx).
		Preload("Room").
		Where("assignee_id = ? AND status IN ?", staffID, statuses).
		Order("updated_at DESC, id DESC").
		Find(&tasks).Error
	return tasks, err
}

// CompareAndSetTask applies updates to task id iff its status is one of from and, when
// assigneeID is non-nil, it is owned by that staff member.
func (s *Store) CompareAndSetTask(ctx context.Context, id uint, from []models.TaskStatus, assigneeID *uint, updates map[string]any) (int64, error) {
	q := s.db.WithContext(ctx).
		Model(&models.CleaningTask{}).
		Where("id = ? AND status IN ?", id, from)
	if assigneeID != nil {
		q = q.Where("assignee_id = ?", *assigneeID)
	}
	res := q.Updates(withUpdatedAt(updates))
	return res.RowsAffected, res.Error
}

// TaskFilter narrows ListTasks. Zero values match everything.
type TaskFilter struct {
	Status models.TaskStatus
	RoomID uint
	Limit  int
}

// ListTasks returns tasks newest first for the management API.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]models.CleaningTask, error) {
	q := s.db.WithContext(ctx).Preload("Room").Preload("Assignee")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.RoomID != 0 {
		q = q.Where("room_id = ?", f.RoomID)
	}
	var tasks []models.CleaningTask
	err := q.Order("id DESC").Limit(limitOrDefault(f.Limit)).Find(&tasks).Error
	return tasks, err
}

// ---- maintenance reports ----

func (s *Store) CreateReport(ctx context.Context, report *models.MaintenanceReport) error {
	return s.db.WithContext(ctx).Create(report).Error
}

func (s *Store) ReportByID(ctx context.Context, id uint) (*models.MaintenanceReport, error) {
	var report models.MaintenanceReport
	err := s.db.WithContext(ctx).Preload("Room").Preload("Assignee").First(&report, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &report, nil
}

func (s *Store) ReportsByAssignee(ctx context.Context, staffID uint, statuses ...models.ReportStatus) ([]models.MaintenanceReport, error) {
	var reports []models.MaintenanceReport
	err := s.db.WithContext(ctx).
		Preload("Room").
		Where("assignee_id = ? AND status IN ?", staffID, statuses).
		Order("updated_at DESC, id DESC").
		Find(&reports).Error
	return reports, err
}

// CompareAndSetReport is the report counterpart of CompareAndSetTask.
func (s *Store) CompareAndSetReport(ctx context.Context, id uint, from []models.ReportStatus, assigneeID *uint, updates map[string]any) (int64, error) {
	q := s.db.WithContext(ctx).
		Model(&models.MaintenanceReport{}).
		Where("id = ? AND status IN ?", id, from)
	if assigneeID != nil {
		q = q.Where("assignee_id = ?", *assigneeID)
	}
	res := q.Updates(withUpdatedAt(updates))
	return res.RowsAffected, res.Error
}

// ReportFilter narrows ListReports. Zero values match everything.
type ReportFilter struct {
	Status models.ReportStatus
	RoomID uint
	Limit  int
}

func (s *Store) ListReports(ctx context.Context, f ReportFilter) ([]models.MaintenanceReport, error) {
	q := s.db.WithContext(ctx).Preload("Room").Preload("Assignee")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.RoomID != 0 {
		q = q.Where("room_id = ?", f.RoomID)
	}
	var reports []models.MaintenanceReport
	err := q.Order("id DESC").Limit(limitOrDefault(f.Limit)).Find(&reports).Error
	return reports, err
}

// ---- notification audit log ----

// RecordNotifications appends audit rows. Rows are never updated afterwards.
func (s *Store) RecordNotifications(ctx context.Context, records []models.Notification) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(records, 100).Error
}

func withUpdatedAt(updates map[string]any) map[string]any {
	out := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		out[k] = v
	}
	if _, ok := out["updated_at"]; !ok {
		out["updated_at"] = time.Now()
	}
	return out
}

func limitOrDefault(n int) int {
	switch {
	case n <= 0:
		return 100
	case n > 500:
		return 500
	}
	return n
}
