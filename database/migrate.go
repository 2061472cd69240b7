package database

import (
	"fmt"
	"os"
	"strings"

	"github.com/yeremiapane/roomturn/models"
	"github.com/yeremiapane/roomturn/utils"
	"gorm.io/gorm"
)

// Migrate creates or updates every table this service reads or writes.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Staff{},
		&models.StaffIdentity{},
		&models.RegistrationCode{},
		&models.Room{},
		&models.CleaningTask{},
		&models.MaintenanceReport{},
		&models.Notification{},
		&models.Attendance{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
	return nil
}

// ExecuteSQLFile runs a seed file statement by statement. Statements are separated by ";"
// at the end of a line; lines starting with "--" are skipped. A failing statement is logged
// and the rest still run. It returns the number of statements that succeeded.
func ExecuteSQLFile(db *gorm.DB, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var (
		buf strings.Builder
		ok  int
	)
	flush := func() {
		stmt := strings.TrimSpace(buf.String())
		buf.Reset()
		if stmt == "" {
			return
		}
		if err := db.Exec(stmt).Error; err != nil {
			utils.ErrorLogger.Printf("Error executing seed statement: %v\nStatement: %s", err, stmt)
			return
		}
		ok++
	}

	for _, line := range strings.Split(string(raw), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		buf.WriteString(line)
		buf.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()

	utils.InfoLogger.Printf("Seed file %s: %d statement(s) executed", path, ok)
	return ok, nil
}
