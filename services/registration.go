package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/roomturn/database"
	"github.com/yeremiapane/roomturn/models"
	"github.com/yeremiapane/roomturn/utils"
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// Registration resolves chat identities to staff and onboards new staff with one-time codes.
type Registration struct {
	store    *database.Store
	profiles *ProfileCache
	client   Messenger
	// richMenus maps a role menu key to the platform's rich menu id.
	richMenus map[string]string
	now       func() time.Time
}

func NewRegistration(store *database.Store, profiles *ProfileCache, client Messenger, richMenus map[string]string) *Registration {
	return &Registration{
		store:     store,
		profiles:  profiles,
		client:    client,
		richMenus: richMenus,
		now:       time.Now,
	}
}

// Resolve returns the active identity for an external user, or ErrNotRegistered.
func (r *Registration) Resolve(ctx context.Context, externalID string) (*models.StaffIdentity, error) {
	if externalID == "" {
		return nil, ErrNotRegistered
	}
	identity, err := r.store.IdentityByExternalID(ctx, externalID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	if identity.Status != models.IdentityActive || !identity.Staff.Active {
		return nil, ErrNotRegistered
	}
	return identity, nil
}

// Register consumes code for externalID and binds the identity to the code's staff record.
func (r *Registration) Register(ctx context.Context, externalID, code string) (*models.StaffIdentity, error) {
	invalid := reject(ErrInvalidCode, "This registration code is invalid or has expired. Please ask your manager for a new one.")

	now := r.now()
	rc, err := r.store.FindUsableCode(ctx, code, now)
	if errors.Is(err, database.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, fmt.Errorf("find registration code: %w", err)
	}

	staff, err := r.store.StaffByID(ctx, rc.StaffID)
	if errors.Is(err, database.ErrNotFound) || (err == nil && !staff.Active) {
		return nil, invalid
	}
	if err != nil {
		return nil, fmt.Errorf("load staff: %w", err)
	}

	identity := &models.StaffIdentity{
		ExternalID:  externalID,
		StaffID:     staff.ID,
		DisplayName: staff.Name,
		Status:      models.IdentityActive,
		MenuKey:     staff.Role.MenuKey(),
	}
	if r.profiles != nil {
		profile, err := r.profiles.Lookup(ctx, externalID)
		if err != nil {
			utils.ErrorLogger.WithError(err).WithField("user_id", externalID).
				Warn("profile lookup failed, using staff name")
		} else if profile.DisplayName != "" {
			identity.DisplayName = profile.DisplayName
			identity.PictureURL = profile.PictureURL
		}
	}

	err = r.store.Transaction(ctx, func(tx *database.Store) error {
		n, err := tx.ConsumeCode(ctx, rc.ID, externalID, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return invalid
		}
		return tx.UpsertIdentity(ctx, identity)
	})
	if err != nil {
		if _, ok := AsRejection(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("register identity: %w", err)
	}

	identity.Staff = *staff
	r.BindMenu(ctx, identity)

	utils.InfoLogger.WithFields(logrus.Fields{
		"user_id":  externalID,
		"staff_id": staff.ID,
		"role":     staff.Role,
	}).Info("staff registered")
	return identity, nil
}

// BindMenu links the role's rich menu to the user. Failures are logged only.
func (r *Registration) BindMenu(ctx context.Context, identity *models.StaffIdentity) {
	menuID := r.richMenus[identity.MenuKey]
	if menuID == "" || r.client == nil {
		return
	}
	if err := r.client.LinkRichMenu(ctx, identity.ExternalID, menuID); err != nil {
		utils.ErrorLogger.WithError(err).WithField("user_id", identity.ExternalID).Warn("rich menu link failed")
	}
}

// IssueCode creates a fresh one-time code for staffID valid for ttl.
func (r *Registration) IssueCode(ctx context.Context, staffID uint, ttl time.Duration) (*models.RegistrationCode, error) {
	staff, err := r.store.StaffByID(ctx, staffID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("staff %d: %w", staffID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, err
		}
		rc := &models.RegistrationCode{
			Code:      code,
			StaffID:   staff.ID,
			ExpiresAt: r.now().Add(ttl),
		}
		if lastErr = r.store.CreateCode(ctx, rc); lastErr == nil {
			return rc, nil
		}
	}
	return nil, fmt.Errorf("issue registration code: %w", lastErr)
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
