package services

import (
	"context"
	"fmt"

	"github.com/yeremiapane/roomturn/database"
	"github.com/yeremiapane/roomturn/models"
)

// Tier is the fallback level an audience was resolved at.
type Tier int

const (
	TierNone Tier = iota
	TierOnline
	TierActive
	TierEscalated
)

func (t Tier) String() string {
	switch t {
	case TierOnline:
		return "online"
	case TierActive:
		return "active"
	case TierEscalated:
		return "escalated"
	}
	return "none"
}

// Audience is the resolved recipient set. An empty audience is a valid result.
type Audience struct {
	Role       models.Role
	Tier       Tier
	Recipients []models.StaffIdentity
}

func (a Audience) Empty() bool { return len(a.Recipients) == 0 }

func (a Audience) ExternalIDs() []string {
	ids := make([]string, 0, len(a.Recipients))
	for _, r := range a.Recipients {
		ids = append(ids, r.ExternalID)
	}
	return ids
}

type RecipientSelector struct {
	store *database.Store
}

func NewRecipientSelector(store *database.Store) *RecipientSelector {
	return &RecipientSelector{store: store}
}

// Select returns staff of role who are online, or every active staff of role when nobody
// is online. It stops at the first non-empty tier.
func (rs *RecipientSelector) Select(ctx context.Context, role models.Role) (Audience, error) {
	online, err := rs.store.IdentitiesByRole(ctx, role, true)
	if err != nil {
		return Audience{}, fmt.Errorf("select online %s: %w", role, err)
	}
	if len(online) > 0 {
		return Audience{Role: role, Tier: TierOnline, Recipients: online}, nil
	}

	active, err := rs.store.IdentitiesByRole(ctx, role, false)
	if err != nil {
		return Audience{}, fmt.Errorf("select active %s: %w", role, err)
	}
	if len(active) > 0 {
		return Audience{Role: role, Tier: TierActive, Recipients: active}, nil
	}
	return Audience{Role: role, Tier: TierNone}, nil
}

// SelectForRepair resolves technicians and escalates to administrators when there is no
// technician at all.
func (rs *RecipientSelector) SelectForRepair(ctx context.Context) (Audience, error) {
	audience, err := rs.Select(ctx, models.RoleTechnician)
	if err != nil || !audience.Empty() {
		return audience, err
	}

	admins, err := rs.store.ActiveAdministrators(ctx)
	if err != nil {
		return Audience{}, fmt.Errorf("escalate to administrators: %w", err)
	}
	if len(admins) == 0 {
		return Audience{Role: models.RoleTechnician, Tier: TierNone}, nil
	}
	return Audience{Role: models.RoleAdmin, Tier: TierEscalated, Recipients: admins}, nil
}

// Administrators returns every active administrator.
func (rs *RecipientSelector) Administrators(ctx context.Context) (Audience, error) {
	admins, err := rs.store.ActiveAdministrators(ctx)
	if err != nil {
		return Audience{}, fmt.Errorf("select administrators: %w", err)
	}
	if len(admins) == 0 {
		return Audience{Role: models.RoleAdmin, Tier: TierNone}, nil
	}
	return Audience{Role: models.RoleAdmin, Tier: TierActive, Recipients: admins}, nil
}
