package access

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

var defaultPermissions = map[domain.Role][]domain.Permission{
	domain.RoleAttendant: {
		domain.PermissionViewTicket,
		domain.PermissionAddTicket,
		domain.PermissionChangeTicket,
	},
	domain.RoleTechnician: {
		domain.PermissionViewTicket,
		domain.PermissionChangeTicket,
	},
}

// DefaultPermissions returns the codenames derived from role.
func DefaultPermissions(role domain.Role) ([]domain.Permission, error) {
	perms, ok := defaultPermissions[role]
	if !ok {
		return nil, fmt.Errorf("no default permissions for role %q", role)
	}
	return append([]domain.Permission(nil), perms...), nil
}

// PermissionGranter writes derived permissions.
type PermissionGranter struct {
	users  repository.UserRepository
	perms  repository.PermissionRepository
	logger *zap.Logger
}

// NewPermissionGranter wires the granter.
func NewPermissionGranter(users repository.UserRepository, perms repository.PermissionRepository, logger *zap.Logger) *PermissionGranter {
	return &PermissionGranter{users: users, perms: perms, logger: logger}
}

// Grant writes the role defaults for user. Failures are logged and returned.
func (g *PermissionGranter) Grant(ctx context.Context, user *domain.User) error {
	perms, err := DefaultPermissions(user.Role)
	if err == nil {
		err = g.perms.Grant(ctx, user.ID, perms)
	}
	if err != nil {
		g.logger.Error("grant default permissions failed",
			zap.String("user_id", user.ID),
			zap.String("role", string(user.Role)),
			zap.Error(err),
		)
		return fmt.Errorf("grant permissions to %s: %w", user.ID, err)
	}
	g.logger.Debug("default permissions granted",
		zap.String("user_id", user.ID),
		zap.Int("count", len(perms)),
	)
	return nil
}

// ReconcileReport summarizes a Reconcile run.
type ReconcileReport struct {
	Users  int
	Failed []string
}

// Reconcile grants missing defaults to every user. It keeps going past failures
// and returns them joined.
func (g *PermissionGranter) Reconcile(ctx context.Context) (ReconcileReport, error) {
	users, err := g.users.List(ctx)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("list users: %w", err)
	}

	report := ReconcileReport{Users: len(users)}
	var errs []error
	for i := range users {
		if err := g.Grant(ctx, &users[i]); err != nil {
			report.Failed = append(report.Failed, users[i].ID)
			errs = append(errs, err)
		}
	}

	g.logger.Info("permission reconcile finished",
		zap.Int("users", report.Users),
		zap.Int("failed", len(report.Failed)),
	)
	return report, errors.Join(errs...)
}
