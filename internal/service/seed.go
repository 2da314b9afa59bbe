package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"go-freshflow/internal/model"
	"go-freshflow/internal/repository"
)

// SeedIdentity creates the default privileges and roles, grants them, and
// creates the first admin user when no user with adminEmail exists. It is
// safe to run on every start.
func SeedIdentity(
	ctx context.Context,
	privilegeRepo repository.PrivilegeRepository,
	roleRepo repository.RoleRepository,
	userRepo repository.UserRepository,
	adminEmail, adminPassword string,
	log *zap.Logger,
) error {
	if log == nil {
		log = zap.NewNop()
	}
	if err := privilegeRepo.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("seed privileges: %w", err)
	}
	if err := roleRepo.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	all, err := privilegeRepo.FindAll(ctx)
	if err != nil {
		return err
	}
	operatorPrivs, err := privilegeRepo.FindByCodes(ctx, model.OperatorPrivileges)
	if err != nil {
		return err
	}

	grants := map[string][]model.Privilege{
		model.RoleAdmin:    all,
		model.RoleOperator: operatorPrivs,
	}
	for code, privs := range grants {
		role, err := roleRepo.FindByCode(ctx, code)
		if err != nil {
			return fmt.Errorf("load role %s: %w", code, err)
		}
		if len(role.Privileges) > 0 {
			continue
		}
		if err := roleRepo.AssignPrivileges(ctx, role, privs); err != nil {
			return fmt.Errorf("grant role %s: %w", code, err)
		}
		log.Info("role privileges granted", zap.String("role", code), zap.Int("count", len(privs)))
	}

	if adminEmail == "" {
		return nil
	}
	if _, err := userRepo.FindByEmail(ctx, adminEmail); err == nil {
		return nil
	} else if !repository.IsNotFound(err) {
		return err
	}
	if adminPassword == "" {
		return errors.New("ADMIN_PASSWORD is required to create the first admin user")
	}

	adminRole, err := roleRepo.FindByCode(ctx, model.RoleAdmin)
	if err != nil {
		return err
	}
	admin := &model.User{
		Email:      adminEmail,
		FullName:   "Administrator",
		RoleID:     &adminRole.ID,
		IsActive:   true,
		Privileges: adminRole.Privileges,
	}
	admin.Stamp("system")
	if err := admin.SetPassword(adminPassword); err != nil {
		return err
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Info("admin user created", zap.String("email", adminEmail))
	return nil
}
