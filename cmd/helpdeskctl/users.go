package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk/internal/access"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
)

var createUserCmd = &cobra.Command{
	Use:   "createuser",
	Short: "Register an account and grant its role permissions",
	RunE:  runCreateUser,
}

var syncPermissionsCmd = &cobra.Command{
	Use:   "sync-permissions",
	Short: "Grant missing role permissions to every user",
	RunE:  runSyncPermissions,
}

func init() {
	f := createUserCmd.Flags()
	f.String("email", "", "login email")
	f.String("password", "", "initial password")
	f.String("role", "attendant", "attendant or technician")
	f.Bool("superuser", false, "grant superuser status")
	f.Bool("staff", false, "mark as staff")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("password")
}

func runCreateUser(cmd *cobra.Command, _ []string) error {
	rt, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	input, err := registerInputFromFlags(cmd)
	if err != nil {
		return err
	}

	pool := rt.pg.PoolHandle()
	users := repository.NewUserRepository(pool)
	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:   users,
		Granter:    access.NewPermissionGranter(users, repository.NewPermissionRepository(pool), rt.logger),
		BcryptCost: rt.cfg.Auth.BcryptCost,
		Logger:     rt.logger,
	})

	user, err := authService.RegisterUser(cmd.Context(), input)
	if err != nil {
		if user != nil {
			return fmt.Errorf("user %s created but permissions were not granted, run sync-permissions: %w", user.ID, err)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", user.Email, user.Role, user.ID)
	return nil
}

func registerInputFromFlags(cmd *cobra.Command) (service.RegisterInput, error) {
	f := cmd.Flags()
	var input service.RegisterInput
	var err error
	if input.Email, err = f.GetString("email"); err != nil {
		return input, err
	}
	if input.Password, err = f.GetString("password"); err != nil {
		return input, err
	}
	if input.Role, err = f.GetString("role"); err != nil {
		return input, err
	}
	if input.IsSuperuser, err = f.GetBool("superuser"); err != nil {
		return input, err
	}
	if input.IsStaff, err = f.GetBool("staff"); err != nil {
		return input, err
	}
	return input, nil
}

func runSyncPermissions(cmd *cobra.Command, _ []string) error {
	rt, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	pool := rt.pg.PoolHandle()
	granter := access.NewPermissionGranter(repository.NewUserRepository(pool), repository.NewPermissionRepository(pool), rt.logger)
	report, err := granter.Reconcile(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "checked %d users, %d failed\n", report.Users, len(report.Failed))
	return err
}
