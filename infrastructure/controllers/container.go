package controllers

import (
	"go.uber.org/dig"
)

// RegisterProviders registers all controller providers with the DIG container.
func RegisterProviders(container *dig.Container) error {
	if err := container.Provide(NewLoginController); err != nil {
		return err
	}
	if err := container.Provide(NewLogoutController); err != nil {
		return err
	}
	if err := container.Provide(NewSyncController); err != nil {
		return err
	}
	if err := container.Provide(NewStatusController); err != nil {
		return err
	}
	if err := container.Provide(NewControllers); err != nil {
		return err
	}

	return nil
}

// NewControllers aggregates all controllers into the list main binds to Cobra.
func NewControllers(
	loginController *LoginController,
	logoutController *LogoutController,
	syncController *SyncController,
	statusController *StatusController,
) *[]Controller {
	return &[]Controller{
		loginController,
		logoutController,
		syncController,
		statusController,
	}
}
