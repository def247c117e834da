// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package commands

import (
	"context"

	xglog "github.com/ManuGH/wdagate/internal/log"
	"github.com/ManuGH/wdagate/internal/wda"
)

// LaunchApp starts the configured app.
//
// Deprecated: use the endpoint's app management commands with an explicit
// bundle id.
func (c *Commands) LaunchApp(ctx context.Context) error {
	return c.deprecatedAppCall(ctx, "launchApp", "/wda/apps/launch")
}

// CloseApp terminates the configured app.
//
// Deprecated: use the endpoint's app management commands with an explicit
// bundle id.
func (c *Commands) CloseApp(ctx context.Context) error {
	return c.deprecatedAppCall(ctx, "closeApp", "/wda/apps/terminate")
}

func (c *Commands) deprecatedAppCall(ctx context.Context, command, path string) error {
	logger := c.logger.With().
		Str(xglog.FieldCommand, command).
		Str(xglog.FieldBundleID, c.device.BundleID).
		Logger()
	logger.Warn().
		Str(xglog.FieldEvent, "command.deprecated").
		Msg("command is deprecated and will be removed")

	if c.device.BundleID == "" {
		return invalidArgument(command, "bundleId", "no bundle id configured", "")
	}

	_, err := c.proxy.ProxyCommand(ctx, wda.Post(path, map[string]any{"bundleId": c.device.BundleID}, true))
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEndpoint, path).Msg("deprecated command failed")
		return err
	}
	return nil
}
