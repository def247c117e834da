// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/ManuGH/wdagate/internal/config"
	"github.com/ManuGH/wdagate/internal/log"
	"github.com/rs/zerolog"
)

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// PerformStartupChecks validates the environment before the server starts.
// Missing device tools only warn; they affect getDeviceTime alone.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkListenAddr(cfg.API.Listen); err != nil {
		return err
	}
	if cfg.Audit.DBPath != "" {
		if err := checkDataDir(logger, filepath.Dir(cfg.Audit.DBPath)); err != nil {
			return fmt.Errorf("audit journal directory check failed: %w", err)
		}
	}
	checkDeviceTools(logger, cfg.Device)

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkListenAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid API listen address %q: %w", addr, err)
	}
	if port == "" {
		return nil
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid API listen port %q in %q", port, addr)
	}
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("journal directory is writable")
	return nil
}

func checkDeviceTools(logger zerolog.Logger, dev config.DeviceConfig) {
	tool := dev.IDeviceInfo
	if dev.Simulator {
		tool = "date"
	} else if dev.UDID == "" {
		logger.Warn().Msg("no device udid configured; getDeviceTime is unavailable")
		return
	}
	if _, err := lookPath(tool); err != nil {
		logger.Warn().Err(err).Str("binary", tool).Msg("device time tool not found; getDeviceTime will fail")
	}
}
