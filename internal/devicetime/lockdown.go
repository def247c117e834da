// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package devicetime

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ManuGH/wdagate/internal/localexec"
)

// ErrIncompleteReading is returned when the device did not report a timestamp.
var ErrIncompleteReading = errors.New("devicetime: device did not report TimeIntervalSince1970")

// LockdownSource reads the clock of a USB attached device through the
// libimobiledevice ideviceinfo tool.
type LockdownSource struct {
	Runner localexec.Runner
	// Binary defaults to "ideviceinfo".
	Binary string
}

// DeviceTime implements Source.
func (s LockdownSource) DeviceTime(ctx context.Context, udid string) (Reading, error) {
	bin := s.Binary
	if bin == "" {
		bin = "ideviceinfo"
	}
	args := []string{}
	if udid != "" {
		args = append(args, "-u", udid)
	}

	res, err := s.Runner.Run(ctx, bin, args...)
	if err != nil {
		return Reading{}, fmt.Errorf("devicetime: query lockdown: %w", err)
	}
	return parseLockdown(res.Stdout)
}

// parseLockdown maps ideviceinfo "Key: Value" output into a Reading.
// TimeZoneOffsetFromUTC is reported in seconds and stored as minutes.
func parseLockdown(out string) (Reading, error) {
	var (
		r      Reading
		haveTS bool
	)
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "TimeIntervalSince1970":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return Reading{}, fmt.Errorf("devicetime: bad TimeIntervalSince1970 %q: %w", value, err)
			}
			r.Timestamp = int64(math.Floor(f))
			haveTS = true
		case "TimeZoneOffsetFromUTC":
			f, err := strconv.ParseFloat(value, 64)
			if err == nil {
				minutes := f / 60
				r.UTCOffset = &minutes
			}
		case "TimeZone":
			r.TimeZone = ZoneName(value)
		}
	}
	if err := sc.Err(); err != nil {
		return Reading{}, fmt.Errorf("devicetime: read lockdown output: %w", err)
	}
	if !haveTS {
		return Reading{}, ErrIncompleteReading
	}
	return r, nil
}
