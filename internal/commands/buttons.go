// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package commands

import (
	"context"
	"encoding/json"
	"strings"

	xglog "github.com/ManuGH/wdagate/internal/log"
	"github.com/ManuGH/wdagate/internal/wda"
	"github.com/agnivade/levenshtein"
	"golang.org/x/text/unicode/norm"
)

// KnownButtons are the hardware buttons the endpoint is known to accept.
// Other names are forwarded; the endpoint decides.
var KnownButtons = []string{"home", "volumeUp", "volumeDown"}

// PressButton presses a hardware button, optionally holding it for duration
// seconds.
func (c *Commands) PressButton(ctx context.Context, name string, duration *float64) (json.RawMessage, error) {
	if strings.TrimSpace(name) == "" {
		return nil, invalidArgument("pressButton", "name", "must be a non-empty string", name)
	}

	if suggestion, known := closestButton(name); !known {
		ev := c.logger.Warn().Str(xglog.FieldButton, name)
		if suggestion != "" {
			ev = ev.Str("suggestion", suggestion)
		}
		ev.Msg("button name not in the known set, forwarding anyway")
	}

	body := map[string]any{"name": name}
	if duration != nil {
		body["duration"] = *duration
	}
	return c.proxy.ProxyCommand(ctx, wda.Post("/wda/pressButton", body, false))
}

// closestButton reports whether name is known and otherwise the closest
// known name within an edit distance of 3.
func closestButton(name string) (string, bool) {
	best, bestDist := "", 4
	lower := strings.ToLower(name)
	for _, b := range KnownButtons {
		if b == name {
			return b, true
		}
		if d := levenshtein.ComputeDistance(lower, strings.ToLower(b)); d < bestDist {
			best, bestDist = b, d
		}
	}
	return best, false
}

// SiriCommand asks Siri to process text. Text is NFC normalized first.
func (c *Commands) SiriCommand(ctx context.Context, text string) (json.RawMessage, error) {
	normalized := norm.NFC.String(text)
	if strings.TrimSpace(normalized) == "" {
		return nil, invalidArgument("siri", "text", "must be a non-empty string", text)
	}
	return c.proxy.ProxyCommand(ctx, wda.Post("/wda/siri/activate", map[string]any{"text": normalized}, false))
}
