// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	orig := Commit
	t.Cleanup(func() { Commit = orig })
	Commit = "abc1234"
	assert.Contains(t, String(), "commit: abc1234")
	assert.Contains(t, String(), Version)
}
