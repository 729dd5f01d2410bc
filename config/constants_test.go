/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riftsim/rift/fsm/lie"
	"github.com/riftsim/rift/fsm/ztp"
	"github.com/riftsim/rift/protocol"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func writeIni(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "constants.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingSectionLeavesConstantsZero(t *testing.T) {
	path := writeIni(t, "[unrelated]\nfoo = bar\n")
	c, err := Load(path)
	require.NoError(t, err)
	require.Zero(t, c.DefaultLieHoldtimeSeconds)
	require.Zero(t, c.MultipleNeighborsLieHoldtimeMultiplier)
	require.Zero(t, c.ZTPHolddownSeconds)
}

func TestLoadParsesConstantsSection(t *testing.T) {
	path := writeIni(t, "[constants]\ndefault_lie_holdtime = 7\nmultiple_neighbors_lie_holdtime_multiplier = 5\nztp_holddown_seconds = 20\n")
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7, c.DefaultLieHoldtimeSeconds)
	require.Equal(t, 5, c.MultipleNeighborsLieHoldtimeMultiplier)
	require.Equal(t, 20, c.ZTPHolddownSeconds)
}

func TestApplyLIEOverridesOnlyNonZeroFields(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	f := lie.New(1, 0, clock)
	c := &Constants{MultipleNeighborsLieHoldtimeMultiplier: 9}

	c.ApplyLIE(f)

	require.Equal(t, uint16(lie.DefaultLieHoldtimeSeconds), f.Holdtime)
	require.Equal(t, 9, f.MultipleNeighborsLieHoldtimeMultiplier)
}

func TestApplyZTPOverridesHolddownDuration(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	f := ztp.New(1, protocol.LevelUndefined, false, clock)
	c := &Constants{ZTPHolddownSeconds: 42}

	c.ApplyZTP(f)

	require.Equal(t, 42*time.Second, f.HolddownDuration)
}

func TestApplyOnNilConstantsIsNoop(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	f := lie.New(1, 0, clock)
	var c *Constants
	c.ApplyLIE(f)
	require.Equal(t, uint16(lie.DefaultLieHoldtimeSeconds), f.Holdtime)
}
