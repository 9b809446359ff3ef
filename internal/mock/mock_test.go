// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mock

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/emitor/pkg/mtr"
)

var fixedNow = time.Date(2025, time.April, 12, 14, 0, 0, 0, time.Local)

func newTestDevice(cfg Config, opts ...Option) *Device {
	opts = append([]Option{
		WithRand(rand.New(rand.NewSource(1))),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	return NewDevice(cfg, opts...)
}

// decode runs the bytes through a real reader.
func decode(t *testing.T, data []byte) []mtr.Message {
	t.Helper()
	transport := struct {
		io.Reader
		io.Writer
	}{bytes.NewReader(data), io.Discard}
	msgs, err := mtr.NewReader(transport).Receive()
	require.NoError(t, err)
	return msgs
}

// ============================================================
// Command Detection Tests
// ============================================================

func TestListenCommand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"status", "/ST", mtr.CommandStatus},
		{"spool all", "/SA", mtr.CommandSpoolAll},
		{"leading noise", "xx//S/ST", mtr.CommandStatus},
		{"first command wins", "/SA/ST", mtr.CommandSpoolAll},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := newTestDevice(DefaultConfig()).ListenCommand(context.Background(), strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
		})
	}
}

func TestListenCommand_Unknown(t *testing.T) {
	_, err := newTestDevice(DefaultConfig()).ListenCommand(context.Background(), strings.NewReader("/SX/XA"))
	assert.ErrorIs(t, err, io.EOF)
}

func TestListenCommand_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestDevice(DefaultConfig()).ListenCommand(ctx, strings.NewReader("/ST"))
	assert.ErrorIs(t, err, context.Canceled)
}

// ============================================================
// Response Tests
// ============================================================

func TestStatusFrame(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MTRID = 33145
	cfg.Messages = 12
	d := newTestDevice(cfg)

	msgs := decode(t, d.StatusFrame())
	require.Len(t, msgs, 1)
	status, ok := msgs[0].(*mtr.StatusMessage)
	require.True(t, ok)
	assert.Equal(t, uint16(33145), status.MTRID)
	assert.Equal(t, mtr.TimestampFromTime(fixedNow), status.Timestamp)
	assert.Equal(t, uint32(12), status.StoredPackages())
}

func TestRandomMTRID(t *testing.T) {
	d := newTestDevice(DefaultConfig())
	assert.NotZero(t, d.MTRID())
	assert.Equal(t, d.MTRID(), d.StatusMessage().MTRID)
}

func TestGenerate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MTRID = 7
	cfg.Messages = 20
	d := newTestDevice(cfg)

	msgs := decode(t, d.SpoolFrames())
	data := mtr.DataMessages(msgs)
	require.Len(t, data, 20)

	for i, m := range data {
		assert.Equal(t, uint16(7), m.MTRID)
		assert.Equal(t, uint32(i+1), m.PackageNumber)
		assert.True(t, m.CardID >= 1 && m.CardID <= mtr.MaxCardID)

		readAt := fixedNow.Add(-time.Duration(20-(i+1)) * 2 * time.Minute)
		assert.Equal(t, mtr.TimestampFromTime(readAt), m.Timestamp)

		recorded := m.Splits.Recorded()
		require.NotEmpty(t, recorded)
		assert.Equal(t, mtr.Split{Code: 0, Seconds: 0}, recorded[0])
		assert.Equal(t, uint8(249), recorded[len(recorded)-1].Code)
		for j := 1; j < len(recorded); j++ {
			gap := int(recorded[j].Seconds) - int(recorded[j-1].Seconds)
			assert.True(t, gap >= cfg.MinGap && gap <= cfg.MaxGap, "gap %d", gap)
		}
		assert.Empty(t, mtr.ValidateMessage(m))
	}
}

func TestGenerate_Reproducible(t *testing.T) {
	a := newTestDevice(DefaultConfig()).SpoolFrames()
	b := newTestDevice(DefaultConfig()).SpoolFrames()
	assert.Equal(t, a, b)
}

func TestReplay(t *testing.T) {
	recording := []byte{0x01, 0x02, 0x03}
	d := newTestDevice(DefaultConfig(), WithReplay(recording))

	var out bytes.Buffer
	n, err := d.Respond(&out, mtr.CommandSpoolAll)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, recording, out.Bytes())
	assert.Zero(t, d.StatusMessage().RecentPackage)
}

func TestRespond_Unknown(t *testing.T) {
	_, err := newTestDevice(DefaultConfig()).Respond(io.Discard, "/XX")
	assert.Error(t, err)
}

type pipeTransport struct {
	in  io.Reader
	out bytes.Buffer
}

func (p *pipeTransport) Read(b []byte) (int, error)  { return p.in.Read(b) }
func (p *pipeTransport) Write(b []byte) (int, error) { return p.out.Write(b) }

func TestServe(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Messages = 3
	d := newTestDevice(cfg)

	transport := &pipeTransport{in: strings.NewReader("/ST junk /SA")}
	require.NoError(t, d.Serve(context.Background(), transport))

	msgs := decode(t, transport.out.Bytes())
	require.Len(t, msgs, 4)
	assert.IsType(t, &mtr.StatusMessage{}, msgs[0])
	assert.Len(t, mtr.DataMessages(msgs), 3)
}

// ============================================================
// Config Tests
// ============================================================

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courses.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mtrId: 4242
messages: 5
courses:
  - name: sprint
    controls: [0, 41, 42, 249]
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(4242), cfg.MTRID)
	assert.Equal(t, 5, cfg.Messages)
	assert.Equal(t, 60, cfg.MinGap)
	assert.Equal(t, 900, cfg.MaxGap)
	require.Len(t, cfg.Courses, 1)
	assert.Equal(t, []uint8{0, 41, 42, 249}, cfg.Courses[0].Controls)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no courses", "courses: []\n"},
		{"empty course", "courses:\n  - name: x\n    controls: []\n"},
		{"bad gap", "minGap: 100\nmaxGap: 10\n"},
		{"gap overflow", "maxGap: 5000\n"},
		{"not yaml", "courses: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "courses.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}
