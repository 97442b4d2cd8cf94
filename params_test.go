package hcd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParamsValid(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Validate())
	assert.Equal(t, DefaultSlots, p.Slots)
	assert.Equal(t, AutoAssignIRQLine, p.IRQLine)
}

func TestParseParams(t *testing.T) {
	p, err := ParseParams([]byte(`
slots: 4
area_bytes: 1024
max_segments: 8
admin_timeout: 250ms
cancel_timeout: 1s
irq_line: 11
services: [1, 3]
`))
	require.NoError(t, err)
	assert.Equal(t, 4, p.Slots)
	assert.Equal(t, 1024, p.AreaSize)
	assert.Equal(t, 8, p.MaxSegments)
	assert.Equal(t, 250*time.Millisecond, p.AdminTimeout.Std())
	assert.Equal(t, time.Second, p.CancelTimeout.Std())
	assert.Equal(t, 11, p.IRQLine)
	assert.Equal(t, []uint8{1, 3}, p.Services)

	// untouched keys keep defaults
	assert.Equal(t, DefaultAlignment, p.Alignment)
	assert.Equal(t, DefaultParams().HardwareTimeout, p.HardwareTimeout)
}

func TestParseParamsBadDuration(t *testing.T) {
	_, err := ParseParams([]byte("admin_timeout: soon\n"))
	assert.Error(t, err)
}

func TestParamsAreaTooSmall(t *testing.T) {
	p := DefaultParams()
	p.AreaSize = 100
	err := p.Validate()
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeMisconfigured))
}

func TestParamsValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"zero slots", func(p *Params) { p.Slots = 0 }},
		{"odd alignment", func(p *Params) { p.Alignment = 6 }},
		{"no segments", func(p *Params) { p.MaxSegments = 0 }},
		{"empty ring", func(p *Params) { p.EventRingSize = 0 }},
		{"negative retries", func(p *Params) { p.InternalRetries = -1 }},
		{"zero timeout", func(p *Params) { p.CancelTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			assert.True(t, IsCode(p.Validate(), ErrCodeInvalidParameters))
		})
	}
}

func TestLoadParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hcd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slots: 2\nwatchdog_interval: 5ms\n"), 0o644))

	p, err := LoadParams(path)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Slots)
	assert.Equal(t, 5*time.Millisecond, p.WatchdogInterval.Std())

	_, err = LoadParams(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, IsCode(err, ErrCodeNotFound))
}
