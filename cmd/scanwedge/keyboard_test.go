package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scanwedge/internal/config"
	"github.com/banshee-data/scanwedge/internal/keystroke"
)

func TestOpenKeyboard_Log(t *testing.T) {
	kbd, err := openKeyboard(config.KeyboardLog, "")
	require.NoError(t, err)
	defer kbd.Close()

	rec, ok := kbd.(*keystroke.Recorder)
	require.True(t, ok, "log backend should be a recorder, got %T", kbd)
	assert.True(t, rec.Log)
	assert.Equal(t, logKeyboardHistory, rec.Limit)
}

func TestOpenKeyboard_MissingDevice(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent")
	for _, kind := range []string{config.KeyboardHIDGadget, config.KeyboardUinput} {
		t.Run(kind, func(t *testing.T) {
			kbd, err := openKeyboard(kind, missing)
			assert.Error(t, err)
			assert.Nil(t, kbd)
		})
	}
}

func TestOpenKeyboard_Unknown(t *testing.T) {
	_, err := openKeyboard("bluetooth", "")
	assert.ErrorContains(t, err, "unknown keyboard backend")
}
