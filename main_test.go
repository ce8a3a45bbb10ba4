package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/elijahnyp/thermostat_controller/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithoutRooms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thermostat_controller.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\nmodel:\n  rooms: []\n"), 0o644))

	prevPath := configPath
	configPath = path
	defer func() { configPath = prevPath }()
	Config.Set("model", map[string]interface{}{"rooms": []map[string]interface{}{}})
	Config.Set("broker_uri", "tcp://127.0.0.1:1")
	defer resetModel(t)
	Client = nil

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := run(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rooms configured")
	assert.Nil(t, Client, "no broker connection should be made without rooms")
}
