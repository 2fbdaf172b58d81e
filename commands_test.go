package main

import (
	"testing"

	"imgadapt/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestRequireSharedStore(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{backend: "", wantErr: true},
		{backend: "memory", wantErr: true},
		{backend: "file"},
		{backend: "redis"},
		{backend: "sqlite"},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			err := requireSharedStore(config.Config{Store: config.Store{Backend: tt.backend}})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStatusCommandRejectsMemoryStore(t *testing.T) {
	t.Setenv("IMGADAPT_STORE_BACKEND", "memory")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"status", "--config-dir", t.TempDir(), "ab12cd34"})

	err := cmd.Execute()
	assert.ErrorContains(t, err, "shared store")
}
