package main

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-pointcloud/common"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/binding"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/uniforms"
	"github.com/stretchr/testify/assert"
)

func TestDryRunUploadEveryMode(t *testing.T) {
	marshaler := uniforms.NewParticleMarshaler(uniforms.WithWorkers(1))
	defer marshaler.Close()

	for _, mode := range binding.AllModes {
		t.Run(mode.String(), func(t *testing.T) {
			assert.NoError(t, dryRunUpload(mode, marshaler, common.NewNopLogger()))
		})
	}
}
