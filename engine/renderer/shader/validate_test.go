package shader

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-pointcloud/engine/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfUnsupported skips when naga reports a feature it has not implemented yet.
func skipIfUnsupported(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		return
	}
	msg := err.Error()
	if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
		t.Skipf("Skipping: naga feature not yet implemented: %v", err)
	}
}

func TestValidateComposedPreambles(t *testing.T) {
	for _, mode := range binding.AllModes {
		t.Run(mode.String(), func(t *testing.T) {
			src, err := Compose(mode)
			require.NoError(t, err)
			spirv, err := Validate(src)
			skipIfUnsupported(t, err)
			require.NoError(t, err)
			assert.NotEmpty(t, spirv)
		})
	}
}

func TestValidateBuiltinShaders(t *testing.T) {
	for _, mode := range binding.AllModes {
		t.Run(mode.String(), func(t *testing.T) {
			s, err := Builtin(mode, ShaderTypeFragment)
			if mode == binding.ModeUnproject {
				s, err = Builtin(mode, ShaderTypeCompute)
			}
			require.NoError(t, err)

			_, err = Validate(s.Source())
			skipIfUnsupported(t, err)
			assert.NoError(t, err)
		})
	}
}

func TestValidateRejectsBrokenSource(t *testing.T) {
	_, err := Validate("struct Broken { a: f32")
	assert.ErrorIs(t, err, ErrInvalidWGSL)
}
