package shader

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/naga"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// validationEntryPoint is appended to sources without an entry point so the
// compiler has something to lower.
const validationEntryPoint = "\n@compute @workgroup_size(1)\nfn oxy_validate() {}\n"

// ErrInvalidWGSL wraps compiler rejections of a WGSL source.
var ErrInvalidWGSL = errors.New("shader: wgsl rejected by compiler")

// Validate compiles WGSL to SPIR-V with naga. Sources with no entry point, such as
// a Compose preamble, get an empty compute entry point appended first.
//
// Parameters:
//   - source: the WGSL source
//
// Returns:
//   - []byte: the SPIR-V module
//   - error: ErrInvalidWGSL wrapping the compiler error
func Validate(source string) ([]byte, error) {
	if !hasEntryPoint(source) {
		source += validationEntryPoint
	}
	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWGSL, err)
	}
	if len(spirv) < 4 || binary.LittleEndian.Uint32(spirv) != spirvMagic {
		return nil, fmt.Errorf("%w: output is not a spir-v module", ErrInvalidWGSL)
	}
	return spirv, nil
}
