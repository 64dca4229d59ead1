package shader

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrLayoutMismatch is returned when a Go struct and its WGSL declaration disagree on placement.
	ErrLayoutMismatch = errors.New("shader: go and wgsl layouts differ")

	// ErrStructNotFound is returned when the WGSL source does not declare the requested struct.
	ErrStructNotFound = errors.New("shader: struct not declared in wgsl source")
)

// VerifyGoLayout checks that a Go struct is byte-compatible with the WGSL struct of
// the same name. Go fields name their WGSL member with a `wgsl:"name"` tag; untagged
// fields are padding. Every WGSL member must have a tagged Go field with the same
// offset and size, and the two structs must have the same total size.
//
// Parameters:
//   - goValue: a struct value or pointer to one
//   - wgslSource: WGSL source declaring a struct named like the Go type
//
// Returns:
//   - StructLayout: the parsed WGSL layout
//   - error: ErrStructNotFound, or ErrLayoutMismatch joined for every disagreement
func VerifyGoLayout(goValue any, wgslSource string) (StructLayout, error) {
	t := reflect.TypeOf(goValue)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return StructLayout{}, fmt.Errorf("shader: %T is not a struct", goValue)
	}

	layout, ok := ParseStructLayouts(wgslSource)[t.Name()]
	if !ok {
		return StructLayout{}, fmt.Errorf("%w: %s", ErrStructNotFound, t.Name())
	}

	var errs []error
	if uint64(t.Size()) != layout.Size {
		errs = append(errs, fmt.Errorf("%w: %s size go=%d wgsl=%d", ErrLayoutMismatch, t.Name(), t.Size(), layout.Size))
	}

	tagged := make(map[string]reflect.StructField, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if name, ok := f.Tag.Lookup("wgsl"); ok {
			tagged[name] = f
		}
	}

	for _, wf := range layout.Fields {
		gf, ok := tagged[wf.Name]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s.%s has no go field", ErrLayoutMismatch, t.Name(), wf.Name))
			continue
		}
		delete(tagged, wf.Name)
		if uint64(gf.Offset) != wf.Offset {
			errs = append(errs, fmt.Errorf("%w: %s.%s offset go=%d wgsl=%d", ErrLayoutMismatch, t.Name(), wf.Name, gf.Offset, wf.Offset))
		}
		if uint64(gf.Type.Size()) != wf.Size {
			errs = append(errs, fmt.Errorf("%w: %s.%s size go=%d wgsl=%d", ErrLayoutMismatch, t.Name(), wf.Name, gf.Type.Size(), wf.Size))
		}
	}
	for name := range tagged {
		errs = append(errs, fmt.Errorf("%w: %s field tagged %q is not a wgsl member", ErrLayoutMismatch, t.Name(), name))
	}

	return layout, errors.Join(errs...)
}

// VerifyRegisteredLayouts runs VerifyGoLayout over every shared struct.
func VerifyRegisteredLayouts() error {
	var errs []error
	for _, rs := range RegisteredStructs() {
		if _, err := VerifyGoLayout(rs.Go, rs.Source); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
