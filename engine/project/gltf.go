package project

import (
	"fmt"
	"io"
	"math"

	"github.com/Carmen-Shannon/oxy-pointcloud/engine/uniforms"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// ConfidenceAttribute is the application-specific vertex attribute carrying each
// point's confidence in exported glTF files.
const ConfidenceAttribute = "_CONFIDENCE"

// ExportGLTF writes the project's point cloud as a binary glTF with one POINTS
// primitive carrying positions, normals, colours and confidences.
//
// Parameters:
//   - w: destination of the .glb bytes
//
// Returns:
//   - error: ErrNoPointCloud, or an encoding error
func (p *Project) ExportGLTF(w io.Writer) error {
	particles, err := p.PointCloud()
	if err != nil {
		return err
	}
	return WriteGLTF(w, p.Title(), particles)
}

// WriteGLTF encodes particles as a binary glTF POINTS mesh named name.
func WriteGLTF(w io.Writer, name string, particles []uniforms.ParticleUniforms) error {
	if len(particles) == 0 {
		return ErrNoPointCloud
	}
	positions := make([][3]float32, len(particles))
	normals := make([][3]float32, len(particles))
	colors := make([][4]uint8, len(particles))
	confidence := make([]float32, len(particles))
	for i := range particles {
		positions[i] = particles[i].Position
		normals[i] = particles[i].Normal
		c := particles[i].Color
		colors[i] = [4]uint8{unorm8(c[0]), unorm8(c[1]), unorm8(c[2]), 255}
		confidence[i] = particles[i].Confidence
	}

	doc := gltf.NewDocument()
	attrs := map[string]int{
		gltf.POSITION:       modeler.WritePosition(doc, positions),
		gltf.NORMAL:         modeler.WriteNormal(doc, normals),
		gltf.COLOR_0:        modeler.WriteColor(doc, colors),
		ConfidenceAttribute: modeler.WriteAccessor(doc, gltf.TargetArrayBuffer, confidence),
	}
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: name,
		Primitives: []*gltf.Primitive{{
			Mode:       gltf.PrimitivePoints,
			Attributes: attrs,
		}},
	})
	doc.Nodes = append(doc.Nodes, &gltf.Node{Name: name, Mesh: gltf.Index(len(doc.Meshes) - 1)})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, len(doc.Nodes)-1)

	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode gltf: %w", err)
	}
	return nil
}

// ReadGLTF decodes the first POINTS primitive of a glTF stream into particles.
// Missing normals, colours or confidences are left zero, with colour defaulting to
// white.
//
// Returns:
//   - []uniforms.ParticleUniforms: the particles
//   - error: ErrNoPointCloud if the document holds no points, or a decoding error
func ReadGLTF(r io.Reader) ([]uniforms.ParticleUniforms, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("decode gltf: %w", err)
	}

	for _, mesh := range doc.Meshes {
		for _, prim := range mesh.Primitives {
			if prim.Mode != gltf.PrimitivePoints {
				continue
			}
			return readPoints(doc, prim)
		}
	}
	return nil, ErrNoPointCloud
}

func readPoints(doc *gltf.Document, prim *gltf.Primitive) ([]uniforms.ParticleUniforms, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("%w: primitive has no POSITION", ErrNoPointCloud)
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	var normals [][3]float32
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if normals, err = modeler.ReadNormal(doc, doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("normals: %w", err)
		}
	}
	var colors [][4]uint8
	if idx, ok := prim.Attributes[gltf.COLOR_0]; ok {
		if colors, err = modeler.ReadColor(doc, doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("colors: %w", err)
		}
	}
	var confidence []float32
	if idx, ok := prim.Attributes[ConfidenceAttribute]; ok {
		data, err := modeler.ReadAccessor(doc, doc.Accessors[idx], nil)
		if err != nil {
			return nil, fmt.Errorf("confidence: %w", err)
		}
		confidence, _ = data.([]float32)
	}

	out := make([]uniforms.ParticleUniforms, len(positions))
	for i := range positions {
		out[i].Position = positions[i]
		out[i].Color = [3]float32{1, 1, 1}
		if i < len(normals) {
			out[i].Normal = normals[i]
		}
		if i < len(colors) {
			c := colors[i]
			out[i].Color = [3]float32{float32(c[0]) / 255, float32(c[1]) / 255, float32(c[2]) / 255}
		}
		if i < len(confidence) {
			out[i].Confidence = confidence[i]
		}
	}
	return out, nil
}

func unorm8(v float32) uint8 {
	return uint8(math.Round(float64(min(max(v, 0), 1)) * 255))
}
