package project

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-pointcloud/engine/uniforms"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// File names inside a project folder.
const (
	MetaName      = "meta.json"
	DataName      = "data.skin"
	ThumbnailName = "thumb.jpg"
	VideoName     = "baseVideo.mp4"
)

// DefaultTitle is the title of a project that was never renamed.
const DefaultTitle = "Untitled Scan"

var (
	ErrNoPointCloud   = errors.New("project: no point cloud")
	ErrInvalidProject = errors.New("project: invalid project")
)

// Resource names an optional artefact a scan project may carry.
type Resource string

const (
	ResourceTexture Resource = "texture"
	ResourceModel   Resource = "model"
	ResourceVideo   Resource = "video"
	ResourceUV      Resource = "uv"
)

// Resources lists every Resource in a stable order.
var Resources = []Resource{ResourceTexture, ResourceModel, ResourceVideo, ResourceUV}

// meta is the on-disk shape of meta.json.
type meta struct {
	Title        string    `json:"title"`
	UUID         uuid.UUID `json:"uuid"`
	CreationDate time.Time `json:"creationDate"`
	ModifiedDate time.Time `json:"modifiedDate"`
	HasVideo     bool      `json:"hasVideo"`
	HasModel     bool      `json:"hasModel"`
	HasUV        bool      `json:"hasUV"`
	HasTexture   bool      `json:"hasTexture"`
}

func (m *meta) flag(r Resource) *bool {
	switch r {
	case ResourceTexture:
		return &m.HasTexture
	case ResourceModel:
		return &m.HasModel
	case ResourceVideo:
		return &m.HasVideo
	case ResourceUV:
		return &m.HasUV
	}
	return nil
}

// f32 is a float32 that keeps NaN and the infinities through JSON. They are
// written as the strings "NaN", "+Inf" and "-Inf"; finite values stay numbers.
type f32 float32

func (f f32) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 32), nil
}

func (f *f32) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return err
	}
	*f = f32(v)
	return nil
}

func toF32s3(v [3]float32) [3]f32 {
	return [3]f32{f32(v[0]), f32(v[1]), f32(v[2])}
}

func fromF32s3(v [3]f32) [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}

// point is the on-disk shape of one saved particle.
type point struct {
	Position   [3]f32 `json:"position"`
	Normal     [3]f32 `json:"normal"`
	Color      [3]f32 `json:"color"`
	Confidence f32    `json:"confidence"`
}

// matrix is the on-disk shape of a column-major mgl32.Mat4.
type matrix [16]f32

func toMatrices(ms []mgl32.Mat4) []matrix {
	if ms == nil {
		return nil
	}
	out := make([]matrix, len(ms))
	for i, m := range ms {
		for k, v := range m {
			out[i][k] = f32(v)
		}
	}
	return out
}

func fromMatrices(ms []matrix) []mgl32.Mat4 {
	if ms == nil {
		return nil
	}
	out := make([]mgl32.Mat4, len(ms))
	for i, m := range ms {
		for k, v := range m {
			out[i][k] = float32(v)
		}
	}
	return out
}

// spatialData is the on-disk shape of data.skin before compression.
type spatialData struct {
	PointCloud             []point  `json:"pointCloud,omitempty"`
	ViewProjectionMatrixes []matrix `json:"viewProjectionMatrixes,omitempty"`
}

// spatialPart marks a part of the spatial data replaced in memory since it was
// last read or written.
type spatialPart uint8

const (
	partPointCloud spatialPart = 1 << iota
	partViewProjections
)

// merge overlays the parts of edited marked in dirty onto s.
func (s spatialData) merge(edited spatialData, dirty spatialPart) spatialData {
	if dirty&partPointCloud != 0 {
		s.PointCloud = edited.PointCloud
	}
	if dirty&partViewProjections != 0 {
		s.ViewProjectionMatrixes = edited.ViewProjectionMatrixes
	}
	return s
}

// Project is one saved scan: its metadata plus the accumulated point cloud and the
// view-projection matrix of every captured frame. The spatial data is loaded
// separately from the metadata so listing projects stays cheap.
type Project struct {
	mu      sync.RWMutex
	meta    meta
	spatial spatialData
	loaded  bool
	dirty   spatialPart
	now     func() time.Time
}

// ProjectOption is a functional option used to configure a Project during construction.
type ProjectOption func(*Project)

// WithTitle sets the project title. An empty title keeps DefaultTitle.
func WithTitle(title string) ProjectOption {
	return func(p *Project) {
		if title != "" {
			p.meta.Title = title
		}
	}
}

// WithID sets the project id instead of generating one.
func WithID(id uuid.UUID) ProjectOption {
	return func(p *Project) {
		p.meta.UUID = id
	}
}

// WithClock sets the time source used for the created and modified timestamps.
func WithClock(now func() time.Time) ProjectOption {
	return func(p *Project) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates an empty project.
//
// Parameters:
//   - options: functional options applied in order
//
// Returns:
//   - *Project: the project, titled DefaultTitle unless WithTitle is given
func New(options ...ProjectOption) *Project {
	p := &Project{
		meta: meta{
			Title: DefaultTitle,
			UUID:  uuid.New(),
		},
		loaded: true,
		now:    time.Now,
	}
	for _, option := range options {
		option(p)
	}
	p.meta.CreationDate = p.now().UTC()
	p.meta.ModifiedDate = p.meta.CreationDate
	return p
}

func (p *Project) ID() uuid.UUID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.meta.UUID
}

func (p *Project) Title() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.meta.Title
}

func (p *Project) Created() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.meta.CreationDate
}

func (p *Project) Modified() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.meta.ModifiedDate
}

// SpatialLoaded reports whether the point cloud and matrices are in memory. A
// project read by Store.Load has only its metadata until Store.LoadSpatial; parts
// set on it before then are merged with the saved data by Store.Save.
func (p *Project) SpatialLoaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loaded
}

// Resources returns which optional artefacts the project carries.
func (p *Project) Resources() map[Resource]bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[Resource]bool, len(Resources))
	for _, r := range Resources {
		out[r] = *p.meta.flag(r)
	}
	return out
}

// HasResource reports whether the project carries r.
func (p *Project) HasResource(r Resource) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f := p.meta.flag(r)
	return f != nil && *f
}

// SetTitle renames the project and marks it modified.
func (p *Project) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.meta.Title = title
	p.touch()
}

// SetResource records whether the project carries r and marks it modified.
// Unknown resources are ignored.
func (p *Project) SetResource(r Resource, present bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.meta.flag(r)
	if f == nil {
		return
	}
	*f = present
	p.touch()
}

// Touch marks the project modified now.
func (p *Project) Touch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touch()
}

func (p *Project) touch() {
	p.meta.ModifiedDate = p.now().UTC()
}

// SetPointCloud replaces the saved point cloud and marks the project modified.
//
// Parameters:
//   - particles: the particles as laid out in the particle ring; the slice is copied
func (p *Project) SetPointCloud(particles []uniforms.ParticleUniforms) {
	pts := make([]point, len(particles))
	for i := range particles {
		pts[i] = point{
			Position:   toF32s3(particles[i].Position),
			Normal:     toF32s3(particles[i].Normal),
			Color:      toF32s3(particles[i].Color),
			Confidence: f32(particles[i].Confidence),
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spatial.PointCloud = pts
	p.dirty |= partPointCloud
	p.touch()
}

// PointCloud returns the saved points as particle uniforms ready for upload.
//
// Returns:
//   - []uniforms.ParticleUniforms: a fresh slice
//   - error: ErrNoPointCloud if nothing was saved or the spatial data is not loaded
func (p *Project) PointCloud() ([]uniforms.ParticleUniforms, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.spatial.PointCloud) == 0 {
		return nil, ErrNoPointCloud
	}
	out := make([]uniforms.ParticleUniforms, len(p.spatial.PointCloud))
	for i, pt := range p.spatial.PointCloud {
		out[i].Position = fromF32s3(pt.Position)
		out[i].Normal = fromF32s3(pt.Normal)
		out[i].Color = fromF32s3(pt.Color)
		out[i].Confidence = float32(pt.Confidence)
	}
	return out, nil
}

// PointCount returns the number of saved points.
func (p *Project) PointCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.spatial.PointCloud)
}

// SetViewProjections replaces the per-frame view-projection matrices and marks the
// project modified.
func (p *Project) SetViewProjections(m []mgl32.Mat4) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spatial.ViewProjectionMatrixes = toMatrices(m)
	p.dirty |= partViewProjections
	p.touch()
}

// ViewProjections returns a copy of the per-frame view-projection matrices.
func (p *Project) ViewProjections() []mgl32.Mat4 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return fromMatrices(p.spatial.ViewProjectionMatrixes)
}

// Bounds returns the axis-aligned box around every saved point with a finite
// position, for the bounds render mode.
//
// Returns:
//   - uniforms.Box: the box
//   - error: ErrNoPointCloud when there are no such points
func (p *Project) Bounds() (uniforms.Box, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var lo, hi [3]float32
	found := false
	for _, pt := range p.spatial.PointCloud {
		pos := fromF32s3(pt.Position)
		if !finite(pos) {
			continue
		}
		if !found {
			lo, hi, found = pos, pos, true
			continue
		}
		for k := range 3 {
			lo[k] = min(lo[k], pos[k])
			hi[k] = max(hi[k], pos[k])
		}
	}
	if !found {
		return uniforms.Box{}, ErrNoPointCloud
	}
	return uniforms.NewBox(hi, lo), nil
}

func finite(v [3]float32) bool {
	for _, c := range v {
		if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
			return false
		}
	}
	return true
}
