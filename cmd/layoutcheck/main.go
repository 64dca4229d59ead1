package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/Carmen-Shannon/oxy-pointcloud/common"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/binding"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/project"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/uniforms"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// sampleResolution is the depth image size the upload dry run lays its grid over.
var sampleResolution = mgl32.Vec2{256, 192}

// dryRunVertices is the mesh size the upload dry run allocates for.
const dryRunVertices = 1024

var stages = []shader.ShaderType{shader.ShaderTypeCompute, shader.ShaderTypeVertex, shader.ShaderTypeFragment}

func stageName(t shader.ShaderType) string {
	switch t {
	case shader.ShaderTypeCompute:
		return "compute"
	case shader.ShaderTypeVertex:
		return "vertex"
	case shader.ShaderTypeFragment:
		return "fragment"
	}
	return "unknown"
}

// printLayouts writes the WGSL placement of every shared struct.
func printLayouts(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, rs := range shader.RegisteredStructs() {
		layout := shader.ParseStructLayouts(rs.Source)[rs.Type]
		fmt.Fprintf(tw, "%s\tsize %d\talign %d\t\n", layout.Name, layout.Size, layout.Align)
		for _, f := range layout.Fields {
			fmt.Fprintf(tw, "  %s\t%s\toffset %d\tsize %d\n", f.Name, f.Type, f.Offset, f.Size)
		}
	}
	tw.Flush()
}

// checkMode composes the binding preamble of a mode, compiles it and builds the
// mode's pipeline, which checks the bundled shader against the binding registry.
func checkMode(mode binding.RenderMode, validate, printCompose bool, out io.Writer, logger common.Logger) error {
	preamble, err := shader.Compose(mode)
	if err != nil {
		return err
	}
	if printCompose {
		fmt.Fprintf(out, "// ---- %s ----\n%s\n", mode, preamble)
	}

	var errs []error
	if validate {
		if _, err := shader.Validate(preamble); err != nil {
			errs = append(errs, fmt.Errorf("%s preamble: %w", mode, err))
		}
	}

	p, err := pipeline.ForMode(mode)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s pipeline: %w", mode, err))
	} else {
		for _, stage := range stages {
			if s := p.Shader(stage); s != nil {
				logger.Debugf("%s %s entry point %s", mode, stageName(stage), s.EntryPoint())
			}
		}
		d := pipeline.DrawFor(p, 1)
		logger.Debugf("%s draws %d vertices x %d instances, dispatch %v", mode, d.Vertices, d.Instances, d.Workgroups)
	}
	if validate {
		if src, err := shader.BuiltinSource(mode); err == nil {
			if processed, _, err := shader.Process(src); err != nil {
				errs = append(errs, err)
			} else if _, err := shader.Validate(processed); err != nil {
				errs = append(errs, fmt.Errorf("%s shader: %w", mode, err))
			}
		}
	}
	return errors.Join(errs...)
}

// stageDefaults stages one frame of default uniforms, and the sample grid for
// unproject, for every buffer a mode binds.
func stageDefaults(f *bind_group_provider.Frame, mode binding.RenderMode, capacity int) error {
	for _, use := range mode.Buffers() {
		var err error
		switch use.Resource {
		case binding.BufferRGBUniforms:
			rgb, rerr := uniforms.NewRGBUniforms(uniforms.Affine{A: 1, D: 1}, sampleResolution[0], sampleResolution[1])
			if rerr != nil {
				return rerr
			}
			err = f.StageUniforms(use.Resource, &rgb)
		case binding.BufferPointCloudUniforms:
			pc := uniforms.NewPointCloudUniforms(
				uniforms.WithMaxPoints(int32(max(capacity, 1))),
				uniforms.WithCameraResolution(sampleResolution[0], sampleResolution[1]),
			)
			err = f.StageUniforms(use.Resource, &pc)
		case binding.BufferBoundingBox:
			box := uniforms.NewBox([3]float32{-1, -1, -1}, [3]float32{1, 1, 1})
			err = f.StageUniforms(use.Resource, &box)
		case binding.BufferGridPoints:
			err = f.StageGridPoints(uniforms.GridPoints(sampleResolution, uniforms.DefaultGridPoints))
		case binding.BufferParticleUniforms:
			err = f.StageParticles(capacity-1, make([]uniforms.ParticleUniforms, 2))
		case binding.BufferModelVertices:
			err = f.Stage(use.Resource, 0, make([]byte, pipeline.MeshVertexFloats*dryRunVertices*binding.ModelVertexStride))
		}
		if err != nil {
			return fmt.Errorf("%s: %w", use.Resource, err)
		}
	}
	return nil
}

// dryRunUpload builds a mode's uploader over host-side buffers and flushes one
// frame of defaults, which checks every staged write against the buffer sizes the
// mode allocates.
func dryRunUpload(mode binding.RenderMode, marshaler *uniforms.ParticleMarshaler, logger common.Logger) error {
	hostAlloc := func(*wgpu.BufferDescriptor) (*wgpu.Buffer, error) {
		return &wgpu.Buffer{}, nil
	}
	var written uint64
	count := func(_ *wgpu.Buffer, _ uint64, data []byte) error {
		written += uint64(len(data))
		return nil
	}
	u, err := bind_group_provider.NewUploader(mode, hostAlloc, count,
		bind_group_provider.WithInFlightFrames(1),
		bind_group_provider.WithCapacity(binding.BufferModelVertices, pipeline.MeshVertexFloats*dryRunVertices),
		bind_group_provider.WithParticleMarshaler(marshaler),
		bind_group_provider.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	f, err := u.BeginFrame(context.Background())
	if err != nil {
		return err
	}
	if err := stageDefaults(f, mode, u.Capacity(binding.BufferParticleUniforms)); err != nil {
		return err
	}
	staged := len(f.Writes())
	if err := f.Flush(); err != nil {
		return err
	}
	logger.Debugf("%s uploads %d writes, %d bytes", mode, staged, written)
	return u.Complete(f.Index)
}

func listProjects(store *project.Store, w io.Writer) error {
	projects, err := store.List()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCREATED\tRESOURCES")
	for _, p := range projects {
		var res []string
		for _, r := range project.Resources {
			if p.HasResource(r) {
				res = append(res, string(r))
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID(), p.Title(), p.Created().Format("2006-01-02 15:04"), strings.Join(res, ","))
	}
	return tw.Flush()
}

func exportProject(store *project.Store, id, path string, logger common.Logger) error {
	pid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("project id: %w", err)
	}
	p, err := store.Open(pid)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := p.ExportGLTF(f); err != nil {
		f.Close()
		return err
	}
	logger.Infof("exported %d points of %q to %s", p.PointCount(), p.Title(), path)
	return f.Close()
}

func main() {
	var modeName = flag.String("mode", "all", "Render mode to check (camera_feed, rgb, unproject, particles, bounds, mesh or all)")
	var compose = flag.Bool("compose", false, "Print the composed binding preamble of each mode")
	var validate = flag.Bool("validate", true, "Compile composed and bundled WGSL with naga")
	var debug = flag.Bool("v", false, "Verbose logging")
	var projectsDir = flag.String("projects", "", "Project root directory; lists saved scans instead of checking layouts")
	var exportID = flag.String("export", "", "With -projects, export this project's point cloud as glTF")
	var output = flag.String("o", "points.glb", "Output file for -export")
	flag.Parse()

	logger := common.NewDefaultLogger("layoutcheck", *debug)

	if *projectsDir != "" {
		store, err := project.NewStore(*projectsDir, project.WithLogger(logger))
		if err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		if *exportID != "" {
			err = exportProject(store, *exportID, *output, logger)
		} else {
			err = listProjects(store, os.Stdout)
		}
		if err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		return
	}

	modes := binding.AllModes
	if *modeName != "all" {
		mode, err := shader.ParseMode(*modeName)
		if err != nil {
			logger.Errorf("%v", err)
			os.Exit(2)
		}
		modes = []binding.RenderMode{mode}
	}

	printLayouts(os.Stdout)

	failed := false
	if err := shader.VerifyRegisteredLayouts(); err != nil {
		logger.Errorf("layout mismatch:\n%v", err)
		failed = true
	} else {
		logger.Infof("go and wgsl layouts agree")
	}

	marshaler := uniforms.NewParticleMarshaler()
	defer marshaler.Close()
	for _, mode := range modes {
		if err := checkMode(mode, *validate, *compose, os.Stdout, logger); err != nil {
			logger.Errorf("%v", err)
			failed = true
			continue
		}
		if err := dryRunUpload(mode, marshaler, logger); err != nil {
			logger.Errorf("%s upload: %v", mode, err)
			failed = true
			continue
		}
		logger.Infof("%s bindings ok", mode)
	}
	if failed {
		marshaler.Close()
		os.Exit(1)
	}
}
