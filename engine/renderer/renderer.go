package renderer

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/pass"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoFrame is returned by Capture when nothing has been presented yet.
var ErrNoFrame = errors.New("no frame has been presented")

// SurfaceProvider supplies the display surface the wgpu backend presents to.
// window.Window satisfies it.
type SurfaceProvider interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	registry pass.Registry

	backendType RendererBackendType
	backend     RendererBackend

	lastPresented Texture
	passes        atomic.Uint64

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	workers              int
}

// Renderer executes pass programs on render targets.
//
// This is a high-level API over a backend: every built-in pass program is registered at
// construction, and a frame is expressed as a sequence of RunPass calls followed by Present.
// The same programs run on the wgpu backend as WGSL and on the software backend as Go kernels.
type Renderer interface {
	// BackendType returns the backend this renderer was created with.
	//
	// Returns:
	//   - RendererBackendType: the backend type
	BackendType() RendererBackendType

	// Registry returns the pass programs known to this renderer.
	//
	// Returns:
	//   - pass.Registry: the program registry
	Registry() pass.Registry

	// CreateTexture allocates a render target.
	//
	// Parameters:
	//   - label: a debug label
	//   - width: the width in pixels
	//   - height: the height in pixels
	//
	// Returns:
	//   - Texture: the new texture
	//   - error: ErrInvalidTextureSize for non-positive sizes, or a backend allocation error
	CreateTexture(label string, width, height int) (Texture, error)

	// RunPass executes a registered program into out.
	//
	// Parameters:
	//   - program: the program name
	//   - out: the output texture
	//   - u: the pass uniforms
	//   - inputs: the input textures by slot
	//
	// Returns:
	//   - error: an error if the program is unknown, the input count is wrong or a texture is invalid
	RunPass(program string, out Texture, u *pass.Uniforms, inputs ...Texture) error

	// Clear fills a texture with a constant color.
	//
	// Parameters:
	//   - t: the texture to clear
	//   - c: the RGBA color
	//
	// Returns:
	//   - error: an error if the texture is invalid
	Clear(t Texture, c common.Vec4) error

	// UploadSource uploads an RGBA8 source frame, reusing prev when the size matches.
	//
	// Parameters:
	//   - prev: the previous source texture, or nil
	//   - data: the frame pixels
	//
	// Returns:
	//   - Texture: the texture holding the frame
	//   - error: an error if the frame is malformed or the upload fails
	UploadSource(prev Texture, data *common.TextureStagingData) (Texture, error)

	// Present displays a texture on the surface and remembers it for Capture.
	//
	// Parameters:
	//   - t: the texture to present
	//
	// Returns:
	//   - error: an error if presentation fails
	Present(t Texture) error

	// ReadPixels reads a texture back as float32 RGBA, top row first.
	//
	// Parameters:
	//   - t: the texture to read
	//
	// Returns:
	//   - []float32: width*height*4 values
	//   - error: an error if the readback fails
	ReadPixels(t Texture) ([]float32, error)

	// Capture reads back the texture given to the most recent Present call. Values are not
	// clamped, so HDR content survives.
	//
	// Returns:
	//   - []float32: width*height*4 values
	//   - int: the width in pixels
	//   - int: the height in pixels
	//   - error: ErrNoFrame if nothing has been presented, or a readback error
	Capture() ([]float32, int, int, error)

	// Resize configures the underlying backend to handle a new surface size.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	// A call to Resize is required after changing this for the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// PassCount returns the number of passes executed since creation.
	//
	// Returns:
	//   - uint64: the pass count
	PassCount() uint64

	// Release frees the backend and every resource it owns.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer with the specified backend and registers every program of
// the pass registry with it. The surface is required by the wgpu backend and may be nil for the
// software backend.
//
// Parameters:
//   - backendType: the type of rendering backend to use
//   - surface: the display surface provider, typically the window
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the configured renderer
//   - error: an error if the GPU adapter or device cannot be acquired or a program fails to build
func NewRenderer(backendType RendererBackendType, surface SurfaceProvider, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:          &sync.Mutex{},
		backendType: backendType,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	if r.registry == nil {
		reg, err := pass.NewRegistry()
		if err != nil {
			return nil, fmt.Errorf("build pass registry: %w", err)
		}
		r.registry = reg
	}

	switch backendType {
	case BackendTypeSoftware:
		r.backend = newSoftwareRendererBackend(r.workers)
	case BackendTypeWGPU:
		if surface == nil {
			return nil, errors.New("wgpu renderer requires a surface")
		}
		b, err := newWGPURendererBackend(surface.SurfaceDescriptor(), r.forceFallbackAdapter)
		if err != nil {
			return nil, err
		}
		r.backend = b
	default:
		return nil, fmt.Errorf("unknown renderer backend %d", int(backendType))
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	if surface != nil {
		r.backend.ConfigureSurface(surface.Width(), surface.Height())
	}

	for _, name := range r.registry.Names() {
		p, err := r.registry.Program(name)
		if err != nil {
			r.backend.Release()
			return nil, err
		}
		s, err := r.registry.Shader(name)
		if err != nil {
			r.backend.Release()
			return nil, err
		}
		if err := r.backend.RegisterProgram(p, s); err != nil {
			r.backend.Release()
			return nil, err
		}
	}
	log.Printf("[Renderer] %s backend ready with %d programs", backendType, len(r.registry.Names()))
	return r, nil
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) Registry() pass.Registry {
	return r.registry
}

func (r *renderer) CreateTexture(label string, width, height int) (Texture, error) {
	return r.backend.CreateTexture(label, width, height)
}

func (r *renderer) RunPass(program string, out Texture, u *pass.Uniforms, inputs ...Texture) error {
	if out == nil {
		return fmt.Errorf("run pass %s: nil output", program)
	}
	for i, in := range inputs {
		if in == nil {
			return fmt.Errorf("run pass %s: nil input %d", program, i)
		}
	}
	if u == nil {
		u = &pass.Uniforms{}
	}
	if err := r.backend.RunPass(program, out, inputs, u); err != nil {
		return err
	}
	r.passes.Add(1)
	return nil
}

func (r *renderer) Clear(t Texture, c common.Vec4) error {
	if t == nil {
		return errors.New("clear: nil texture")
	}
	return r.backend.Clear(t, c)
}

func (r *renderer) UploadSource(prev Texture, data *common.TextureStagingData) (Texture, error) {
	return r.backend.UploadSource(prev, data)
}

func (r *renderer) Present(t Texture) error {
	if t == nil {
		return errors.New("present: nil texture")
	}
	if err := r.backend.Present(t); err != nil {
		return err
	}
	r.mu.Lock()
	r.lastPresented = t
	r.mu.Unlock()
	return nil
}

func (r *renderer) ReadPixels(t Texture) ([]float32, error) {
	if t == nil {
		return nil, errors.New("read pixels: nil texture")
	}
	return r.backend.ReadPixels(t)
}

func (r *renderer) Capture() ([]float32, int, int, error) {
	r.mu.Lock()
	t := r.lastPresented
	r.mu.Unlock()
	if t == nil {
		return nil, 0, 0, ErrNoFrame
	}
	pix, err := r.backend.ReadPixels(t)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("capture: %w", err)
	}
	return pix, t.Width(), t.Height(), nil
}

func (r *renderer) Resize(width, height int) {
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) PassCount() uint64 {
	return r.passes.Load()
}

func (r *renderer) Release() {
	r.mu.Lock()
	r.lastPresented = nil
	r.mu.Unlock()
	r.backend.Release()
}
