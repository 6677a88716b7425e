package renderer

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/pass"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/shader"
)

// Sub-texel precision of the bilinear weights, matching common GPU filtering hardware.
const subTexelSteps = 256

// Upper bound on row bands submitted per pass.
const maxRowBands = 128

type softwareTexture struct {
	label    string
	width    int
	height   int
	pix      []float32
	released bool
}

var _ Texture = &softwareTexture{}

func newSoftwareTexture(label string, width, height int) *softwareTexture {
	return &softwareTexture{
		label:  label,
		width:  width,
		height: height,
		pix:    make([]float32, width*height*4),
	}
}

func (t *softwareTexture) Label() string {
	return t.label
}

func (t *softwareTexture) Width() int {
	return t.width
}

func (t *softwareTexture) Height() int {
	return t.height
}

func (t *softwareTexture) Release() {
	t.pix = nil
	t.released = true
}

func (t *softwareTexture) texel(x, y int) (float64, float64, float64, float64) {
	i := (y*t.width + x) * 4
	return float64(t.pix[i]), float64(t.pix[i+1]), float64(t.pix[i+2]), float64(t.pix[i+3])
}

// sample filters bilinearly with clamp-to-edge addressing. Texel centres lie at (i+0.5)/width.
func (t *softwareTexture) sample(uv common.Vec2) common.Vec4 {
	fx := clampCoord(float64(uv.X)*float64(t.width)-0.5, t.width)
	fy := clampCoord(float64(uv.Y)*float64(t.height)-0.5, t.height)

	x0, y0 := int(fx), int(fy)
	x1, y1 := min(x0+1, t.width-1), min(y0+1, t.height-1)
	wx := math.Round((fx-float64(x0))*subTexelSteps) / subTexelSteps
	wy := math.Round((fy-float64(y0))*subTexelSteps) / subTexelSteps

	r00, g00, b00, a00 := t.texel(x0, y0)
	r10, g10, b10, a10 := t.texel(x1, y0)
	r01, g01, b01, a01 := t.texel(x0, y1)
	r11, g11, b11, a11 := t.texel(x1, y1)

	mix := func(c00, c10, c01, c11 float64) float32 {
		top := c00 + (c10-c00)*wx
		bottom := c01 + (c11-c01)*wx
		return float32(top + (bottom-top)*wy)
	}
	return common.V4(
		mix(r00, r10, r01, r11),
		mix(g00, g10, g01, g11),
		mix(b00, b10, b01, b11),
		mix(a00, a10, a01, a11),
	)
}

func clampCoord(f float64, size int) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if hi := float64(size - 1); f > hi {
		return hi
	}
	return f
}

// softwareInputs binds textures to kernel input slots.
type softwareInputs []*softwareTexture

func (in softwareInputs) Sample(slot int, uv common.Vec2) common.Vec4 {
	return in[slot].sample(uv)
}

func (in softwareInputs) Size(slot int) (int, int) {
	return in[slot].width, in[slot].height
}

type softwareRendererBackendImpl struct {
	mu *sync.Mutex

	pool    worker.DynamicWorkerPool
	workers int
	taskID  int

	programs map[string]pass.Program

	surfaceWidth  int
	surfaceHeight int
	presentMode   PresentMode

	// presented holds the clamped image of the last Present call.
	presented *softwareTexture
	released  bool
}

var _ RendererBackend = &softwareRendererBackendImpl{}

func newSoftwareRendererBackend(workers int) *softwareRendererBackendImpl {
	if workers <= 0 {
		workers = max(runtime.NumCPU()-1, 1)
	}
	b := &softwareRendererBackendImpl{
		mu:       &sync.Mutex{},
		workers:  workers,
		programs: make(map[string]pass.Program),
	}
	if workers > 1 {
		b.pool = worker.NewDynamicWorkerPool(workers, 256, 1*time.Second)
	}
	return b
}

func (b *softwareRendererBackendImpl) own(t Texture) (*softwareTexture, error) {
	st, ok := t.(*softwareTexture)
	if !ok || st == nil {
		return nil, ErrForeignTexture
	}
	if st.released {
		return nil, fmt.Errorf("%s: %w", st.label, ErrReleasedTexture)
	}
	return st, nil
}

func (b *softwareRendererBackendImpl) CreateTexture(label string, width, height int) (Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("create texture %s (%dx%d): %w", label, width, height, ErrInvalidTextureSize)
	}
	return newSoftwareTexture(label, width, height), nil
}

func (b *softwareRendererBackendImpl) RegisterProgram(p pass.Program, s shader.Shader) error {
	if p.Kernel == nil {
		return fmt.Errorf("register program %s: nil kernel", p.Name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.programs[p.Name] = p
	return nil
}

func (b *softwareRendererBackendImpl) RunPass(program string, out Texture, inputs []Texture, u *pass.Uniforms) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.programs[program]
	if !ok {
		return fmt.Errorf("run pass %s: %w", program, pass.ErrProgramNotFound)
	}
	return b.run(p, out, inputs, u)
}

func (b *softwareRendererBackendImpl) run(p pass.Program, out Texture, inputs []Texture, u *pass.Uniforms) error {
	if len(inputs) != p.Inputs {
		return fmt.Errorf("run pass %s: got %d inputs, program takes %d", p.Name, len(inputs), p.Inputs)
	}
	dst, err := b.own(out)
	if err != nil {
		return fmt.Errorf("run pass %s: output: %w", p.Name, err)
	}
	srcs := make(softwareInputs, len(inputs))
	for i, t := range inputs {
		src, err := b.own(t)
		if err != nil {
			return fmt.Errorf("run pass %s: input %d: %w", p.Name, i, err)
		}
		if src == dst {
			return fmt.Errorf("run pass %s: %s is bound as both input and output", p.Name, dst.label)
		}
		srcs[i] = src
	}

	uc := *u
	w, h := dst.width, dst.height
	b.parallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			v := (float32(y) + 0.5) / float32(h)
			for x := 0; x < w; x++ {
				c := p.Kernel(srcs, &uc, common.V2((float32(x)+0.5)/float32(w), v))
				i := (y*w + x) * 4
				dst.pix[i] = c.X
				dst.pix[i+1] = c.Y
				dst.pix[i+2] = c.Z
				dst.pix[i+3] = c.W
			}
		}
	})
	return nil
}

// parallelRows splits [0, rows) into bands and runs fn on the worker pool, returning once every
// band has finished.
func (b *softwareRendererBackendImpl) parallelRows(rows int, fn func(y0, y1 int)) {
	bands := min(rows, b.workers*4, maxRowBands)
	if b.pool == nil || bands <= 1 {
		fn(0, rows)
		return
	}
	step := (rows + bands - 1) / bands

	wg := sync.WaitGroup{}
	for y0 := 0; y0 < rows; y0 += step {
		y1 := min(y0+step, rows)
		wg.Add(1)
		b.taskID++
		b.pool.SubmitTask(worker.Task{
			ID: b.taskID,
			Do: func() (any, error) {
				defer wg.Done()
				fn(y0, y1)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (b *softwareRendererBackendImpl) Clear(t Texture, c common.Vec4) error {
	dst, err := b.own(t)
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	for i := 0; i < len(dst.pix); i += 4 {
		dst.pix[i] = c.X
		dst.pix[i+1] = c.Y
		dst.pix[i+2] = c.Z
		dst.pix[i+3] = c.W
	}
	return nil
}

func (b *softwareRendererBackendImpl) UploadSource(prev Texture, data *common.TextureStagingData) (Texture, error) {
	if err := validateStaging(data); err != nil {
		return nil, err
	}
	w, h := int(data.Width), int(data.Height)

	var dst *softwareTexture
	if st, ok := prev.(*softwareTexture); ok && st != nil && !st.released && st.width == w && st.height == h {
		dst = st
	} else {
		if prev != nil {
			prev.Release()
		}
		dst = newSoftwareTexture("source", w, h)
	}
	for i, px := range data.Pixels[:w*h*4] {
		dst.pix[i] = float32(px) / 255
	}
	return dst, nil
}

func (b *softwareRendererBackendImpl) Present(t Texture) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	src, err := b.own(t)
	if err != nil {
		return fmt.Errorf("present: %w", err)
	}
	p, ok := b.programs[pass.Present]
	if !ok {
		return fmt.Errorf("present: %w", pass.ErrProgramNotFound)
	}

	w, h := b.surfaceWidth, b.surfaceHeight
	if w <= 0 || h <= 0 {
		w, h = src.width, src.height
	}
	if b.presented == nil || b.presented.width != w || b.presented.height != h {
		b.presented = newSoftwareTexture("presented", w, h)
	}
	u := &pass.Uniforms{OutWidth: float32(w), OutHeight: float32(h)}
	return b.run(p, b.presented, []Texture{src}, u)
}

// Presented returns a copy of the last presented image.
func (b *softwareRendererBackendImpl) Presented() ([]float32, int, int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.presented == nil {
		return nil, 0, 0, false
	}
	out := make([]float32, len(b.presented.pix))
	copy(out, b.presented.pix)
	return out, b.presented.width, b.presented.height, true
}

func (b *softwareRendererBackendImpl) ReadPixels(t Texture) ([]float32, error) {
	src, err := b.own(t)
	if err != nil {
		return nil, fmt.Errorf("read pixels: %w", err)
	}
	out := make([]float32, len(src.pix))
	copy(out, src.pix)
	return out, nil
}

func (b *softwareRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.surfaceWidth = width
	b.surfaceHeight = height
}

func (b *softwareRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presentMode = mode
}

func (b *softwareRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	b.released = true
	if b.pool != nil {
		b.pool.Stop()
		b.pool = nil
	}
	b.presented = nil
}

// validateStaging checks that a source frame holds width*height RGBA8 pixels.
func validateStaging(data *common.TextureStagingData) error {
	if data == nil {
		return fmt.Errorf("upload source: nil frame")
	}
	if data.Width == 0 || data.Height == 0 {
		return fmt.Errorf("upload source (%dx%d): %w", data.Width, data.Height, ErrInvalidTextureSize)
	}
	if need := int(data.Width) * int(data.Height) * 4; len(data.Pixels) < need {
		return fmt.Errorf("upload source: %d bytes for %dx%d, need %d", len(data.Pixels), data.Width, data.Height, need)
	}
	return nil
}
