package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/pass"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/mrjoshuak/go-openexr/half"
)

// TargetFormat is the pixel format of every render target.
const TargetFormat = wgpu.TextureFormatRGBA16Float

// sourceFormat is the pixel format of uploaded source frames.
const sourceFormat = wgpu.TextureFormatRGBA8Unorm

// copyRowAlignment is the required bytes-per-row alignment of texture-to-buffer copies.
const copyRowAlignment = 256

type wgpuTexture struct {
	label   string
	width   int
	height  int
	format  wgpu.TextureFormat
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

var _ Texture = &wgpuTexture{}

func (t *wgpuTexture) Label() string {
	return t.label
}

func (t *wgpuTexture) Width() int {
	return t.width
}

func (t *wgpuTexture) Height() int {
	return t.height
}

func (t *wgpuTexture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat *wgpu.TextureFormat
	surfaceWidth  int
	surfaceHeight int
	presentMode   wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)

	sampler *wgpu.Sampler

	shaders   map[string]shader.Shader
	pipelines map[string]pipeline.Pipeline

	// surfacePipeline runs the present program into the surface format; rebuilt when the
	// surface format changes.
	surfacePipeline pipeline.Pipeline
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) (*wgpuRendererBackendImpl, error) {
	runtime.LockOSThread()
	b := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		shaders:     make(map[string]shader.Shader),
		pipelines:   make(map[string]pipeline.Pipeline),
	}
	if surfaceDescriptor == nil {
		return nil, errors.New("wgpu backend: nil surface descriptor")
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	s := common.LinearClampSampler
	b.sampler, err = b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Pass Sampler",
		AddressModeU:  s.AddressModeU,
		AddressModeV:  s.AddressModeV,
		AddressModeW:  s.AddressModeW,
		MagFilter:     s.MagFilter,
		MinFilter:     s.MinFilter,
		MipmapFilter:  s.MipmapFilter,
		LodMinClamp:   s.LodMinClamp,
		LodMaxClamp:   s.LodMaxClamp,
		MaxAnisotropy: common.Coalesce(s.MaxAnisotropy, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("create sampler: %w", err)
	}
	return b, nil
}

func (b *wgpuRendererBackendImpl) own(t Texture) (*wgpuTexture, error) {
	wt, ok := t.(*wgpuTexture)
	if !ok || wt == nil {
		return nil, ErrForeignTexture
	}
	if wt.texture == nil || wt.view == nil {
		return nil, fmt.Errorf("%s: %w", wt.label, ErrReleasedTexture)
	}
	return wt, nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A minimised window reports a zero framebuffer.
	if width <= 0 || height <= 0 {
		return
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]
	b.surfaceWidth = width
	b.surfaceHeight = height

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) CreateTexture(label string, width, height int) (Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("create texture %s (%dx%d): %w", label, width, height, ErrInvalidTextureSize)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createTexture(label, width, height, TargetFormat,
		wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopySrc|wgpu.TextureUsageCopyDst)
}

func (b *wgpuRendererBackendImpl) createTexture(label string, width, height int, format wgpu.TextureFormat, usage wgpu.TextureUsage) (*wgpuTexture, error) {
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %s: %w", label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("create texture view %s: %w", label, err)
	}
	return &wgpuTexture{
		label:   label,
		width:   width,
		height:  height,
		format:  format,
		texture: tex,
		view:    view,
	}, nil
}

func (b *wgpuRendererBackendImpl) RegisterProgram(p pass.Program, s shader.Shader) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	created, err := b.buildPipeline(p.Name, s, TargetFormat)
	if err != nil {
		return fmt.Errorf("register program %s: %w", p.Name, err)
	}
	if old, ok := b.pipelines[p.Name]; ok {
		old.Release()
	}
	b.pipelines[p.Name] = created
	b.shaders[p.Name] = s
	return nil
}

// buildPipeline creates the fullscreen render pipeline, bind group layout and uniform buffer of
// one pass program for the given color target format.
func (b *wgpuRendererBackendImpl) buildPipeline(key string, s shader.Shader, format wgpu.TextureFormat) (pipeline.Pipeline, error) {
	p := pipeline.NewPipeline(key, s, pipeline.WithFormat(format))

	module, err := b.device.CreateShaderModule(s.Module())
	if err != nil {
		return nil, err
	}
	defer module.Release()

	descriptors := s.BindGroupLayoutDescriptors()
	desc, ok := descriptors[0]
	if !ok || len(descriptors) != 1 {
		return nil, fmt.Errorf("pass programs bind exactly group 0, %s declares %d groups", key, len(descriptors))
	}
	layout, err := b.device.CreateBindGroupLayout(&desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group layout: %w", err)
	}
	p.SetBindGroupLayout(layout)

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            key,
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		p.Release()
		return nil, err
	}
	defer pipelineLayout.Release()

	target := wgpu.ColorTargetState{
		Format:    p.Format(),
		WriteMask: p.WriteMask(),
		Blend:     p.BlendState(),
	}
	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  key + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: s.VertexEntryPoint(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: s.FragmentEntryPoint(),
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		p.Release()
		return nil, err
	}
	p.SetRenderPipeline(created)

	size, ok := s.StructSize(shader.UniformStructName)
	if !ok {
		size = uint64(pass.UniformsSize)
	}
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: key + " Uniforms",
		Size:  size,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		p.Release()
		return nil, err
	}
	p.SetUniformBuffer(buf)
	return p, nil
}

// bindGroup builds the per-pass bind group: uniforms, sampler and one texture per input slot.
func (b *wgpuRendererBackendImpl) bindGroup(p pipeline.Pipeline, inputs []*wgpuTexture) (*wgpu.BindGroup, error) {
	s := p.Shader()
	entries := make([]wgpu.BindGroupEntry, 0, len(inputs)+2)
	if ub, ok := s.Uniforms(); ok {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(ub.Binding),
			Buffer:  p.UniformBuffer(),
			Offset:  0,
			Size:    wgpu.WholeSize,
		})
	}
	if sb, ok := s.Sampler(); ok {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(sb.Binding),
			Sampler: b.sampler,
		})
	}
	slots := s.Inputs()
	if len(slots) != len(inputs) {
		return nil, fmt.Errorf("%s: got %d inputs, program takes %d", p.PipelineKey(), len(inputs), len(slots))
	}
	for i, in := range inputs {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding:     uint32(slots[i].Binding),
			TextureView: in.view,
		})
	}
	return b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.PipelineKey() + " Bind Group",
		Layout:  p.BindGroupLayout(),
		Entries: entries,
	})
}

func (b *wgpuRendererBackendImpl) RunPass(program string, out Texture, inputs []Texture, u *pass.Uniforms) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pipelines[program]
	if !ok {
		return fmt.Errorf("run pass %s: %w", program, pass.ErrProgramNotFound)
	}
	dst, err := b.own(out)
	if err != nil {
		return fmt.Errorf("run pass %s: output: %w", program, err)
	}
	srcs := make([]*wgpuTexture, len(inputs))
	for i, t := range inputs {
		src, err := b.own(t)
		if err != nil {
			return fmt.Errorf("run pass %s: input %d: %w", program, i, err)
		}
		if src == dst {
			return fmt.Errorf("run pass %s: %s is bound as both input and output", program, dst.label)
		}
		srcs[i] = src
	}

	bg, err := b.bindGroup(p, srcs)
	if err != nil {
		return fmt.Errorf("run pass %s: %w", program, err)
	}
	defer bg.Release()

	// Each pass is its own submission, so this write lands after every earlier pass has
	// consumed the previous contents.
	b.queue.WriteBuffer(p.UniformBuffer(), 0, u.Bytes())
	return b.draw(p.RenderPipeline(), bg, dst.view, wgpu.Color{A: 1})
}

// draw encodes and submits one render pass into view. A nil pipeline only clears.
func (b *wgpuRendererBackendImpl) draw(rp *wgpu.RenderPipeline, bg *wgpu.BindGroup, view *wgpu.TextureView, clear wgpu.Color) error {
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	rpass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: clear,
			},
		},
	})
	if rp != nil {
		rpass.SetPipeline(rp)
		rpass.SetBindGroup(0, bg, nil)
		rpass.Draw(3, 1, 0, 0)
	}
	rpass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()
	return nil
}

func (b *wgpuRendererBackendImpl) Clear(t Texture, c common.Vec4) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	dst, err := b.own(t)
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return b.draw(nil, nil, dst.view, wgpu.Color{R: float64(c.X), G: float64(c.Y), B: float64(c.Z), A: float64(c.W)})
}

func (b *wgpuRendererBackendImpl) UploadSource(prev Texture, data *common.TextureStagingData) (Texture, error) {
	if err := validateStaging(data); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	w, h := int(data.Width), int(data.Height)
	var dst *wgpuTexture
	if wt, ok := prev.(*wgpuTexture); ok && wt != nil && wt.texture != nil && wt.width == w && wt.height == h {
		dst = wt
	} else {
		if prev != nil {
			prev.Release()
		}
		var err error
		dst, err = b.createTexture("source", w, h, sourceFormat,
			wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopyDst|wgpu.TextureUsageCopySrc)
		if err != nil {
			return nil, err
		}
	}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  dst.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data.Pixels[:w*h*4],
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  data.Width * 4,
			RowsPerImage: data.Height,
		},
		&wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
	)
	return dst, nil
}

func (b *wgpuRendererBackendImpl) Present(t Texture) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	src, err := b.own(t)
	if err != nil {
		return fmt.Errorf("present: %w", err)
	}
	if b.surfaceFormat == nil {
		return errors.New("present: surface not configured")
	}
	if b.surfacePipeline == nil || b.surfacePipeline.Format() != *b.surfaceFormat {
		s, ok := b.shaders[pass.Present]
		if !ok {
			return fmt.Errorf("present: %w", pass.ErrProgramNotFound)
		}
		if b.surfacePipeline != nil {
			b.surfacePipeline.Release()
			b.surfacePipeline = nil
		}
		created, err := b.buildPipeline(pass.Present+" surface", s, *b.surfaceFormat)
		if err != nil {
			return fmt.Errorf("present: %w", err)
		}
		b.surfacePipeline = created
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("present: acquire surface texture: %w", err)
	}
	defer surfaceTexture.Release()
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("present: %w", err)
	}
	defer view.Release()

	bg, err := b.bindGroup(b.surfacePipeline, []*wgpuTexture{src})
	if err != nil {
		return fmt.Errorf("present: %w", err)
	}
	defer bg.Release()

	u := pass.Uniforms{
		OutWidth:  float32(b.surfaceWidth),
		OutHeight: float32(b.surfaceHeight),
	}
	b.queue.WriteBuffer(b.surfacePipeline.UniformBuffer(), 0, u.Bytes())
	if err := b.draw(b.surfacePipeline.RenderPipeline(), bg, view, wgpu.Color{A: 1}); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	b.surface.Present()
	return nil
}

func (b *wgpuRendererBackendImpl) ReadPixels(t Texture) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	src, err := b.own(t)
	if err != nil {
		return nil, fmt.Errorf("read pixels: %w", err)
	}

	bytesPerPixel := 8
	if src.format == sourceFormat {
		bytesPerPixel = 4
	}
	rowBytes := src.width * bytesPerPixel
	paddedRow := (rowBytes + copyRowAlignment - 1) / copyRowAlignment * copyRowAlignment
	size := uint64(paddedRow * src.height)

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: src.label + " Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("read pixels: %w", err)
	}
	defer buf.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("read pixels: %w", err)
	}
	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  src.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: buf,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(paddedRow),
				RowsPerImage: uint32(src.height),
			},
		},
		&wgpu.Extent3D{
			Width:              uint32(src.width),
			Height:             uint32(src.height),
			DepthOrArrayLayers: 1,
		},
	)
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return nil, fmt.Errorf("read pixels: %w", err)
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()

	done := false
	status := wgpu.BufferMapAsyncStatusSuccess
	err = buf.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		done = true
	})
	if err != nil {
		return nil, fmt.Errorf("read pixels: map: %w", err)
	}
	for !done {
		b.device.Poll(true, nil)
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("read pixels: map status %v", status)
	}
	defer buf.Unmap()

	data := buf.GetMappedRange(0, uint(size))
	out := make([]float32, src.width*src.height*4)
	for y := 0; y < src.height; y++ {
		row := data[y*paddedRow : y*paddedRow+rowBytes]
		dst := out[y*src.width*4 : (y+1)*src.width*4]
		if bytesPerPixel == 8 {
			half.ConvertBytesToFloat32(dst, row)
			continue
		}
		for i, px := range row {
			dst[i] = float32(px) / 255
		}
	}
	return out, nil
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for name, p := range b.pipelines {
		p.Release()
		delete(b.pipelines, name)
	}
	if b.surfacePipeline != nil {
		b.surfacePipeline.Release()
		b.surfacePipeline = nil
	}
	if b.sampler != nil {
		b.sampler.Release()
		b.sampler = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
