package pipeline

import (
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// pipeline is the implementation of the Pipeline interface.
// It holds the description of a fullscreen pass program and, once the backend has built them,
// the GPU objects used to run it.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, the pass program name
	pipelineKey string

	// shader carries both the fullscreen vertex stage and the pass fragment stage
	shader shader.Shader

	renderPipeline  *wgpu.RenderPipeline
	bindGroupLayout *wgpu.BindGroupLayout
	uniformBuffer   *wgpu.Buffer

	// The following properties configure the pipeline during creation and can be set with the builder options.

	format     wgpu.TextureFormat
	cullMode   wgpu.CullMode
	topology   wgpu.PrimitiveTopology
	frontFace  wgpu.FrontFace
	writeMask  wgpu.ColorWriteMask
	blendState *wgpu.BlendState
}

// Pipeline describes a fullscreen render pipeline for one pass program: one color target,
// no depth, no vertex buffers, drawn as a single triangle.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader returns the program's parsed shader.
	//
	// Returns:
	//   - shader.Shader: the shader providing both entry points
	Shader() shader.Shader

	// Format returns the color target format the pipeline writes.
	//
	// Returns:
	//   - wgpu.TextureFormat: the color target format
	Format() wgpu.TextureFormat

	// CullMode returns the cull mode configured for this pipeline.
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order configured for this pipeline.
	FrontFace() wgpu.FrontFace

	// WriteMask returns the color write mask configured for this pipeline.
	WriteMask() wgpu.ColorWriteMask

	// BlendState returns the blend state configured for this pipeline.
	//
	// Returns:
	//   - *wgpu.BlendState: the blend state, or nil when the pass overwrites its target
	BlendState() *wgpu.BlendState

	// RenderPipeline returns the GPU pipeline, nil until the backend has built it.
	RenderPipeline() *wgpu.RenderPipeline

	// BindGroupLayout returns the layout of group 0, nil until the backend has built it.
	BindGroupLayout() *wgpu.BindGroupLayout

	// UniformBuffer returns the program's uniform buffer, nil until the backend has built it.
	UniformBuffer() *wgpu.Buffer

	// SetRenderPipeline sets the GPU render pipeline.
	//
	// Parameters:
	//   - p: the WebGPU render pipeline to set
	SetRenderPipeline(p *wgpu.RenderPipeline)

	// SetBindGroupLayout sets the layout of group 0.
	//
	// Parameters:
	//   - l: the bind group layout to set
	SetBindGroupLayout(l *wgpu.BindGroupLayout)

	// SetUniformBuffer sets the program's uniform buffer.
	//
	// Parameters:
	//   - b: the uniform buffer to set
	SetUniformBuffer(b *wgpu.Buffer)

	// Release releases the GPU objects held by the pipeline. The description stays valid.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a fullscreen pipeline description for a pass program.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - s: the parsed pass program
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline with the specified configuration
func NewPipeline(pipelineKey string, s shader.Shader, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey: pipelineKey,
		shader:      s,
		format:      wgpu.TextureFormatRGBA16Float,
		cullMode:    wgpu.CullModeNone,
		topology:    wgpu.PrimitiveTopologyTriangleList,
		frontFace:   wgpu.FrontFaceCCW,
		writeMask:   wgpu.ColorWriteMaskAll,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader() shader.Shader {
	return p.shader
}

func (p *pipeline) Format() wgpu.TextureFormat {
	return p.format
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) RenderPipeline() *wgpu.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) BindGroupLayout() *wgpu.BindGroupLayout {
	return p.bindGroupLayout
}

func (p *pipeline) UniformBuffer() *wgpu.Buffer {
	return p.uniformBuffer
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline) {
	p.renderPipeline = rp
}

func (p *pipeline) SetBindGroupLayout(l *wgpu.BindGroupLayout) {
	p.bindGroupLayout = l
}

func (p *pipeline) SetUniformBuffer(b *wgpu.Buffer) {
	p.uniformBuffer = b
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	if p.bindGroupLayout != nil {
		p.bindGroupLayout.Release()
		p.bindGroupLayout = nil
	}
	if p.uniformBuffer != nil {
		p.uniformBuffer.Release()
		p.uniformBuffer = nil
	}
}
