package shader

import (
	"strings"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProgram = `//@kal:include uniforms
//@kal:include fullscreen
//@kal:include helpers
//@kal:include helpers
//@kal:uniforms 0 0 u
//@kal:sampler 0 1 samp
//@kal:input 0 3 1 cur
//@kal:input 0 2 0 prev

/* block /* nested */ comment */
@fragment
fn fs_main(in: VSOut) -> @location(0) vec4<f32> {
    let a = textureSampleLevel(prev, samp, in.uv, 0.0);
    let b = textureSampleLevel(cur, samp, in.uv, 0.0);
    return mix(a, b, u.passA);
}
`

func TestNewShaderParsesProgram(t *testing.T) {
	s, err := NewShader("mix", testProgram)
	require.NoError(t, err)

	assert.Equal(t, "vs_main", s.VertexEntryPoint())
	assert.Equal(t, "fs_main", s.FragmentEntryPoint())
	assert.Equal(t, "mix", s.Module().Label)

	u, ok := s.Uniforms()
	require.True(t, ok)
	assert.Equal(t, Binding{Group: 0, Binding: 0, Name: "u"}, u)

	smp, ok := s.Sampler()
	require.True(t, ok)
	assert.Equal(t, 1, smp.Binding)

	inputs := s.Inputs()
	require.Len(t, inputs, 2)
	assert.Equal(t, "prev", inputs[0].Name)
	assert.Equal(t, 2, inputs[0].Binding)
	assert.Equal(t, "cur", inputs[1].Name)
	assert.Equal(t, 3, inputs[1].Binding)

	assert.Equal(t, "cur", s.BindGroupVarName(0, 3))
	assert.Equal(t, "", s.BindGroupVarName(4, 0))
}

func TestUniformBlockLayout(t *testing.T) {
	s, err := NewShader("mix", testProgram)
	require.NoError(t, err)

	size, ok := s.StructSize(UniformStructName)
	require.True(t, ok)
	assert.Equal(t, uint64(208), size)

	fields := s.StructFields(UniformStructName)
	require.Len(t, fields, 52)
	assert.Equal(t, "outWidth", fields[0])
	assert.Equal(t, "enableFeedback", fields[51])
	assert.Nil(t, s.StructFields("Missing"))
}

func TestBindGroupLayoutEntries(t *testing.T) {
	s, err := NewShader("mix", testProgram)
	require.NoError(t, err)

	layouts := s.BindGroupLayoutDescriptors()
	require.Contains(t, layouts, 0)
	entries := layouts[0].Entries
	require.Len(t, entries, 4)

	assert.Equal(t, uint32(0), entries[0].Binding)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, entries[0].Buffer.Type)
	assert.Equal(t, uint64(208), entries[0].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, entries[1].Sampler.Type)
	assert.Equal(t, wgpu.TextureViewDimension2D, entries[2].Texture.ViewDimension)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, entries[3].Texture.SampleType)
	for _, e := range entries {
		assert.Equal(t, wgpu.ShaderStageFragment, e.Visibility)
	}
}

func TestIncludeInjectedOnce(t *testing.T) {
	s, err := NewShader("mix", testProgram)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(s.Source(), "fn rot2("))
}

func TestShaderErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"unknown chunk", "//@kal:include camera\n"},
		{"bad input slot", "//@kal:input 0 2 x src\n"},
		{"duplicate binding", "//@kal:sampler 0 1 a\n//@kal:input 0 1 0 b\n"},
		{"duplicate slot", "//@kal:input 0 1 0 a\n//@kal:input 0 2 0 b\n"},
		{"slot gap", "//@kal:include uniforms\n//@kal:include fullscreen\n//@kal:input 0 2 1 b\n@fragment fn fs() -> @location(0) vec4<f32> { return vec4<f32>(0.0); }\n"},
		{"missing fragment", "//@kal:include fullscreen\n"},
		{"unknown annotation", "//@kal:storage 0 1 x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewShader("bad", tt.source)
			assert.Error(t, err)
		})
	}
}

func TestStripComments(t *testing.T) {
	got := stripComments("a /* x /* y */ z */ b // c\nd")
	assert.Equal(t, "a  b \nd\n", got)
}
