package pass

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/shader"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fnInputs serves each slot from a function of uv.
type fnInputs struct {
	w, h  int
	slots []func(uv common.Vec2) common.Vec4
}

func (f fnInputs) Sample(slot int, uv common.Vec2) common.Vec4 {
	return f.slots[slot](uv)
}

func (f fnInputs) Size(int) (int, int) {
	return f.w, f.h
}

func solid(c common.Vec4) func(common.Vec2) common.Vec4 {
	return func(common.Vec2) common.Vec4 { return c }
}

func gray(v float32) func(common.Vec2) common.Vec4 {
	return solid(common.V4(v, v, v, 1))
}

func TestRegistryHoldsBuiltinPrograms(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	assert.Len(t, reg.Names(), 13)

	for _, name := range reg.Names() {
		p, err := reg.Program(name)
		require.NoError(t, err)
		s, err := reg.Shader(name)
		require.NoError(t, err)
		assert.Len(t, s.Inputs(), p.Inputs, name)
		_, ok := s.Uniforms()
		assert.True(t, ok, name)
	}

	_, err = reg.Program("nope")
	assert.True(t, errors.Is(err, ErrProgramNotFound))
}

func TestRegisterRejectsInputMismatch(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	err = reg.Register(Program{Name: "bad", Source: source(Copy), Inputs: 2, Kernel: copyKernel})
	assert.Error(t, err)
	err = reg.Register(Program{Name: "nokernel", Source: source(Copy), Inputs: 1})
	assert.Error(t, err)
}

func TestUniformsMirrorWGSL(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	s, err := reg.Shader(Feedback)
	require.NoError(t, err)

	size, ok := s.StructSize(shader.UniformStructName)
	require.True(t, ok)
	assert.Equal(t, UniformsSize, size)

	typ := reflect.TypeOf(Uniforms{})
	wgslFields := s.StructFields(shader.UniformStructName)
	require.Len(t, wgslFields, typ.NumField())
	for i, name := range wgslFields {
		goName := typ.Field(i).Name
		assert.Equal(t, strings.ToLower(goName[:1])+goName[1:], name)
	}
}

func feedbackUniforms() *Uniforms {
	return &Uniforms{
		Aspect:         16.0 / 9.0,
		EnableFeedback: 1,
		Decay:          0.9,
		ZoomRate:       0.004,
		RotateRate:     0.002,
		EnablePolar:    1,
		PolarScale:     1.2,
		PolarTwist:     0.3,
		EnableAdvect:   1,
		AdvectStrength: 0.5,
	}
}

func TestFeedbackBlendLaw(t *testing.T) {
	u := feedbackUniforms()
	in := fnInputs{w: 8, h: 8, slots: []func(common.Vec2) common.Vec4{
		gray(0.2), gray(1), solid(common.V4(0, 0, 0, 1)),
	}}
	got := feedbackKernel(in, u, common.V2(0.3, 0.6))
	assert.InDelta(t, 0.9*0.2+0.1, got.X, 1e-6)
	assert.Equal(t, float32(1), got.W)
}

func TestFeedbackBypassIgnoresHistory(t *testing.T) {
	u := feedbackUniforms()
	u.EnableFeedback = 0
	cur := common.V4(0.1, 0.7, 0.3, 1)
	in := fnInputs{w: 8, h: 8, slots: []func(common.Vec2) common.Vec4{
		gray(0.9), solid(cur), solid(common.V4(1, 1, 0, 1)),
	}}
	assert.Equal(t, cur, feedbackKernel(in, u, common.V2(0.5, 0.5)))
}

func TestEchoMixIrrelevantWithoutTaps(t *testing.T) {
	history := func(uv common.Vec2) common.Vec4 { return common.V4(uv.X, uv.Y, uv.X*uv.Y, 1) }
	in := fnInputs{w: 8, h: 8, slots: []func(common.Vec2) common.Vec4{
		history, gray(0.5), solid(common.V4(0.3, -0.2, 0, 1)),
	}}
	u := feedbackUniforms()
	u.EchoTaps = 0
	u.EchoAngle = 0.4

	for _, uv := range []common.Vec2{{X: 0.1, Y: 0.2}, {X: 0.5, Y: 0.5}, {X: 0.9, Y: 0.3}} {
		u.EchoMix = 0
		a := feedbackKernel(in, u, uv)
		u.EchoMix = 1
		b := feedbackKernel(in, u, uv)
		assert.Equal(t, a, b)
	}

	u.EchoTaps = 2
	u.EchoMix = 0
	a := feedbackKernel(in, u, common.V2(0.2, 0.2))
	u.EchoMix = 1
	b := feedbackKernel(in, u, common.V2(0.2, 0.2))
	assert.NotEqual(t, a, b)
}

func TestPolarRemapAtCentreIsFinite(t *testing.T) {
	u := feedbackUniforms()
	u.EnableAdvect = 0
	in := fnInputs{w: 8, h: 8, slots: []func(common.Vec2) common.Vec4{gray(0.4), gray(0.8), gray(0)}}
	got := feedbackKernel(in, u, common.V2(0.5, 0.5))
	assert.False(t, math32.IsNaN(got.X))
}

func TestFlowCombineWeight(t *testing.T) {
	fine := common.V2(0.4, -0.2)
	coarse := common.V2(-0.6, 0.8)
	in := fnInputs{w: 8, h: 8, slots: []func(common.Vec2) common.Vec4{
		solid(common.V4(fine.X, fine.Y, 0, 1)),
		solid(common.V4(coarse.X, coarse.Y, 0, 1)),
	}}
	uv := common.V2(0.25, 0.75)

	u := &Uniforms{PassA: 0}
	assert.Equal(t, common.V4(fine.X, fine.Y, fine.Length(), 1), flowCombineKernel(in, u, uv))

	u.PassA = 1
	assert.Equal(t, common.V4(coarse.X, coarse.Y, coarse.Length(), 1), flowCombineKernel(in, u, uv))

	u.PassA = 0.5
	got := flowCombineKernel(in, u, uv)
	assert.InDelta(t, -0.1, got.X, 1e-6)
	assert.InDelta(t, 0.3, got.Y, 1e-6)
	assert.InDelta(t, common.V2(-0.1, 0.3).Length(), got.Z, 1e-6)
	assert.Equal(t, float32(1), got.W)
}

func TestFlowSmooth(t *testing.T) {
	raw := common.V4(0.8, -0.4, 0, 1)
	prev := common.V4(-1, 1, 0, 1)
	in := fnInputs{w: 4, h: 4, slots: []func(common.Vec2) common.Vec4{solid(raw), solid(prev)}}
	uv := common.V2(0.5, 0.5)

	u := &Uniforms{Smoothing: 0}
	got := flowSmoothKernel(in, u, uv)
	assert.Equal(t, raw.X, got.X)
	assert.Equal(t, raw.Y, got.Y)

	u.Smoothing = 0.75
	got = flowSmoothKernel(in, u, uv)
	assert.InDelta(t, 0.75*-1+0.25*0.8, got.X, 1e-6)

	u.PassA = 1
	got = flowSmoothKernel(in, u, uv)
	assert.Equal(t, raw.X, got.X)
}

func TestFlowSmoothConvergesUnderConstantInput(t *testing.T) {
	raw := common.V2(0.3, 0.1)
	u := &Uniforms{Smoothing: 0.99}
	published := common.Vec2{}
	for i := 0; i < 3000; i++ {
		in := fnInputs{w: 1, h: 1, slots: []func(common.Vec2) common.Vec4{
			solid(common.V4(raw.X, raw.Y, 0, 1)),
			solid(common.V4(published.X, published.Y, 0, 1)),
		}}
		published = flowSmoothKernel(in, u, common.V2(0.5, 0.5)).XY()
	}
	assert.InDelta(t, raw.X, published.X, 1e-3)
	assert.InDelta(t, raw.Y, published.Y, 1e-3)
}

func TestAutoGainBounded(t *testing.T) {
	assert.Equal(t, common.Vec2{}, AutoGain(common.Vec2{}))
	for _, scale := range []float32{1e-6, 1e-3, 1, 50, 1e6} {
		g := AutoGain(common.V2(0.6, -0.8).Scale(scale))
		assert.Less(t, g.Length(), float32(1.0000001), "scale %v", scale)
	}
	// Same direction at every scale.
	a := AutoGain(common.V2(3, 4))
	b := AutoGain(common.V2(300, 400))
	assert.InDelta(t, a.X/a.Length(), b.X/b.Length(), 1e-6)
}

func TestOpticalFlowDegenerateInputIsZero(t *testing.T) {
	in := fnInputs{w: 16, h: 16, slots: []func(common.Vec2) common.Vec4{gray(0.4), gray(0.6)}}
	u := &Uniforms{OptFlowRadius: 2, OptFlowScale: 6}
	got := flowOpticalKernel(in, u, common.V2(0.5, 0.5))
	assert.Equal(t, common.V4(0, 0, 0, 1), got)
}

func TestOpticalFlowDetectsShift(t *testing.T) {
	// A gaussian blob that moved one texel to the right between frames.
	blob := func(cx float32) func(common.Vec2) common.Vec4 {
		return func(uv common.Vec2) common.Vec4 {
			dx, dy := uv.X-cx, uv.Y-0.5
			v := math32.Exp(-(dx*dx + dy*dy) / (2 * 0.06 * 0.06))
			return common.V4(v, v, v, 1)
		}
	}
	in := fnInputs{w: 64, h: 64, slots: []func(common.Vec2) common.Vec4{blob(0.5), blob(0.5 + 1.0/64)}}
	u := &Uniforms{OptFlowRadius: 2, OptFlowScale: 1}
	got := flowOpticalKernel(in, u, common.V2(0.5, 0.5))
	assert.Greater(t, got.X, float32(0.05))
	assert.Less(t, math32.Abs(got.Y), got.X)
}

func TestFlowSynthMixEndpoints(t *testing.T) {
	in := fnInputs{w: 16, h: 16, slots: []func(common.Vec2) common.Vec4{gray(0)}}
	u := &Uniforms{Aspect: 1, CurlScale: 2.5, CurlSpeed: 1, Time: 1.3}
	uv := common.V2(0.75, 0.5)

	u.FlowMix = 0
	edge := flowSynthKernel(in, u, uv)
	assert.InDelta(t, 0.25*0.25, edge.X, 1e-6)
	assert.InDelta(t, 0, edge.Y, 1e-6)

	u.FlowMix = 1
	curl := flowSynthKernel(in, u, uv)
	assert.InDelta(t, curl.Z, curl.XY().Length(), 1e-6)
	assert.NotEqual(t, edge, curl)
}

func TestLumaWithoutSourceIsBlack(t *testing.T) {
	in := fnInputs{w: 4, h: 4, slots: []func(common.Vec2) common.Vec4{gray(1)}}
	assert.Equal(t, black, lumaKernel(in, &Uniforms{}, common.V2(0.5, 0.5)))

	u := &Uniforms{SourceActive: 1, SourceScaleX: 1.5, SourceScaleY: 1}
	assert.Equal(t, black, lumaKernel(in, u, common.V2(0.05, 0.5)))
	got := lumaKernel(in, u, common.V2(0.5, 0.5))
	assert.InDelta(t, 1, got.X, 1e-6)
}

func TestBlurPreservesUniformImage(t *testing.T) {
	in := fnInputs{w: 32, h: 32, slots: []func(common.Vec2) common.Vec4{gray(0.6)}}
	u := &Uniforms{PassA: 1, BloomRadius: 1.2}
	got := blurKernel(in, u, common.V2(0.5, 0.5))
	assert.InDelta(t, 0.6, got.X, 1e-5)
}

func TestBloomThresholdAndCombine(t *testing.T) {
	u := &Uniforms{BloomThreshold: 0.6, BloomIntensity: 2}
	dark := fnInputs{w: 4, h: 4, slots: []func(common.Vec2) common.Vec4{gray(0.3)}}
	assert.Equal(t, common.V4(0, 0, 0, 1), bloomThresholdKernel(dark, u, common.V2(0.5, 0.5)))

	bright := fnInputs{w: 4, h: 4, slots: []func(common.Vec2) common.Vec4{gray(0.95)}}
	assert.InDelta(t, 0.95, bloomThresholdKernel(bright, u, common.V2(0.5, 0.5)).X, 1e-6)

	both := fnInputs{w: 4, h: 4, slots: []func(common.Vec2) common.Vec4{gray(0.2), gray(0.1)}}
	assert.InDelta(t, 0.4, bloomCombineKernel(both, u, common.V2(0.5, 0.5)).X, 1e-6)
}

func TestComposeWithoutSourceIsFinite(t *testing.T) {
	u := &Uniforms{
		Aspect: 1.5, EnableKaleido: 1, Segments: 8, KInner: 0.15, KOuter: 0.85, Zoom: 1,
		EnableWarp: 1, Warp: 0.3, Flow: 1, EnableColor: 1, ColorSpeed: 0.8,
		EnableChromaFlow: 1, ChromaAmt: 1.2, EnableTile: 1, TileX: 2, TileY: 3, TileMirror: 1, Time: 4.2,
	}
	in := fnInputs{w: 8, h: 8, slots: []func(common.Vec2) common.Vec4{gray(1), solid(common.V4(0.2, 0.1, 0, 1))}}
	for _, uv := range []common.Vec2{{X: 0, Y: 0}, {X: 0.5, Y: 0.5}, {X: 1, Y: 0.3}} {
		c := composeKernel(in, u, uv)
		for _, v := range []float32{c.X, c.Y, c.Z} {
			assert.False(t, math32.IsNaN(v))
			assert.GreaterOrEqual(t, v, float32(0))
		}
		assert.Equal(t, float32(1), c.W)
	}
}

func TestKaleidoFoldsIntoWedge(t *testing.T) {
	for _, p := range []common.Vec2{{X: 0.3, Y: 0.1}, {X: -0.2, Y: 0.25}, {X: 0.1, Y: -0.4}} {
		q := kaleido(p, 6, 0, 0)
		a := math32.Atan2(q.Y, q.X)
		assert.GreaterOrEqual(t, a, float32(-1e-5))
		assert.LessOrEqual(t, a, tau/12+1e-5)
		assert.InDelta(t, p.Length(), q.Length(), 1e-5)
	}
}

func TestPresentClamps(t *testing.T) {
	in := fnInputs{w: 2, h: 2, slots: []func(common.Vec2) common.Vec4{solid(common.V4(1.7, -0.2, 0.5, 0.3))}}
	assert.Equal(t, common.V4(1, 0, 0.5, 1), presentKernel(in, &Uniforms{}, common.V2(0.5, 0.5)))
}
