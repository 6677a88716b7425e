package frame

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/Carmen-Shannon/kaleido-go/engine/params"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/pass"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRenderer(t *testing.T) renderer.Renderer {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, nil, renderer.WithWorkers(3))
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func newPool(t *testing.T, r renderer.Renderer, w, h int) target.Pool {
	t.Helper()
	p := target.NewPool(r)
	_, err := p.Resize(w, h)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func settingsFor(w, h int, seconds float64, values map[string]any) Settings {
	snap := params.NewStore(params.WithValues(values)).Snapshot()
	return NewSettings(snap, w, h, seconds, 0)
}

// still returns the values of a feedback setup with no geometric transform and no motion.
func still(decay float64) map[string]any {
	return map[string]any{
		params.EnableFeedback:      true,
		params.Decay:               decay,
		params.ZoomRate:            0,
		params.RotateRate:          0,
		params.EnablePolarFeedback: false,
		params.EnableFlowAdvect:    false,
		params.EchoTaps:            0,
	}
}

func solid(t *testing.T, r renderer.Renderer, w, h int, v float32) renderer.Texture {
	t.Helper()
	tex, err := r.CreateTexture("solid", w, h)
	require.NoError(t, err)
	require.NoError(t, r.Clear(tex, common.V4(v, v, v, 1)))
	t.Cleanup(tex.Release)
	return tex
}

func pattern(t *testing.T, r renderer.Renderer, w, h int) renderer.Texture {
	t.Helper()
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			pix[i] = byte(x * 255 / max(w-1, 1))
			pix[i+1] = byte(y * 255 / max(h-1, 1))
			pix[i+2] = byte((x ^ y) * 16)
			pix[i+3] = 255
		}
	}
	tex, err := r.UploadSource(nil, &common.TextureStagingData{Pixels: pix, Width: uint32(w), Height: uint32(h)})
	require.NoError(t, err)
	t.Cleanup(tex.Release)
	return tex
}

func pixels(t *testing.T, r renderer.Renderer, tex renderer.Texture) []float32 {
	t.Helper()
	pix, err := r.ReadPixels(tex)
	require.NoError(t, err)
	return pix
}

func assertFinite(t *testing.T, pix []float32) {
	t.Helper()
	for i, v := range pix {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("non-finite value %v at %d", v, i)
		}
	}
}

func TestNewSettingsReadsSnapshot(t *testing.T) {
	s := settingsFor(200, 100, 1.5, map[string]any{
		params.Segments:          6,
		params.Decay:             0.9,
		params.EnableOpticalFlow: true,
		params.EnableBloom:       false,
		params.PyrLargeWeight:    0.25,
	})
	assert.Equal(t, float32(2), s.Uniforms.Aspect)
	assert.Equal(t, float32(1.5), s.Uniforms.Time)
	assert.Equal(t, float32(6), s.Uniforms.Segments)
	assert.InDelta(t, 0.9, s.Uniforms.Decay, 1e-6)
	assert.Equal(t, float32(0), s.Uniforms.SourceActive)
	assert.True(t, s.OpticalFlow)
	assert.False(t, s.Bloom)
	assert.Equal(t, float32(0.25), s.PyrLargeWeight)

	s.BindSource(100, 100, common.FitStretch)
	assert.Equal(t, float32(1), s.Uniforms.SourceActive)
	assert.Equal(t, float32(1), s.Uniforms.SourceScaleX)
}

func TestAccumulatorConvergesToCurrent(t *testing.T) {
	const w, h, decay = 16, 8, 0.965
	r := newRenderer(t)
	pool := newPool(t, r, w, h)
	acc := NewAccumulator(r, pool)
	s := settingsFor(w, h, 0, still(decay))

	black := solid(t, r, w, h, 0)
	white := solid(t, r, w, h, 1)
	motion := solid(t, r, w, h, 0)

	// The first frame after allocation starts the history from black.
	out, err := acc.Step(&s, black, motion)
	require.NoError(t, err)
	assert.False(t, pool.NeedsClear())
	assert.Equal(t, float32(0), pixels(t, r, out)[0])

	prev, prevDelta := float32(0), float32(0)
	for n := 1; n <= 200; n++ {
		out, err = acc.Step(&s, white, motion)
		require.NoError(t, err)
		v := pixels(t, r, out)[0]
		delta := v - prev
		require.GreaterOrEqual(t, delta, float32(0), "frame %d", n)
		if n > 1 && n < 20 {
			assert.InDelta(t, decay, delta/prevDelta, 1e-3, "frame %d", n)
		}
		prev, prevDelta = v, delta
	}

	for i, v := range pixels(t, r, out) {
		if i%4 == 3 {
			continue
		}
		assert.Greater(t, v, float32(0.99))
	}
}

func TestAccumulatorBypassIsExact(t *testing.T) {
	const w, h = 12, 10
	r := newRenderer(t)
	pool := newPool(t, r, w, h)
	acc := NewAccumulator(r, pool)
	motion := solid(t, r, w, h, 0)

	on := settingsFor(w, h, 0, nil)
	white := solid(t, r, w, h, 1)
	for i := 0; i < 3; i++ {
		_, err := acc.Step(&on, white, motion)
		require.NoError(t, err)
	}

	off := settingsFor(w, h, 0, map[string]any{params.EnableFeedback: false})
	current := pattern(t, r, w, h)
	out, err := acc.Step(&off, current, motion)
	require.NoError(t, err)
	assert.Equal(t, pixels(t, r, current), pixels(t, r, out))
}

func TestAccumulatorResetClearsHistory(t *testing.T) {
	const w, h = 8, 8
	r := newRenderer(t)
	pool := newPool(t, r, w, h)
	acc := NewAccumulator(r, pool)
	motion := solid(t, r, w, h, 0)
	s := settingsFor(w, h, 0, still(0.9))

	white := solid(t, r, w, h, 1)
	for i := 0; i < 5; i++ {
		_, err := acc.Step(&s, white, motion)
		require.NoError(t, err)
	}

	pool.RequestClear()
	current := pattern(t, r, w, h)
	out, err := acc.Step(&s, current, motion)
	require.NoError(t, err)
	assert.Equal(t, pixels(t, r, current), pixels(t, r, out))

	other := pool.Pair(target.Accum).Write()
	for i, v := range pixels(t, r, other) {
		if i%4 == 3 {
			assert.Equal(t, float32(1), v)
		} else {
			assert.Equal(t, float32(0), v)
		}
	}
}

func TestEchoMixIrrelevantWithoutTaps(t *testing.T) {
	const w, h = 16, 16
	run := func(echoMix float64) []float32 {
		r := newRenderer(t)
		pool := newPool(t, r, w, h)
		acc := NewAccumulator(r, pool)
		motion := solid(t, r, w, h, 0)
		current := pattern(t, r, w, h)
		s := settingsFor(w, h, 0, map[string]any{
			params.EchoTaps:   0,
			params.EchoMix:    echoMix,
			params.EchoAngle:  0.5,
			params.RotateRate: 0.02,
			params.ZoomRate:   0.01,
		})
		var out renderer.Texture
		for i := 0; i < 4; i++ {
			var err error
			out, err = acc.Step(&s, current, motion)
			require.NoError(t, err)
		}
		return pixels(t, r, out)
	}
	assert.Equal(t, run(0), run(1))
}

func TestEchoTapsChangeOutput(t *testing.T) {
	const w, h = 16, 16
	run := func(taps int) []float32 {
		r := newRenderer(t)
		pool := newPool(t, r, w, h)
		acc := NewAccumulator(r, pool)
		motion := solid(t, r, w, h, 0)
		current := pattern(t, r, w, h)
		s := settingsFor(w, h, 0, map[string]any{
			params.EchoTaps:  taps,
			params.EchoMix:   1,
			params.EchoAngle: 0.5,
		})
		var out renderer.Texture
		for i := 0; i < 3; i++ {
			var err error
			out, err = acc.Step(&s, current, motion)
			require.NoError(t, err)
		}
		return pixels(t, r, out)
	}
	assert.NotEqual(t, run(0), run(2))
}

func TestSmoothingZeroPublishesRaw(t *testing.T) {
	const w, h = 16, 12
	r := newRenderer(t)
	pool := newPool(t, r, w, h)
	est := NewEstimator(r, pool)

	for i, seconds := range []float64{0, 1.25, 3.5} {
		s := settingsFor(w, h, seconds, map[string]any{
			params.FlowSmoothing:  0,
			params.EnableAutoGain: false,
		})
		require.NoError(t, est.Analyze(&s, nil))
		published, err := est.Estimate(&s)
		require.NoError(t, err)
		assert.Equal(t, pixels(t, r, pool.Target(target.FlowSynth)), pixels(t, r, published), "frame %d", i)
		pool.MarkCleared()
	}
}

func TestSmoothingConvergesToConstantRaw(t *testing.T) {
	const w, h, smoothing = 8, 8, 0.9
	r := newRenderer(t)
	pool := newPool(t, r, w, h)
	est := NewEstimator(r, pool)
	values := map[string]any{params.FlowSmoothing: smoothing, params.EnableAutoGain: false}

	s0 := settingsFor(w, h, 0, values)
	require.NoError(t, est.Analyze(&s0, nil))
	first, err := est.Estimate(&s0)
	require.NoError(t, err)
	pub0 := pixels(t, r, first)
	pool.MarkCleared()

	s1 := settingsFor(w, h, 2, values)
	next, err := est.Estimate(&s1)
	require.NoError(t, err)
	pub1 := pixels(t, r, next)
	raw := pixels(t, r, pool.Target(target.FlowSynth))
	for i := 0; i < len(raw); i += 4 {
		for c := 0; c < 2; c++ {
			want := pub0[i+c] + (1-smoothing)*(raw[i+c]-pub0[i+c])
			assert.InDelta(t, want, pub1[i+c], 1e-5)
		}
	}

	var last renderer.Texture
	for n := 0; n < 200; n++ {
		last, err = est.Estimate(&s1)
		require.NoError(t, err)
	}
	got := pixels(t, r, last)
	for i := 0; i < len(raw); i += 4 {
		assert.InDelta(t, raw[i], got[i], 1e-3)
		assert.InDelta(t, raw[i+1], got[i+1], 1e-3)
	}
}

func TestAutoGainBoundsPublishedField(t *testing.T) {
	const w, h = 16, 16
	r := newRenderer(t)
	pool := newPool(t, r, w, h)
	est := NewEstimator(r, pool)
	s := settingsFor(w, h, 0.7, map[string]any{
		params.FlowSmoothing:  0,
		params.EnableAutoGain: true,
		params.CurlScale:      8,
	})
	require.NoError(t, est.Analyze(&s, nil))
	published, err := est.Estimate(&s)
	require.NoError(t, err)

	raw := pixels(t, r, pool.Target(target.FlowSynth))
	got := pixels(t, r, published)
	for i := 0; i < len(raw); i += 4 {
		want := pass.AutoGain(common.V2(raw[i], raw[i+1]))
		assert.InDelta(t, want.X, got[i], 1e-5)
		assert.InDelta(t, want.Y, got[i+1], 1e-5)
		assert.Less(t, common.V2(got[i], got[i+1]).Length(), float32(1))
	}
}

func TestResetFeedbackKeepsMotionSmoothing(t *testing.T) {
	const w, h, smoothing = 8, 8, 0.9
	r := newRenderer(t)
	pool := newPool(t, r, w, h)
	est := NewEstimator(r, pool)
	values := map[string]any{params.FlowSmoothing: smoothing, params.EnableAutoGain: false}

	var prev []float32
	for i, seconds := range []float64{0, 1.5} {
		s := settingsFor(w, h, seconds, values)
		require.NoError(t, est.Analyze(&s, nil))
		published, err := est.Estimate(&s)
		require.NoError(t, err)
		prev = pixels(t, r, published)
		if i == 0 {
			pool.MarkCleared()
		}
	}

	// A feedback reset only concerns the accumulation pair.
	pool.RequestClear()
	s := settingsFor(w, h, 3.25, values)
	require.NoError(t, est.Analyze(&s, nil))
	published, err := est.Estimate(&s)
	require.NoError(t, err)
	assert.True(t, pool.NeedsClear())

	got := pixels(t, r, published)
	raw := pixels(t, r, pool.Target(target.FlowSynth))
	moved := false
	for i := 0; i < len(raw); i += 4 {
		for c := 0; c < 2; c++ {
			want := prev[i+c] + (1-smoothing)*(raw[i+c]-prev[i+c])
			require.InDelta(t, want, got[i+c], 1e-5, "texel %d channel %d", i/4, c)
			if math.Abs(float64(raw[i+c]-got[i+c])) > 1e-4 {
				moved = true
			}
		}
	}
	assert.True(t, moved, "published field must lag the raw field")
}

func TestResetFeedbackKeepsLuminanceHistory(t *testing.T) {
	const w, h = 16, 16
	r := newRenderer(t)
	pool := newPool(t, r, w, h)
	est := NewEstimator(r, pool)
	s := settingsFor(w, h, 0, map[string]any{params.EnableOpticalFlow: true})
	s.BindSource(w, h, common.FitStretch)

	require.NoError(t, est.Analyze(&s, pattern(t, r, w, h)))
	_, err := est.Estimate(&s)
	require.NoError(t, err)
	assert.False(t, pool.NeedsHistoryReset())
	lumaFirst := pixels(t, r, pool.Target(target.Luma))

	pool.RequestClear()
	require.NoError(t, est.Analyze(&s, solid(t, r, w, h, 0.5)))
	assert.Equal(t, lumaFirst, pixels(t, r, pool.Target(target.LumaPrev)))
	assert.NotEqual(t, lumaFirst, pixels(t, r, pool.Target(target.Luma)))

	// A history reset reseeds the previous luminance from the current frame.
	pool.RequestHistoryReset()
	require.NoError(t, est.Analyze(&s, pattern(t, r, w, h)))
	assert.Equal(t, pixels(t, r, pool.Target(target.Luma)), pixels(t, r, pool.Target(target.LumaPrev)))
}

// blob uploads a gray gaussian spot centred at (cx, h/2) in texels.
func blob(t *testing.T, r renderer.Renderer, w, h int, cx float64) renderer.Texture {
	t.Helper()
	const sigma = 3.0
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-float64(h)/2
			v := byte(255 * math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma)))
			i := (y*w + x) * 4
			pix[i], pix[i+1], pix[i+2], pix[i+3] = v, v, v, 255
		}
	}
	tex, err := r.UploadSource(nil, &common.TextureStagingData{Pixels: pix, Width: uint32(w), Height: uint32(h)})
	require.NoError(t, err)
	t.Cleanup(tex.Release)
	return tex
}

// shiftedFlow publishes the pyramidal optical flow of a blob moving right by two texels.
func shiftedFlow(t *testing.T, largeWeight float64) (published, fine []float32) {
	t.Helper()
	const w, h = 32, 32
	r := newRenderer(t)
	pool := newPool(t, r, w, h)
	est := NewEstimator(r, pool)
	s := settingsFor(w, h, 0, map[string]any{
		params.EnableOpticalFlow:   true,
		params.EnablePyramidalFlow: true,
		params.PyrLargeWeight:      largeWeight,
		params.FlowSmoothing:       0,
		params.EnableAutoGain:      false,
		params.OptFlowScale:        1,
	})
	s.BindSource(w, h, common.FitStretch)

	require.NoError(t, est.Analyze(&s, blob(t, r, w, h, 15)))
	_, err := est.Estimate(&s)
	require.NoError(t, err)
	require.NoError(t, est.Analyze(&s, blob(t, r, w, h, 17)))
	out, err := est.Estimate(&s)
	require.NoError(t, err)

	published = pixels(t, r, out)
	assertFinite(t, published)
	return published, pixels(t, r, pool.Target(target.OptFlow))
}

func TestPyramidalWeightSelectsLevel(t *testing.T) {
	fineOnly, fine := shiftedFlow(t, 0)
	coarseOnly, _ := shiftedFlow(t, 1)

	for i := 0; i < len(fine); i += 4 {
		require.Equal(t, fine[i], fineOnly[i], "texel %d", i/4)
		require.Equal(t, fine[i+1], fineOnly[i+1], "texel %d", i/4)
	}

	var fineSum, diff float64
	for i := 0; i < len(fineOnly); i += 4 {
		fineSum += float64(fineOnly[i])
		diff += math.Abs(float64(fineOnly[i]-coarseOnly[i])) + math.Abs(float64(fineOnly[i+1]-coarseOnly[i+1]))
	}
	assert.Positive(t, fineSum, "rightward motion")
	assert.Greater(t, diff, 1e-3, "coarse weight changes the published field")
}

func TestBlankOpticalFlowIsZero(t *testing.T) {
	const w, h = 12, 8
	r := newRenderer(t)
	pool := newPool(t, r, w, h)
	est := NewEstimator(r, pool)
	s := settingsFor(w, h, 0, map[string]any{
		params.EnableOpticalFlow:   true,
		params.EnablePyramidalFlow: true,
		params.EnableAutoGain:      true,
		params.FlowSmoothing:       0.5,
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, est.Analyze(&s, nil))
		published, err := est.Estimate(&s)
		require.NoError(t, err)
		pix := pixels(t, r, published)
		assertFinite(t, pix)
		for j := 0; j < len(pix); j += 4 {
			require.Equal(t, float32(0), pix[j])
			require.Equal(t, float32(0), pix[j+1])
		}
		pool.MarkCleared()
	}
}

func TestOpticalFlowCapturesPreviousLuminanceFirst(t *testing.T) {
	const w, h = 16, 16
	r := newRenderer(t)
	pool := newPool(t, r, w, h)
	est := NewEstimator(r, pool)
	s := settingsFor(w, h, 0, map[string]any{params.EnableOpticalFlow: true})
	s.BindSource(w, h, common.FitStretch)

	first := pattern(t, r, w, h)
	require.NoError(t, est.Analyze(&s, first))
	lumaFirst := pixels(t, r, pool.Target(target.Luma))
	// A fresh history is seeded so the first measurement sees no motion.
	assert.Equal(t, lumaFirst, pixels(t, r, pool.Target(target.LumaPrev)))
	pool.MarkHistoryReset()

	second := solid(t, r, w, h, 0.5)
	require.NoError(t, est.Analyze(&s, second))
	assert.Equal(t, lumaFirst, pixels(t, r, pool.Target(target.LumaPrev)))
	assert.NotEqual(t, lumaFirst, pixels(t, r, pool.Target(target.Luma)))
	assert.False(t, pool.NeedsRebuild())
}

func TestStaticLuminanceNotRebuilt(t *testing.T) {
	const w, h = 8, 8
	r := newRenderer(t)
	pool := newPool(t, r, w, h)
	est := NewEstimator(r, pool)
	s := settingsFor(w, h, 0, nil)
	src := pattern(t, r, w, h)
	s.BindSource(w, h, common.FitStretch)

	require.NoError(t, est.Analyze(&s, src))
	assert.False(t, pool.NeedsRebuild())
	before := r.PassCount()
	require.NoError(t, est.Analyze(&s, src))
	assert.Equal(t, before, r.PassCount())

	pool.RequestRebuild()
	require.NoError(t, est.Analyze(&s, src))
	assert.Equal(t, before+1, r.PassCount())
}

func TestBloomDisabledReturnsInput(t *testing.T) {
	r := newRenderer(t)
	pool := newPool(t, r, 8, 8)
	b := NewBloom(r, pool)
	s := settingsFor(8, 8, 0, map[string]any{params.EnableBloom: false})
	scene := pattern(t, r, 8, 8)

	before := r.PassCount()
	out, err := b.Apply(&s, scene)
	require.NoError(t, err)
	assert.Same(t, scene, out)
	assert.Equal(t, before, r.PassCount())
}

func TestBloomBelowThresholdIsIdentity(t *testing.T) {
	r := newRenderer(t)
	pool := newPool(t, r, 8, 8)
	b := NewBloom(r, pool)
	s := settingsFor(8, 8, 0, map[string]any{
		params.EnableBloom:    true,
		params.BloomThreshold: 0.6,
	})
	scene := solid(t, r, 8, 8, 0.2)

	out, err := b.Apply(&s, scene)
	require.NoError(t, err)
	assert.Same(t, pool.Target(target.Final), out)
	want := pixels(t, r, scene)
	got := pixels(t, r, out)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-6)
	}
}

func TestBloomAddsGlow(t *testing.T) {
	r := newRenderer(t)
	pool := newPool(t, r, 8, 8)
	b := NewBloom(r, pool)
	s := settingsFor(8, 8, 0, map[string]any{
		params.EnableBloom:    true,
		params.BloomThreshold: 0.6,
		params.BloomIntensity: 1,
	})
	scene := solid(t, r, 8, 8, 1)

	out, err := b.Apply(&s, scene)
	require.NoError(t, err)
	pix := pixels(t, r, out)
	assert.InDelta(t, 2, pix[0], 1e-4)
	assert.Equal(t, float32(1), pix[3])
}
