package pass

import (
	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/chewxy/math32"
)

// Gaussian weights of the 9-tap separable blur, centre first.
var blurWeights = [5]float32{0.227027, 0.1945946, 0.1216216, 0.054054, 0.016216}

var black = common.V4(0, 0, 0, 1)

func opaque(r, g, b float32) common.Vec4 {
	return common.V4(r, g, b, 1)
}

func luma(c common.Vec4) float32 {
	return common.Luma(c.X, c.Y, c.Z)
}

// motion packs a motion vector as (x, y, |v|, 1).
func motion(v common.Vec2) common.Vec4 {
	return common.V4(v.X, v.Y, v.Length(), 1)
}

func aspect(u *Uniforms) common.Vec2 {
	if u.Aspect <= 0 {
		return common.V2(1, 1)
	}
	return common.V2(u.Aspect, 1)
}

// centered maps uv to aspect-corrected coordinates around the image centre.
func centered(uv common.Vec2, a common.Vec2) common.Vec2 {
	return uv.Sub(common.V2(0.5, 0.5)).Mul(a)
}

// uncentered is the inverse of centered.
func uncentered(p common.Vec2, a common.Vec2) common.Vec2 {
	return common.V2(p.X/a.X+0.5, p.Y/a.Y+0.5)
}

func texel(in Inputs, slot int) common.Vec2 {
	w, h := in.Size(slot)
	return common.V2(1/float32(max(w, 1)), 1/float32(max(h, 1)))
}

func inUnit(uv common.Vec2) bool {
	return uv.X >= 0 && uv.X <= 1 && uv.Y >= 0 && uv.Y <= 1
}

// sourceUV maps output uv into source uv using the fit scale.
func sourceUV(u *Uniforms, uv common.Vec2) common.Vec2 {
	return common.V2((uv.X-0.5)*u.SourceScaleX+0.5, (uv.Y-0.5)*u.SourceScaleY+0.5)
}

func lumaKernel(in Inputs, u *Uniforms, uv common.Vec2) common.Vec4 {
	if !on(u.SourceActive) {
		return black
	}
	suv := sourceUV(u, uv)
	if !inUnit(suv) {
		return black
	}
	l := luma(in.Sample(0, suv))
	return opaque(l, l, l)
}

func copyKernel(in Inputs, u *Uniforms, uv common.Vec2) common.Vec4 {
	return in.Sample(0, uv)
}

func downsampleKernel(in Inputs, u *Uniforms, uv common.Vec2) common.Vec4 {
	t := texel(in, 0).Scale(0.5)
	sum := in.Sample(0, uv.Add(common.V2(-t.X, -t.Y))).
		Add(in.Sample(0, uv.Add(common.V2(t.X, -t.Y)))).
		Add(in.Sample(0, uv.Add(common.V2(-t.X, t.Y)))).
		Add(in.Sample(0, uv.Add(common.V2(t.X, t.Y))))
	return sum.Scale(0.25)
}

func bloomThresholdKernel(in Inputs, u *Uniforms, uv common.Vec2) common.Vec4 {
	c := in.Sample(0, uv)
	k := common.Smoothstep(u.BloomThreshold, u.BloomThreshold+0.25, luma(c))
	return opaque(c.X*k, c.Y*k, c.Z*k)
}

// blurKernel runs one direction of the separable blur. PassA/PassB hold the direction in texels.
func blurKernel(in Inputs, u *Uniforms, uv common.Vec2) common.Vec4 {
	t := texel(in, 0)
	dir := common.V2(u.PassA*t.X, u.PassB*t.Y).Scale(u.BloomRadius)
	sum := in.Sample(0, uv).Scale(blurWeights[0])
	for i := 1; i < len(blurWeights); i++ {
		off := dir.Scale(float32(i))
		sum = sum.Add(in.Sample(0, uv.Add(off)).Add(in.Sample(0, uv.Sub(off))).Scale(blurWeights[i]))
	}
	sum.W = 1
	return sum
}

func bloomCombineKernel(in Inputs, u *Uniforms, uv common.Vec2) common.Vec4 {
	c := in.Sample(0, uv).Add(in.Sample(1, uv).Scale(u.BloomIntensity))
	c.W = 1
	return c
}

func presentKernel(in Inputs, u *Uniforms, uv common.Vec2) common.Vec4 {
	c := in.Sample(0, uv)
	return opaque(common.Clamp01(c.X), common.Clamp01(c.Y), common.Clamp01(c.Z))
}

// AutoGain normalises a motion vector to a magnitude below 1: v / (|v| + AutoGainKnee).
// A zero vector stays zero.
func AutoGain(v common.Vec2) common.Vec2 {
	return v.Scale(1 / (v.Length() + AutoGainKnee))
}

// AutoGainKnee is the magnitude at which auto-gain halves a vector.
const AutoGainKnee = 0.25

// wrapAngle maps a into [0, period).
func wrapAngle(a, period float32) float32 {
	return a - period*math32.Floor(a/period)
}
