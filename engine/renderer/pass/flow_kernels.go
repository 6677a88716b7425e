package pass

import (
	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/chewxy/math32"
)

// Optical flow output is clamped per component to this bound.
const maxOpticalFlow = 4

// flowSynthKernel blends an analytic curl field with an edge-following field derived from the
// luminance gradient. FlowMix 0 is pure edge, 1 is pure curl.
func flowSynthKernel(in Inputs, u *Uniforms, uv common.Vec2) common.Vec4 {
	a := aspect(u)
	p := centered(uv, a).Scale(u.CurlScale)
	t := u.Time * u.CurlSpeed

	// psi = sin(x+t)cos(y-0.7t) + 0.5 sin(0.5(x+y)+1.3t); curl = (dpsi/dy, -dpsi/dx)
	sa, ca := math32.Sincos(p.X + t)
	sb, cb := math32.Sincos(p.Y - 0.7*t)
	cc := math32.Cos(0.5*(p.X+p.Y) + 1.3*t)
	dx := ca*cb + 0.25*cc
	dy := -sa*sb + 0.25*cc
	curl := common.V2(dy, -dx).Scale(0.6)

	tx := texel(in, 0)
	gx := luma(in.Sample(0, uv.Add(common.V2(tx.X, 0)))) - luma(in.Sample(0, uv.Sub(common.V2(tx.X, 0))))
	gy := luma(in.Sample(0, uv.Add(common.V2(0, tx.Y)))) - luma(in.Sample(0, uv.Sub(common.V2(0, tx.Y))))
	edge := common.V2(-gy, gx).Scale(4)
	if l := edge.Length(); l > 1 {
		edge = edge.Scale(1 / l)
	}
	edge = edge.Add(centered(uv, a).Scale(0.25))

	return motion(edge.Lerp(curl, u.FlowMix))
}

// flowOpticalKernel estimates motion between previous (slot 0) and current (slot 1) luminance
// with a Lucas-Kanade solve over a (2r+1)^2 window. Degenerate windows yield zero motion.
func flowOpticalKernel(in Inputs, u *Uniforms, uv common.Vec2) common.Vec4 {
	r := int(common.Clamp(math32.Round(u.OptFlowRadius), 1, 3))
	t := texel(in, 1)
	dx := common.V2(t.X, 0)
	dy := common.V2(0, t.Y)

	var sxx, sxy, syy, sxt, syt float32
	for j := -r; j <= r; j++ {
		for i := -r; i <= r; i++ {
			q := uv.Add(common.V2(float32(i)*t.X, float32(j)*t.Y))
			ix := (luma(in.Sample(1, q.Add(dx))) - luma(in.Sample(1, q.Sub(dx)))) * 0.5
			iy := (luma(in.Sample(1, q.Add(dy))) - luma(in.Sample(1, q.Sub(dy)))) * 0.5
			it := luma(in.Sample(1, q)) - luma(in.Sample(0, q))
			sxx += ix * ix
			sxy += ix * iy
			syy += iy * iy
			sxt += ix * it
			syt += iy * it
		}
	}

	det := sxx*syy - sxy*sxy
	if det < 1e-6 {
		return motion(common.Vec2{})
	}
	vx := (-syy*sxt + sxy*syt) / det
	vy := (sxy*sxt - sxx*syt) / det

	gain := u.OptFlowScale * 16
	v := common.V2(
		common.Clamp(vx*t.X*gain, -maxOpticalFlow, maxOpticalFlow),
		common.Clamp(vy*t.Y*gain, -maxOpticalFlow, maxOpticalFlow),
	)
	return motion(v)
}

// flowCombineKernel mixes a fine (slot 0) and coarse (slot 1) estimate; PassA is the coarse weight.
func flowCombineKernel(in Inputs, u *Uniforms, uv common.Vec2) common.Vec4 {
	fine := in.Sample(0, uv).XY()
	coarse := in.Sample(1, uv).XY()
	return motion(fine.Lerp(coarse, u.PassA))
}

// flowSmoothKernel publishes the smoothed field: optional auto-gain on the raw field (slot 0)
// followed by an exponential moving average against the previous published field (slot 1).
// PassA set primes the average with the raw field.
func flowSmoothKernel(in Inputs, u *Uniforms, uv common.Vec2) common.Vec4 {
	raw := in.Sample(0, uv).XY()
	if on(u.AutoGain) {
		raw = AutoGain(raw)
	}
	if on(u.PassA) {
		return motion(raw)
	}
	prev := in.Sample(1, uv).XY()
	return motion(prev.Lerp(raw, 1-u.Smoothing))
}
