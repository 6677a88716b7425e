package pass

import (
	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/chewxy/math32"
)

const tau = 2 * math32.Pi

// kaleido folds p into one mirrored wedge of segments and folds the radius into the band
// [inner, outer] with a triangle wave.
func kaleido(p common.Vec2, segments, inner, outer float32) common.Vec2 {
	r := p.Length()
	a := math32.Atan2(p.Y, p.X)
	seg := tau / segments
	a = wrapAngle(a, seg)
	if a > seg*0.5 {
		a = seg - a
	}
	if band := outer - inner; band > 1e-4 {
		x := r - inner
		r = inner + band - math32.Abs(wrapAngle(x, 2*band)-band)
	}
	s, c := math32.Sincos(a)
	return common.V2(c*r, s*r)
}

// tile repeats uv over a tx by ty grid, mirroring alternate cells when mirror is set.
func tile(uv common.Vec2, tx, ty float32, mirror bool) common.Vec2 {
	g := common.V2(uv.X*math32.Max(tx, 1), uv.Y*math32.Max(ty, 1))
	f := common.V2(common.Fract(g.X), common.Fract(g.Y))
	if mirror {
		if int(math32.Floor(g.X))%2 != 0 {
			f.X = 1 - f.X
		}
		if int(math32.Floor(g.Y))%2 != 0 {
			f.Y = 1 - f.Y
		}
	}
	return f
}

// composeKernel renders the scene: tiling, rotation and zoom, kaleidoscope fold and warp of the
// sampling coordinate, then a procedural colour blended with the source (slot 0) and tinted by
// the motion field (slot 1).
func composeKernel(in Inputs, u *Uniforms, uv common.Vec2) common.Vec4 {
	a := aspect(u)
	flow := in.Sample(1, uv).XY()

	q := uv
	if on(u.EnableTile) {
		q = tile(uv, u.TileX, u.TileY, on(u.TileMirror))
	}
	p := centered(q, a)
	p = p.Rotate(u.Rotate + u.Time*0.05*u.Flow)
	p = p.Scale(1 / math32.Max(u.Zoom, 1e-3))

	if on(u.EnableKaleido) && u.Segments >= 1 {
		p = kaleido(p, u.Segments, u.KInner, u.KOuter)
	}
	if on(u.EnableWarp) {
		ph := u.Time * u.Flow
		p = p.Add(common.V2(math32.Sin(p.Y*6+ph), math32.Cos(p.X*6+ph)).Scale(u.Warp * 0.1))
	}

	r := p.Length()
	ang := math32.Atan2(p.Y, p.X)
	var col common.Vec4
	if on(u.EnableColor) {
		ph := r*3 + ang/tau + u.Time*u.ColorSpeed*0.1
		col = opaque(
			0.5+0.5*math32.Cos(tau*ph),
			0.5+0.5*math32.Cos(tau*(ph+0.33)),
			0.5+0.5*math32.Cos(tau*(ph+0.67)),
		)
	} else {
		g := 0.5 + 0.5*math32.Cos(r*20-u.Time*2)
		col = opaque(g, g, g)
	}

	if on(u.SourceActive) {
		suv := sourceUV(u, uncentered(p, a))
		tex := black
		if inUnit(suv) {
			var off common.Vec2
			if on(u.EnableChromaFlow) {
				off = flow.Scale(u.ChromaAmt * 0.002)
			}
			tex = opaque(
				in.Sample(0, suv.Add(off)).X,
				in.Sample(0, suv).Y,
				in.Sample(0, suv.Sub(off)).Z,
			)
		}
		col = col.Lerp(tex, u.TexMix)
	} else if on(u.EnableChromaFlow) {
		col.X += flow.X * u.ChromaAmt * 0.05
		col.Z += flow.Y * u.ChromaAmt * 0.05
	}

	return opaque(math32.Max(col.X, 0), math32.Max(col.Y, 0), math32.Max(col.Z, 0))
}

// feedbackKernel warps the previous accumulation (slot 0) and blends the composed frame
// (slot 1) into it: advection by the motion field (slot 2), per-frame rotate and zoom, log-polar
// remap, echo taps, then write = decay*history + (1-decay)*current.
func feedbackKernel(in Inputs, u *Uniforms, uv common.Vec2) common.Vec4 {
	cur := in.Sample(1, uv)
	if !on(u.EnableFeedback) {
		return cur
	}
	a := aspect(u)
	p := centered(uv, a)

	if on(u.EnableAdvect) {
		p = p.Sub(in.Sample(2, uv).XY().Scale(u.AdvectStrength * 0.01))
	}
	p = p.Rotate(-u.RotateRate).Scale(1 / (1 + u.ZoomRate))

	if on(u.EnablePolar) {
		if r := p.Length(); r > 1e-6 {
			ang := math32.Atan2(p.Y, p.X)
			lr := math32.Log(r) - math32.Log(math32.Max(u.PolarScale, 1e-3))*0.01
			ang += u.PolarTwist * 0.01 * lr
			s, c := math32.Sincos(ang)
			r = math32.Exp(lr)
			p = common.V2(c*r, s*r)
		}
	}

	base := in.Sample(0, uncentered(p, a))
	if taps := int(u.EchoTaps); taps >= 1 {
		var sum common.Vec4
		for k := 1; k <= taps; k++ {
			sum = sum.Add(in.Sample(0, uncentered(p.Rotate(float32(k)*u.EchoAngle), a)))
		}
		base = base.Lerp(sum.Scale(1/float32(taps)), u.EchoMix)
	}

	out := base.Scale(u.Decay).Add(cur.Scale(1 - u.Decay))
	out.W = 1
	return out
}
