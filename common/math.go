package common

import (
	"unsafe"

	"github.com/chewxy/math32"
)

// Vec2 is a 2-component float32 vector used for texture coordinates and motion vectors.
type Vec2 struct {
	X, Y float32
}

// Vec4 is a 4-component float32 vector used for RGBA texels.
type Vec4 struct {
	X, Y, Z, W float32
}

// V2 constructs a Vec2.
func V2(x, y float32) Vec2 { return Vec2{X: x, Y: y} }

// V4 constructs a Vec4.
func V4(x, y, z, w float32) Vec4 { return Vec4{X: x, Y: y, Z: z, W: w} }

func (a Vec2) Add(b Vec2) Vec2 { return Vec2{a.X + b.X, a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2 { return Vec2{a.X - b.X, a.Y - b.Y} }
func (a Vec2) Mul(b Vec2) Vec2 { return Vec2{a.X * b.X, a.Y * b.Y} }
func (a Vec2) Scale(s float32) Vec2 { return Vec2{a.X * s, a.Y * s} }
func (a Vec2) Dot(b Vec2) float32 { return a.X*b.X + a.Y*b.Y }
func (a Vec2) Length() float32 { return math32.Sqrt(a.Dot(a)) }
func (a Vec2) Lerp(b Vec2, t float32) Vec2 {
	return Vec2{Lerp(a.X, b.X, t), Lerp(a.Y, b.Y, t)}
}

// Rotate rotates the vector counter-clockwise by angle radians.
func (a Vec2) Rotate(angle float32) Vec2 {
	s, c := math32.Sincos(angle)
	return Vec2{a.X*c - a.Y*s, a.X*s + a.Y*c}
}

func (a Vec4) Add(b Vec4) Vec4 { return Vec4{a.X + b.X, a.Y + b.Y, a.Z + b.Z, a.W + b.W} }
func (a Vec4) Sub(b Vec4) Vec4 { return Vec4{a.X - b.X, a.Y - b.Y, a.Z - b.Z, a.W - b.W} }
func (a Vec4) Scale(s float32) Vec4 { return Vec4{a.X * s, a.Y * s, a.Z * s, a.W * s} }
func (a Vec4) Lerp(b Vec4, t float32) Vec4 {
	return Vec4{Lerp(a.X, b.X, t), Lerp(a.Y, b.Y, t), Lerp(a.Z, b.Z, t), Lerp(a.W, b.W, t)}
}

// XY returns the first two components, the layout motion fields use.
func (a Vec4) XY() Vec2 { return Vec2{a.X, a.Y} }

// Clamp limits v to the inclusive range [lo, hi].
//
// Parameters:
//   - v: the value to clamp
//   - lo: lower bound
//   - hi: upper bound
//
// Returns:
//   - float32: the clamped value
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 limits v to [0, 1].
func Clamp01(v float32) float32 {
	return Clamp(v, 0, 1)
}

// Lerp linearly interpolates between a and b. It matches WGSL mix(), so t=1 yields b exactly
// and t=0 yields a exactly.
func Lerp(a, b, t float32) float32 {
	return a*(1-t) + b*t
}

// Smoothstep mirrors the WGSL builtin of the same name.
func Smoothstep(edge0, edge1, x float32) float32 {
	if edge0 == edge1 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := Clamp01((x - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}

// Fract returns the fractional part of x using floor semantics, as WGSL fract() does.
func Fract(x float32) float32 {
	return x - math32.Floor(x)
}

// Luma returns the Rec. 709 luminance of an RGB triple.
func Luma(r, g, b float32) float32 {
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// StructToBytes reinterprets a pointer to a struct as a raw byte slice using unsafe.
// The returned slice has length equal to the struct's size in memory.
//
// Parameters:
//   - v: pointer to the struct to reinterpret
//
// Returns:
//   - []byte: byte slice view of the struct's memory
func StructToBytes[T any](v *T) []byte {
	size := unsafe.Sizeof(*v)
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(size))
}
