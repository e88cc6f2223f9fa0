// File: utils.go
package main

// GlyphSpacing returns the horizontal step between glyphs. Up to six
// glyphs keep the fixed 30-unit step; longer challenges are squeezed so
// the last glyph still starts inside the surface.
func GlyphSpacing(n int) float64 {
	if n <= 0 {
		return glyphSpacing
	}
	fit := float64(SurfaceWidth-2*glyphLeft) / float64(n)
	if fit < glyphSpacing {
		return fit
	}
	return glyphSpacing
}
