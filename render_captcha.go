// File: render_captcha.go
package main

import (
	"bytes"
	"image/png"
	"strconv"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	SurfaceWidth  = 200
	SurfaceHeight = 50

	glyphLeft     = 10
	glyphSpacing  = 30
	glyphBaseline = 35

	defaultFontSize = 30

	noiseColor = "#000000"
)

// Surface is the drawing target of a render pass. *gg.Context implements it.
type Surface interface {
	SetHexColor(x string)
	Clear()
	SetFontFace(fontFace font.Face)
	DrawString(s string, x, y float64)
	SetLineWidth(lineWidth float64)
	DrawLine(x1, y1, x2, y2 float64)
	Stroke()
}

// Style holds caller supplied rendering options.
// Only BackgroundColor, Font and NoiseLines affect the drawn surface.
type Style struct {
	BackgroundColor string
	Font            string
	NoiseLines      int // negative means default

	ButtonColor    string
	ButtonTxtColor string
	ButtonWidth    string
	ButtonContent  string // may be an HTML entity such as "&#x21bb;"
	InputHeight    string
}

// DefaultStyle 默认样式
func DefaultStyle() Style {
	return Style{
		BackgroundColor: "#f2f2f2",
		Font:            "bold 30px Arial",
		NoiseLines:      6,
		ButtonColor:     "#111",
		ButtonTxtColor:  "#fff",
		ButtonWidth:     "42px",
		ButtonContent:   "&#x21bb;",
		InputHeight:     "50px",
	}
}

// withDefaults fills empty fields from DefaultStyle.
func (s Style) withDefaults() Style {
	d := DefaultStyle()
	if s.BackgroundColor == "" {
		s.BackgroundColor = d.BackgroundColor
	}
	if s.Font == "" {
		s.Font = d.Font
	}
	if s.NoiseLines < 0 {
		s.NoiseLines = d.NoiseLines
	}
	if s.ButtonColor == "" {
		s.ButtonColor = d.ButtonColor
	}
	if s.ButtonTxtColor == "" {
		s.ButtonTxtColor = d.ButtonTxtColor
	}
	if s.ButtonWidth == "" {
		s.ButtonWidth = d.ButtonWidth
	}
	if s.ButtonContent == "" {
		s.ButtonContent = d.ButtonContent
	}
	if s.InputHeight == "" {
		s.InputHeight = d.InputHeight
	}
	return s
}

// drawKey is the subset of inputs that decides whether a redraw is needed.
type drawKey struct {
	captcha         string
	backgroundColor string
	font            string
	noiseLines      int
}

func (s Style) drawKey(captcha string) drawKey {
	return drawKey{
		captcha:         captcha,
		backgroundColor: s.BackgroundColor,
		font:            s.Font,
		noiseLines:      s.NoiseLines,
	}
}

// FontSpec is a parsed CSS font shorthand such as "bold 30px Arial".
type FontSpec struct {
	Bold   bool
	Italic bool
	Size   float64 // pixels
	Family string
}

// ParseFont parses a CSS-like font shorthand. Anything it does not
// understand is ignored; a missing size falls back to 30px.
func ParseFont(spec string) FontSpec {
	fs := FontSpec{Size: defaultFontSize}
	var family []string
	for _, tok := range strings.Fields(spec) {
		lower := strings.ToLower(tok)
		switch lower {
		case "bold", "bolder", "600", "700", "800", "900":
			fs.Bold = true
			continue
		case "italic", "oblique":
			fs.Italic = true
			continue
		case "normal", "lighter", "100", "200", "300", "400", "500":
			continue
		}
		if size, ok := parseFontSize(lower); ok && len(family) == 0 {
			fs.Size = size
			continue
		}
		family = append(family, tok)
	}
	// 只取第一个字体族
	if f := strings.Join(family, " "); f != "" {
		f = strings.SplitN(f, ",", 2)[0]
		fs.Family = strings.Trim(strings.TrimSpace(f), `"'`)
	}
	return fs
}

func parseFontSize(tok string) (float64, bool) {
	// "30px/1.2" 形式去掉行高
	tok = strings.SplitN(tok, "/", 2)[0]
	pt := false
	switch {
	case strings.HasSuffix(tok, "px"):
		tok = strings.TrimSuffix(tok, "px")
	case strings.HasSuffix(tok, "pt"):
		tok = strings.TrimSuffix(tok, "pt")
		pt = true
	default:
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	if pt {
		// 1pt = 4/3 px
		v = v * 4 / 3
	}
	return v, true
}

var (
	fontsOnce sync.Once
	fonts     map[string]*truetype.Font
)

func loadFonts() {
	fonts = make(map[string]*truetype.Font)
	for name, ttf := range map[string][]byte{
		"sans":             goregular.TTF,
		"sans-bold":        gobold.TTF,
		"sans-italic":      goitalic.TTF,
		"sans-bold-italic": gobolditalic.TTF,
		"mono":             gomono.TTF,
		"mono-bold":        gomonobold.TTF,
	} {
		f, err := truetype.Parse(ttf)
		if err != nil {
			// embedded fonts are known good
			panic(err)
		}
		fonts[name] = f
	}
}

// Face returns a new font.Face for the spec. Faces are not safe for
// concurrent use, so every render pass gets its own.
func (fs FontSpec) Face() font.Face {
	fontsOnce.Do(loadFonts)
	name := "sans"
	switch strings.ToLower(fs.Family) {
	case "monospace", "courier", "courier new", "consolas", "menlo":
		name = "mono"
	}
	switch {
	case fs.Bold && fs.Italic && name == "sans":
		name += "-bold-italic"
	case fs.Bold:
		name += "-bold"
	case fs.Italic && name == "sans":
		name += "-italic"
	}
	return truetype.NewFace(fonts[name], &truetype.Options{Size: fs.Size})
}

// RenderCaptcha paints one full pass: background, one randomly colored
// glyph per rune of captcha, then style.NoiseLines black strokes.
func RenderCaptcha(dc Surface, captcha string, style Style, rnd Rand) {
	if rnd == nil {
		rnd = defaultRand
	}
	style = style.withDefaults()

	// 背景
	dc.SetHexColor(style.BackgroundColor)
	dc.Clear()

	dc.SetFontFace(ParseFont(style.Font).Face())
	glyphs := []rune(captcha)
	step := GlyphSpacing(len(glyphs))
	for i, r := range glyphs {
		dc.SetHexColor(randomColor(rnd))
		dc.DrawString(string(r), glyphLeft+float64(i)*step, glyphBaseline)
	}

	// 干扰线
	dc.SetHexColor(noiseColor)
	dc.SetLineWidth(1)
	for i := 0; i < style.NoiseLines; i++ {
		dc.DrawLine(
			rnd.Float64()*SurfaceWidth, rnd.Float64()*SurfaceHeight,
			rnd.Float64()*SurfaceWidth, rnd.Float64()*SurfaceHeight,
		)
		dc.Stroke()
	}
}

// RenderPNG draws captcha on a fresh 200x50 surface and encodes it as PNG.
func RenderPNG(captcha string, style Style, rnd Rand) ([]byte, error) {
	dc := gg.NewContext(SurfaceWidth, SurfaceHeight)
	RenderCaptcha(dc, captcha, style, rnd)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
