// File: widget.go
package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Widget is the renderable captcha unit: a drawing surface plus a reload control.
// The frame is redrawn lazily, only when the challenge or a drawing
// option changed since the last pass.
type Widget struct {
	id       string
	onReload func()
	rnd      Rand

	mu      sync.Mutex
	captcha string
	style   Style
	frame   []byte
	drawn   drawKey
	fresh   bool // frame matches drawn
	renders int
}

// Option configures a Widget.
type Option func(*Widget)

// WithStyle sets the style; empty fields take their defaults.
func WithStyle(s Style) Option {
	return func(w *Widget) { w.style = s.withDefaults() }
}

// WithRand injects the random source used for glyph colors and noise.
func WithRand(r Rand) Option {
	return func(w *Widget) { w.rnd = r }
}

// NewWidget creates a widget for captcha. onReload is required.
func NewWidget(captcha string, onReload func(), opts ...Option) (*Widget, error) {
	if onReload == nil {
		return nil, fmt.Errorf("%w: onReload is required", ErrInvalidInput)
	}
	w := &Widget{
		id:       uuid.New().String(),
		onReload: onReload,
		rnd:      defaultRand,
		captcha:  captcha,
		style:    DefaultStyle(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *Widget) ID() string { return w.id }

func (w *Widget) Captcha() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.captcha
}

func (w *Widget) Style() Style {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.style
}

// SetCaptcha replaces the challenge.
func (w *Widget) SetCaptcha(captcha string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.captcha = captcha
}

// SetStyle replaces the style. Button-only changes never cause a redraw.
func (w *Widget) SetStyle(s Style) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.style = s.withDefaults()
}

// Dirty reports whether the next Frame call will redraw.
func (w *Widget) Dirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirtyLocked()
}

func (w *Widget) dirtyLocked() bool {
	return !w.fresh || w.drawn != w.style.drawKey(w.captcha)
}

// Frame returns the current PNG frame, running one render pass if needed.
func (w *Widget) Frame() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirtyLocked() {
		return w.frame, nil
	}

	start := time.Now()
	img, err := RenderPNG(w.captcha, w.style, w.rnd)
	if err != nil {
		return nil, fmt.Errorf("render captcha: %w", err)
	}
	renderDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	rendersTotal.Inc()

	w.frame = img
	w.drawn = w.style.drawKey(w.captcha)
	w.fresh = true
	w.renders++
	return w.frame, nil
}

// DataURI returns the current frame as a data:image/png URI.
func (w *Widget) DataURI() (string, error) {
	img, err := w.Frame()
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(img), nil
}

// Renders counts completed render passes.
func (w *Widget) Renders() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.renders
}

// Reload activates the reload control: onReload runs exactly once and
// nothing is drawn. The lock is not held so onReload may call SetCaptcha.
func (w *Widget) Reload() {
	reloadsTotal.Inc()
	w.onReload()
}

var widgetTmpl = template.Must(template.New("widget").Parse(
	`<div style="display: flex" class="canvasBox" id="captcha-{{.ID}}">` +
		`<img src="{{.Image}}" width="200" height="50" alt="" style="{{.SurfaceCSS}}">` +
		`<button type="button" class="btn btn-sm" aria-label="Reload Captcha" data-reload="{{.ReloadURL}}" style="{{.ButtonCSS}}">{{.ButtonContent}}</button>` +
		`</div>`))

type widgetView struct {
	ID            string
	Image         template.URL
	ReloadURL     string
	SurfaceCSS    template.CSS
	ButtonCSS     template.CSS
	ButtonContent template.HTML
}

// HTML renders the widget markup. The surface ignores pointer events so
// clicks always reach the reload button, which posts to reloadURL.
func (w *Widget) HTML(reloadURL string) (template.HTML, error) {
	uri, err := w.DataURI()
	if err != nil {
		return "", err
	}
	s := w.Style()
	view := widgetView{
		ID:        w.id,
		Image:     template.URL(uri),
		ReloadURL: reloadURL,
		SurfaceCSS: template.CSS(fmt.Sprintf(
			"pointer-events: none; height: %s; border-radius: 4px 0 0 4px; border: 1px solid var(--border-color, #ccc); width: calc(100%% - 38px)",
			s.InputHeight)),
		ButtonCSS: template.CSS(fmt.Sprintf(
			"background-color: %s; width: %s; height: %s; color: %s; margin-top: 0; float: right; z-index: 9; border-radius: 0 4px 4px 0; position: relative; font-size: 22px",
			s.ButtonColor, s.ButtonWidth, s.InputHeight, s.ButtonTxtColor)),
		ButtonContent: template.HTML(s.ButtonContent),
	}
	var buf bytes.Buffer
	if err := widgetTmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
