// File: handler.go
package main

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// styleValue limits query supplied style values to plain CSS tokens.
var styleValue = regexp.MustCompile(`^[#a-zA-Z0-9 .,%-]{1,64}$`)

type server struct {
	cfg     Config
	gen     *Generator
	widgets *Registry
	limiter *rateLimiter
	rnd     Rand // glyph and noise source for new widgets, nil uses the process-wide one
}

func newServer(cfg Config, gen *Generator) *server {
	return &server{
		cfg:     cfg,
		gen:     gen,
		widgets: NewRegistry(cfg.WidgetTTL),
		limiter: newRateLimiter(cfg.ReloadRatePerMinute),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /api/captcha/start", s.handleStart)
	mux.HandleFunc("POST /api/captcha/reload", s.limiter.middleware(s.handleReload))
	mux.HandleFunc("GET /api/captcha/image", s.handleImage)
	mux.Handle("GET /metrics", promhttp.Handler())
	return accessLog(mux)
}

// styleFromQuery 从查询参数读取样式, 非法值忽略
func (s *server) styleFromQuery(q url.Values) Style {
	st := DefaultStyle()
	st.NoiseLines = s.cfg.NoiseLines
	set := func(key string, dst *string) {
		if v := q.Get(key); v != "" && styleValue.MatchString(v) {
			*dst = v
		}
	}
	set("bg", &st.BackgroundColor)
	set("font", &st.Font)
	set("button_color", &st.ButtonColor)
	set("button_txt_color", &st.ButtonTxtColor)
	set("button_width", &st.ButtonWidth)
	set("input_height", &st.InputHeight)
	if v := q.Get("noise"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 100 {
			st.NoiseLines = n
		}
	}
	return st
}

// newWidget creates and registers a widget whose reload control draws a
// fresh challenge from the generator.
func (s *server) newWidget(style Style) (*Widget, error) {
	captcha, err := s.gen.Generate(s.cfg.CaptchaLength, s.cfg.CaptchaAlphabet)
	if err != nil {
		return nil, err
	}
	challengesGenerated.Inc()

	var w *Widget
	opts := []Option{WithStyle(style)}
	if s.rnd != nil {
		opts = append(opts, WithRand(s.rnd))
	}
	w, err = NewWidget(captcha, func() {
		next, err := s.gen.Generate(s.cfg.CaptchaLength, s.cfg.CaptchaAlphabet)
		if err != nil {
			Sugar.Errorf("regenerate challenge for %s: %v", w.ID(), err)
			return
		}
		challengesGenerated.Inc()
		w.SetCaptcha(next)
	}, opts...)
	if err != nil {
		return nil, err
	}
	s.widgets.Add(w)
	return w, nil
}

func reloadURL(id string) string {
	return "/api/captcha/reload?uuid=" + url.QueryEscape(id)
}

func (s *server) handleStart(w http.ResponseWriter, r *http.Request) {
	wg, err := s.newWidget(s.styleFromQuery(r.URL.Query()))
	if err != nil {
		http.Error(w, "failed to create captcha: "+err.Error(), http.StatusInternalServerError)
		return
	}
	img, err := wg.DataURI()
	if err != nil {
		http.Error(w, "failed to draw captcha: "+err.Error(), http.StatusInternalServerError)
		return
	}
	markup, err := wg.HTML(reloadURL(wg.ID()))
	if err != nil {
		http.Error(w, "failed to render widget: "+err.Error(), http.StatusInternalServerError)
		return
	}
	Logger.Debug("captcha started", zap.String("uuid", wg.ID()))

	writeJSON(w, StartResponse{UUID: wg.ID(), Image: img, HTML: markup})
}

func (s *server) handleReload(w http.ResponseWriter, r *http.Request) {
	wg, ok := s.widgets.Get(r.URL.Query().Get("uuid"))
	if !ok {
		http.Error(w, "uuid not found", http.StatusNotFound)
		return
	}
	wg.Reload()

	img, err := wg.DataURI()
	if err != nil {
		http.Error(w, "failed to draw captcha: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, ReloadResponse{UUID: wg.ID(), Image: img})
}

func (s *server) handleImage(w http.ResponseWriter, r *http.Request) {
	wg, ok := s.widgets.Get(r.URL.Query().Get("uuid"))
	if !ok {
		http.Error(w, "uuid not found", http.StatusNotFound)
		return
	}
	img, err := wg.Frame()
	if err != nil {
		http.Error(w, "failed to draw captcha: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(img)
}

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Captcha</title></head>
<body>
<div style="width: 240px">{{.}}</div>
<script>
document.addEventListener("click", function (ev) {
  var btn = ev.target.closest("button[data-reload]");
  if (!btn) return;
  fetch(btn.dataset.reload, {method: "POST"})
    .then(function (r) { return r.json(); })
    .then(function (d) { btn.parentNode.querySelector("img").src = d.image; });
});
</script>
</body>
</html>
`))

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	wg, err := s.newWidget(s.styleFromQuery(r.URL.Query()))
	if err != nil {
		http.Error(w, "failed to create captcha: "+err.Error(), http.StatusInternalServerError)
		return
	}
	markup, err := wg.HTML(reloadURL(wg.ID()))
	if err != nil {
		http.Error(w, "failed to render widget: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, markup); err != nil {
		Sugar.Errorf("render index: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Sugar.Errorf("encode response: %v", err)
	}
}
