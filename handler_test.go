package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, cfg Config) (*server, http.Handler) {
	t.Helper()
	s := newServer(cfg, NewGenerator(seeded()))
	s.rnd = seeded()
	return s, s.routes()
}

func doStart(t *testing.T, h http.Handler, query string) StartResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/captcha/start"+query, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: wanted 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp StartResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	return resp
}

func TestHandleStart(t *testing.T) {
	s, h := newTestServer(t, DefaultConfig())
	resp := doStart(t, h, "")

	if resp.UUID == "" {
		t.Fatal("wanted a widget uuid")
	}
	if !strings.HasPrefix(resp.Image, "data:image/png;base64,") {
		t.Errorf("wanted a PNG data URI, got %.40q", resp.Image)
	}
	if !strings.Contains(string(resp.HTML), `aria-label="Reload Captcha"`) {
		t.Errorf("widget markup is missing the reload control: %s", resp.HTML)
	}

	w, ok := s.widgets.Get(resp.UUID)
	if !ok {
		t.Fatal("widget was not registered")
	}
	if got := len(w.Captcha()); got != DefaultLength {
		t.Errorf("wanted a %d character challenge, got %d", DefaultLength, got)
	}
	if got := w.Renders(); got != 1 {
		t.Errorf("wanted one render pass, got %d", got)
	}
}

func TestHandleReload(t *testing.T) {
	s, h := newTestServer(t, DefaultConfig())
	start := doStart(t, h, "")
	w, _ := s.widgets.Get(start.UUID)
	before := w.Captcha()

	req := httptest.NewRequest(http.MethodPost, reloadURL(start.UUID), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("reload: wanted 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ReloadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.UUID != start.UUID {
		t.Errorf("wanted uuid %s, got %s", start.UUID, resp.UUID)
	}
	if resp.Image == start.Image {
		t.Error("reload returned the old frame")
	}
	if w.Captcha() == before {
		t.Error("reload did not replace the challenge")
	}
	if got := w.Renders(); got != 2 {
		t.Errorf("wanted exactly one redraw after reload, got %d renders", got)
	}
}

func TestUnknownWidget(t *testing.T) {
	_, h := newTestServer(t, DefaultConfig())
	for _, target := range []string{reloadURL("nope"), "/api/captcha/image?uuid=nope"} {
		method := http.MethodPost
		if strings.Contains(target, "image") {
			method = http.MethodGet
		}
		req := httptest.NewRequest(method, target, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: wanted 404, got %d", method, target, rec.Code)
		}
	}
}

func TestHandleReloadRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReloadRatePerMinute = 1
	_, h := newTestServer(t, cfg)
	start := doStart(t, h, "")

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, reloadURL(start.UUID), nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("wanted [200 429], got %v", codes)
	}
}

func TestHandleImage(t *testing.T) {
	_, h := newTestServer(t, DefaultConfig())
	start := doStart(t, h, "")

	req := httptest.NewRequest(http.MethodGet, "/api/captcha/image?uuid="+url.QueryEscape(start.UUID), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("wanted 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("wanted image/png, got %q", ct)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 50 {
		t.Errorf("wanted 200x50, got %v", b)
	}
}

func TestStyleFromQuery(t *testing.T) {
	s, _ := newTestServer(t, DefaultConfig())
	for _, tt := range []struct {
		name  string
		query string
		check func(t *testing.T, st Style)
	}{
		{"defaults", "", func(t *testing.T, st Style) {
			if st != DefaultStyle() {
				t.Errorf("wanted default style, got %+v", st)
			}
		}},
		{"noise-zero", "noise=0", func(t *testing.T, st Style) {
			if st.NoiseLines != 0 {
				t.Errorf("wanted 0 noise lines, got %d", st.NoiseLines)
			}
		}},
		{"noise-garbage", "noise=lots", func(t *testing.T, st Style) {
			if st.NoiseLines != 6 {
				t.Errorf("wanted default noise lines, got %d", st.NoiseLines)
			}
		}},
		{"colors", "bg=%23ffffff&button_color=%23333", func(t *testing.T, st Style) {
			if st.BackgroundColor != "#ffffff" || st.ButtonColor != "#333" {
				t.Errorf("colors not applied: %+v", st)
			}
		}},
		{"css-injection", "button_color=red%3B%7Dbody%7Bdisplay%3Anone", func(t *testing.T, st Style) {
			if st.ButtonColor != "#111" {
				t.Errorf("unsafe value accepted: %q", st.ButtonColor)
			}
		}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, s.styleFromQuery(q))
		})
	}
}

func TestHandleIndex(t *testing.T) {
	_, h := newTestServer(t, DefaultConfig())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("wanted 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`aria-label="Reload Captcha"`, `data-reload=`, `pointer-events: none`} {
		if !strings.Contains(body, want) {
			t.Errorf("index page is missing %q", want)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t, DefaultConfig())
	doStart(t, h, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("wanted 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "captcha_renders_total") {
		t.Error("metrics output is missing captcha_renders_total")
	}
}
