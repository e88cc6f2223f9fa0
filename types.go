// File: types.go
package main

import "html/template"

// StartResponse is returned by /api/captcha/start
type StartResponse struct {
	UUID  string        `json:"uuid"`
	Image string        `json:"image"` // Base64 PNG data URI
	HTML  template.HTML `json:"html"`
}

// ReloadResponse is returned by /api/captcha/reload
type ReloadResponse struct {
	UUID  string `json:"uuid"`
	Image string `json:"image"`
}
