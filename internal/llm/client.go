// Package llm talks to the AI vision services that read scanned survey
// pages. Each provider implements VisionClient; FieldExtractor turns a
// provider's free-text reply into an ordered field map.
package llm

import (
	"context"
	"encoding/base64"
)

// Image is one page image sent to a provider
type Image struct {
	Page      int // zero-based page index, for logging and test doubles
	Data      []byte
	MediaType string // "image/png" or "image/jpeg"
}

// Base64 returns the image data base64 encoded
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the image as a data URL
func (i Image) DataURL() string {
	return "data:" + i.MediaType + ";base64," + i.Base64()
}

// VisionClient sends one image and a prompt to a model and returns the
// model's text reply
type VisionClient interface {
	Complete(ctx context.Context, prompt string, img Image) (string, error)
}
