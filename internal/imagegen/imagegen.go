// Package imagegen wraps the external image models behind a single Generator
// contract: a prompt, an aspect ratio and an optional source image in, one
// encoded image out.
package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/digkill/lumina/internal/models"
)

var (
	ErrNoImageReturned  = errors.New("no image data found in model response")
	ErrInvalidBaseImage = errors.New("invalid base image")
)

type Request struct {
	Prompt      string
	AspectRatio models.AspectRatio
	// BaseImage is raw base64 or a data: URI.
	BaseImage string
}

type Image struct {
	MIMEType string
	Data     []byte
}

// DataURI renders the image as an inline data: URI.
func (i *Image) DataURI() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

type Generator interface {
	Generate(ctx context.Context, req Request) (*Image, error)
}

// DecodeBaseImage accepts raw base64 or a data: URI. A data: URI keeps its MIME
// type; raw base64 is assumed to be PNG.
func DecodeBaseImage(raw string) (*Image, error) {
	raw = strings.TrimSpace(raw)
	mime := "image/png"
	if rest, ok := strings.CutPrefix(raw, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, fmt.Errorf("%w: malformed data uri", ErrInvalidBaseImage)
		}
		if m, _, _ := strings.Cut(header, ";"); m != "" {
			mime = m
		}
		raw = payload
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseImage, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidBaseImage)
	}
	return &Image{MIMEType: mime, Data: data}, nil
}

func normalizeAspect(a models.AspectRatio) models.AspectRatio {
	if a == "" {
		return models.AspectSquare
	}
	return a
}
