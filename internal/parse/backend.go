// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pdiddy/geo-enrich/internal/container"
	"github.com/pdiddy/geo-enrich/pkg/types"
)

// Backend turns a PDF file into a linearized text stream with page breaks
// preserved as "<!-- page N -->" markers. Different tools (markitdown,
// GROBID, pdftotext) implement this interface.
type Backend interface {
	Extract(pdfPath string) (string, error)
}

// NewBackend constructs the Backend named by cfg, backed by rt.
func NewBackend(cfg types.ParseBackend, rt container.Runtime) (Backend, error) {
	switch cfg {
	case types.ParseBackendMarkitdown:
		return newMarkitdownBackend(rt)
	case types.ParseBackendGROBID:
		return newGrobidBackend(rt)
	case types.ParseBackendPdftotext:
		return newPdftotextBackend(rt)
	default:
		return nil, fmt.Errorf("unknown parse backend %q", cfg)
	}
}

// unavailableBackend reports a stable error instead of panicking on a nil
// Backend, used when no container runtime was detected at startup.
type unavailableBackend struct{ reason string }

// NewUnavailableBackend builds a Backend that always fails with reason,
// so P4 surfaces a parse_error stage failure rather than a nil dereference.
func NewUnavailableBackend(reason string) Backend {
	return &unavailableBackend{reason: reason}
}

func (u *unavailableBackend) Extract(pdfPath string) (string, error) {
	return "", fmt.Errorf("no PDF extraction backend available: %s", u.reason)
}

const (
	imageMarkitdown = "markitdown:latest"
	imageGrobid     = "grobid:latest"
	imagePdftotext  = "pdftotext:latest"
)

// markitdownBackend extracts text by piping a PDF through the markitdown
// container image.
type markitdownBackend struct {
	runtime container.Runtime
}

func newMarkitdownBackend(rt container.Runtime) (*markitdownBackend, error) {
	if err := rt.ImageExists(imageMarkitdown); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &markitdownBackend{runtime: rt}, nil
}

func (m *markitdownBackend) Extract(pdfPath string) (string, error) {
	return runContainer(m.runtime, imageMarkitdown, pdfPath)
}

// grobidBackend extracts text via a GROBID container image.
type grobidBackend struct {
	runtime container.Runtime
}

func newGrobidBackend(rt container.Runtime) (*grobidBackend, error) {
	if err := rt.ImageExists(imageGrobid); err != nil {
		return nil, fmt.Errorf("grobid image not available in %s: %w", rt.Name(), err)
	}
	return &grobidBackend{runtime: rt}, nil
}

func (g *grobidBackend) Extract(pdfPath string) (string, error) {
	return runContainer(g.runtime, imageGrobid, pdfPath)
}

// pdftotextBackend extracts text via a pdftotext container image. NewBackend
// builds it only when the configured backend is pdftotext.
type pdftotextBackend struct {
	runtime container.Runtime
}

func newPdftotextBackend(rt container.Runtime) (*pdftotextBackend, error) {
	if err := rt.ImageExists(imagePdftotext); err != nil {
		return nil, fmt.Errorf("pdftotext image not available in %s: %w", rt.Name(), err)
	}
	return &pdftotextBackend{runtime: rt}, nil
}

func (p *pdftotextBackend) Extract(pdfPath string) (string, error) {
	return runContainer(p.runtime, imagePdftotext, pdfPath)
}

func runContainer(rt container.Runtime, image, pdfPath string) (string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := rt.Run(image, f, &out); err != nil {
		return "", fmt.Errorf("extracting %s with %s: %w", pdfPath, image, err)
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("%s produced empty output for %s", image, pdfPath)
	}
	return out.String(), nil
}
