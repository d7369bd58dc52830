// Package pdfcheck inspects produced PDF documents.
package pdfcheck

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	ErrEmptyPDF     = errors.New("pdf is empty")
	ErrPageMismatch = errors.New("pdf page count mismatch")
)

var disableConfigDir sync.Once

func configuration() *model.Configuration {
	disableConfigDir.Do(pdfapi.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount returns the number of pages in data.
func PageCount(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, ErrEmptyPDF
	}
	n, err := pdfapi.PageCount(bytes.NewReader(data), configuration())
	if err != nil {
		return 0, fmt.Errorf("read pdf page count: %w", err)
	}
	return n, nil
}

// Verify checks that data has exactly want pages and returns the actual count.
func Verify(data []byte, want int) (int, error) {
	got, err := PageCount(data)
	if err != nil {
		return 0, err
	}
	if got != want {
		return got, fmt.Errorf("%w: got %d, want %d", ErrPageMismatch, got, want)
	}
	return got, nil
}
