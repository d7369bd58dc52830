package render

import (
	"strings"
	"testing"
)

func TestInjectedCSS_PinsWidth(t *testing.T) {
	for name, css := range map[string]string{
		"single":    singlePageCSS(794),
		"capture":   captureCSS(794),
		"paginated": paginatedCSS(794, 1123),
	} {
		if !strings.Contains(css, "width: 794px !important;") || !strings.Contains(css, "max-width: 794px !important;") {
			t.Errorf("%s css does not pin width:\n%s", name, css)
		}
	}
	if !strings.Contains(paginatedCSS(794, 1123), "size: 794px 1123px;") {
		t.Error("paginated css missing page size")
	}
	if !strings.Contains(singlePageCSS(794), "break-inside: avoid !important;") {
		t.Error("single page css must suppress breaks")
	}
}
