package pdfcheck

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// minimalPDF builds an uncompressed PDF with n empty A4 pages and a correct xref table.
func minimalPDF(n int) []byte {
	var objects []string
	kids := make([]string, n)
	for i := range n {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
	)
	for range n {
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] >>")
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n", len(objects)+1, xref)
	b.WriteString("%%EOF\n")
	return []byte(b.String())
}

func TestPageCount(t *testing.T) {
	got, err := PageCount(minimalPDF(3))
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if got != 3 {
		t.Fatalf("PageCount = %d, want 3", got)
	}
}

func TestVerify(t *testing.T) {
	if _, err := Verify(minimalPDF(2), 2); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	got, err := Verify(minimalPDF(2), 3)
	if !errors.Is(err, ErrPageMismatch) {
		t.Fatalf("err = %v, want ErrPageMismatch", err)
	}
	if got != 2 {
		t.Fatalf("got = %d, want 2", got)
	}
}

func TestPageCount_Invalid(t *testing.T) {
	if _, err := PageCount(nil); !errors.Is(err, ErrEmptyPDF) {
		t.Fatalf("err = %v, want ErrEmptyPDF", err)
	}
	if _, err := PageCount([]byte("definitely not a pdf")); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestMinimalPDF_EndsWithEOFMarker(t *testing.T) {
	if data := minimalPDF(1); !strings.HasSuffix(string(data), "\n%%EOF\n") {
		t.Fatalf("fixture trailer = %q", data[len(data)-16:])
	}
}
