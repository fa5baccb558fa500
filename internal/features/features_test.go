package features

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linnemanlabs/railtriage/internal/complaint"
)

// mockOCR returns a fixed result or error.
type mockOCR struct {
	text  string
	err   error
	delay time.Duration
}

func (m *mockOCR) ExtractText(ctx context.Context, _ []byte) (string, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.text, m.err
}

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase and trim", "  Seat BROKEN  ", "seat broken"},
		{"punctuation stripped", "Seat broken, smells bad!", "seat broken smells bad"},
		{"whitespace collapsed", "dirty\t\ttoilet\n near door", "dirty toilet near door"},
		{"domain token ac preserved", "The A/C is not working", "the ac is not working"},
		{"domain token cctv preserved", "C.C.T.V camera broken", "cctv camera broken"},
		{"empty", "", ""},
		{"only punctuation", "!?.,;", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeText(tt.in); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeLocation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"coach with seat", "Coach-B12", "coach-b12"},
		{"spaces to dashes", "coach B12", "coach-b12"},
		{"alias bogie", "Bogie B12", "coach-b12"},
		{"alias washroom", "washroom coach A1", "toilet-coach-a1"},
		{"empty yields sentinel", "", UnknownLocation},
		{"whitespace yields sentinel", "   ", UnknownLocation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeLocation(tt.in); got != tt.want {
				t.Errorf("NormalizeLocation(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtract_TextOnly(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil, 0, nil)
	in := &complaint.Input{
		Text:             "Seat broken, smells bad",
		SubmittedAt:      time.Now(),
		ReporterLocation: "Coach-B12",
	}

	b := e.Extract(context.Background(), in)

	if b.NormalizedText != "seat broken smells bad" {
		t.Errorf("NormalizedText = %q", b.NormalizedText)
	}
	if b.HasMedia {
		t.Error("HasMedia = true, want false")
	}
	if b.LocationToken != "coach-b12" {
		t.Errorf("LocationToken = %q, want coach-b12", b.LocationToken)
	}
	if b.Degraded {
		t.Error("Degraded = true, want false")
	}
	if b.Vector.IsZero() {
		t.Error("expected non-zero feature vector")
	}
}

func TestExtract_OCRSuccess(t *testing.T) {
	t.Parallel()

	e := NewExtractor(&mockOCR{text: "Coach B12 OUT OF ORDER"}, time.Second, nil)
	in := &complaint.Input{
		Text:        "broken charging socket",
		ImageBytes:  []byte{0xff, 0xd8},
		SubmittedAt: time.Now(),
	}

	b := e.Extract(context.Background(), in)

	if b.OCRText != "coach b12 out of order" {
		t.Errorf("OCRText = %q", b.OCRText)
	}
	if !b.HasMedia {
		t.Error("HasMedia = false, want true")
	}
	if b.Degraded {
		t.Error("Degraded = true, want false")
	}
	if got := b.CombinedText(); got != "broken charging socket coach b12 out of order" {
		t.Errorf("CombinedText = %q", got)
	}
}

func TestExtract_OCRFailureDegrades(t *testing.T) {
	t.Parallel()

	e := NewExtractor(&mockOCR{err: errors.New("boom")}, time.Second, nil)
	in := &complaint.Input{
		Text:        "dirty floor",
		ImageBytes:  []byte{0x01},
		SubmittedAt: time.Now(),
	}

	b := e.Extract(context.Background(), in)

	if !b.Degraded {
		t.Error("Degraded = false, want true after OCR failure")
	}
	if b.OCRText != "" {
		t.Errorf("OCRText = %q, want empty", b.OCRText)
	}
	if b.NormalizedText != "dirty floor" {
		t.Errorf("NormalizedText = %q", b.NormalizedText)
	}
}

func TestExtract_OCRTimeoutDegrades(t *testing.T) {
	t.Parallel()

	e := NewExtractor(&mockOCR{text: "late", delay: 200 * time.Millisecond}, 10*time.Millisecond, nil)
	in := &complaint.Input{
		Text:        "broken fan",
		ImageBytes:  []byte{0x01},
		SubmittedAt: time.Now(),
	}

	b := e.Extract(context.Background(), in)

	if !b.Degraded {
		t.Error("Degraded = false, want true after OCR timeout")
	}
	if b.OCRText != "" {
		t.Errorf("OCRText = %q, want empty", b.OCRText)
	}
}

func TestExtract_NoLocationYieldsSentinel(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil, 0, nil)
	b := e.Extract(context.Background(), &complaint.Input{Text: "hello", SubmittedAt: time.Now()})

	if b.LocationToken != UnknownLocation {
		t.Errorf("LocationToken = %q, want %q", b.LocationToken, UnknownLocation)
	}
}
