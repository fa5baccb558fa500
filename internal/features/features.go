// Package features turns a raw complaint into the normalized feature bundle
// consumed by the classifier and the deduplicator. Extraction never fails:
// malformed media and OCR errors degrade to text-only features.
package features

import (
	"context"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/railtriage/internal/complaint"
)

// UnknownLocation is the sentinel token for complaints without a usable
// reporter location. It disables location-scoped dedup for that complaint.
const UnknownLocation = "unknown"

// OCR is the single capability the extractor needs from the OCR collaborator.
type OCR interface {
	ExtractText(ctx context.Context, imageBytes []byte) (string, error)
}

// Bundle is the normalized feature set derived from one complaint. It is
// owned by the pipeline run that produced it and discarded afterwards.
type Bundle struct {
	NormalizedText string
	OCRText        string
	HasMedia       bool
	LocationToken  string
	Degraded       bool
	Vector         Vector
}

// CombinedText returns the classifier input: free text plus any OCR text.
func (b *Bundle) CombinedText() string {
	if b.OCRText == "" {
		return b.NormalizedText
	}
	return strings.TrimSpace(b.NormalizedText + " " + b.OCRText)
}

// Extractor builds feature bundles. The OCR collaborator is optional;
// without one, image complaints are processed text-only.
type Extractor struct {
	ocr        OCR
	ocrTimeout time.Duration
	logger     log.Logger
}

// NewExtractor creates an Extractor. A nil logger is replaced with a no-op.
func NewExtractor(ocr OCR, ocrTimeout time.Duration, logger log.Logger) *Extractor {
	if logger == nil {
		logger = log.Nop()
	}
	if ocrTimeout <= 0 {
		ocrTimeout = 600 * time.Millisecond
	}
	return &Extractor{ocr: ocr, ocrTimeout: ocrTimeout, logger: logger}
}

// Extract derives the feature bundle for a complaint. It is a pure function
// of its input plus the OCR collaborator, and never returns an error: OCR
// failures set the degraded flag and leave OCRText empty.
func (e *Extractor) Extract(ctx context.Context, in *complaint.Input) *Bundle {
	b := &Bundle{
		NormalizedText: NormalizeText(in.Text),
		HasMedia:       in.HasMedia(),
		LocationToken:  NormalizeLocation(in.ReporterLocation),
	}

	if len(in.ImageBytes) > 0 && e.ocr != nil {
		octx, cancel := context.WithTimeout(ctx, e.ocrTimeout)
		text, err := e.ocr.ExtractText(octx, in.ImageBytes)
		cancel()
		if err != nil {
			// Non-fatal: classification proceeds from free text alone.
			e.logger.Warn(ctx, "ocr failed, continuing text-only", "error", err)
			b.Degraded = true
		} else {
			b.OCRText = NormalizeText(text)
		}
	}

	b.Vector = NewVector(Tokens(b.CombinedText()))
	return b
}

// canonical spellings applied before punctuation stripping so domain tokens
// like "AC" and "CCTV" survive normalization intact.
var canonical = strings.NewReplacer(
	"a/c", "ac",
	"a.c.", "ac",
	"c.c.t.v", "cctv",
	"w/c", "toilet",
)

// NormalizeText lowercases, collapses whitespace, and strips non-semantic
// punctuation from free text.
func NormalizeText(s string) string {
	s = canonical.Replace(strings.ToLower(strings.TrimSpace(s)))

	var sb strings.Builder
	sb.Grow(len(s))
	space := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			space = false
		default:
			if !space {
				sb.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

// Tokens splits normalized text into terms.
func Tokens(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

// locationAliases collapses synonyms that riders use interchangeably so the
// same spot keys the same cluster.
var locationAliases = map[string]string{
	"bogie":    "coach",
	"bogey":    "coach",
	"washroom": "toilet",
	"bathroom": "toilet",
	"lavatory": "toilet",
	"pantry":   "pantry-car",
	"platform": "platform",
}

// NormalizeLocation derives the dedup location token from the reporter
// location. An absent or empty location yields the UnknownLocation sentinel.
func NormalizeLocation(loc string) string {
	loc = strings.ToLower(strings.TrimSpace(loc))
	if loc == "" {
		return UnknownLocation
	}

	parts := strings.FieldsFunc(loc, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/' || r == ','
	})
	if len(parts) == 0 {
		return UnknownLocation
	}
	for i, p := range parts {
		if alias, ok := locationAliases[p]; ok {
			parts[i] = alias
		}
	}
	return strings.Join(parts, "-")
}
