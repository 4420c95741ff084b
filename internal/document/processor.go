package document

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

var (
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrFileTooLarge         = errors.New("file too large")
	ErrEmptyDocument        = errors.New("document has no extractable text")
)

// ValidateUpload checks an upload against the configured constraints
// before any bytes are processed.
func ValidateUpload(filename string, size, maxBytes int64, allowedExtensions []string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed := false
	for _, e := range allowedExtensions {
		if ext == strings.ToLower(e) {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %q (allowed: %s)", ErrUnsupportedExtension, ext, strings.Join(allowedExtensions, ", "))
	}
	if size <= 0 {
		return ErrEmptyDocument
	}
	if maxBytes > 0 && size > maxBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, size, maxBytes)
	}
	return nil
}

var (
	controlRe    = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
	spaceRunRe   = regexp.MustCompile("[ \t]+")
	blankLinesRe = regexp.MustCompile(`\n[ ]*\n(?:[ ]*\n)+`)
)

// CleanText normalizes line endings, strips control characters and
// collapses runs of spaces and blank lines.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = controlRe.ReplaceAllString(text, "")
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Processor turns an uploaded file into cleaned, overlapping text
// chunks ready for embedding.
type Processor struct {
	chunkSize    int
	chunkOverlap int
}

func NewProcessor(chunkSize, chunkOverlap int) *Processor {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = defaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}
	return &Processor{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Process runs the full pipeline: extract, clean, split.
func (p *Processor) Process(filename string, data []byte) ([]string, error) {
	text, err := ExtractText(filename, data)
	if err != nil {
		return nil, err
	}
	cleaned := CleanText(text)
	if cleaned == "" {
		return nil, ErrEmptyDocument
	}
	return p.Split(cleaned), nil
}

// Separators tried when snapping a chunk boundary, most preferred
// first: paragraph break, line break, sentence end, word boundary.
var splitSeparators = []string{"\n\n", "\n", ". ", " "}

// Split cuts text into chunks of at most chunkSize runes, with
// chunkOverlap runes carried over between consecutive chunks so that a
// sentence straddling a boundary stays retrievable. Each cut snaps back
// to the most natural separator found in the second half of the window.
func (p *Processor) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + p.chunkSize
		if end >= len(runes) {
			if chunk := strings.TrimSpace(string(runes[start:])); chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		cut := end
		if b := boundaryBefore(runes, start, end); b > start {
			cut = b
		}
		if chunk := strings.TrimSpace(string(runes[start:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - p.chunkOverlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// boundaryBefore returns the rune index to cut at, or -1 when no
// separator falls in the second half of the window.
func boundaryBefore(runes []rune, start, end int) int {
	window := string(runes[start:end])
	minOffset := (end - start) / 2
	for _, sep := range splitSeparators {
		byteIdx := strings.LastIndex(window, sep)
		if byteIdx < 0 {
			continue
		}
		runeOffset := utf8.RuneCountInString(window[:byteIdx])
		if runeOffset < minOffset {
			continue
		}
		if sep == ". " {
			// Keep the period with its sentence.
			return start + runeOffset + 1
		}
		return start + runeOffset
	}
	return -1
}
