package document

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
)

// ExtractText converts an uploaded file to plain text according to its
// extension. The caller is expected to have validated the extension; an
// unknown one still fails here with ErrUnsupportedExtension.
func ExtractText(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return loadText(data), nil
	case ".csv":
		return loadCSV(data), nil
	case ".html":
		return loadHTML(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedExtension, ext)
	}
}

// loadText decodes the raw bytes using detected charset, falling back
// to treating them as UTF-8 when detection or decoding fails.
func loadText(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil || result.Charset == "" {
		return string(data)
	}
	enc, err := htmlindex.Get(strings.ToLower(result.Charset))
	if err != nil || enc == nil {
		return string(data)
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

// loadCSV renders a CSV file row by row with column labels so that a
// retrieved chunk keeps enough structure to be readable in a prompt.
// Malformed CSV degrades to plain-text ingestion.
func loadCSV(data []byte) string {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil || len(records) == 0 {
		return loadText(data)
	}

	headers := records[0]
	var sb strings.Builder
	sb.WriteString("Headers: ")
	sb.WriteString(strings.Join(headers, " | "))
	for i, row := range records[1:] {
		sb.WriteString("\nRow ")
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString(": ")
		for j, val := range row {
			if j > 0 {
				sb.WriteString(" | ")
			}
			if j < len(headers) && headers[j] != "" {
				sb.WriteString(headers[j])
				sb.WriteString(": ")
			}
			sb.WriteString(val)
		}
	}
	return sb.String()
}

// loadHTML strips non-content elements and returns the visible text.
func loadHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(loadText(data)))
	if err != nil {
		return "", fmt.Errorf("parse html failed: %w", err)
	}
	doc.Find("script, style, meta, link, noscript").Remove()
	return doc.Text(), nil
}
