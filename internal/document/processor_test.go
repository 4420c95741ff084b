package document

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAllowedExtensions = []string{".txt", ".csv", ".html"}

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		size     int64
		maxBytes int64
		wantErr  error
	}{
		{name: "txt allowed", filename: "notes.txt", size: 100, maxBytes: 1 << 20},
		{name: "csv allowed", filename: "clients.csv", size: 100, maxBytes: 1 << 20},
		{name: "uppercase extension allowed", filename: "REPORT.TXT", size: 100, maxBytes: 1 << 20},
		{name: "pdf rejected", filename: "contract.pdf", size: 100, maxBytes: 1 << 20, wantErr: ErrUnsupportedExtension},
		{name: "docx rejected", filename: "memo.docx", size: 100, maxBytes: 1 << 20, wantErr: ErrUnsupportedExtension},
		{name: "no extension rejected", filename: "README", size: 100, maxBytes: 1 << 20, wantErr: ErrUnsupportedExtension},
		{name: "too large", filename: "big.txt", size: 2 << 20, maxBytes: 1 << 20, wantErr: ErrFileTooLarge},
		{name: "empty file", filename: "empty.txt", size: 0, maxBytes: 1 << 20, wantErr: ErrEmptyDocument},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateUpload(tc.filename, tc.size, tc.maxBytes, testAllowedExtensions)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "crlf normalized", in: "a\r\nb\rc", want: "a\nb\nc"},
		{name: "control chars stripped", in: "a\x00b\x07c", want: "abc"},
		{name: "space runs collapsed", in: "a   b\t\tc", want: "a b c"},
		{name: "blank lines collapsed", in: "a\n\n\n\nb", want: "a\n\nb"},
		{name: "trimmed", in: "  hello  \n", want: "hello"},
		{name: "tabs inside kept as single space", in: "col1\tcol2", want: "col1 col2"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanText(tc.in))
		})
	}
}

func TestSplitShortText(t *testing.T) {
	p := NewProcessor(1000, 200)
	chunks := p.Split("just a short paragraph")
	require.Len(t, chunks, 1)
	assert.Equal(t, "just a short paragraph", chunks[0])
}

func TestSplitRespectsChunkSize(t *testing.T) {
	p := NewProcessor(100, 20)

	var sb strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "This is sentence number %d in the agreement. ", i)
	}
	text := strings.TrimSpace(sb.String())

	chunks := p.Split(text)
	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 100, "chunk %d too long", i)
		assert.NotEmpty(t, chunk)
		assert.Contains(t, text, chunk, "chunk %d must be a substring of the input", i)
	}
	// Nothing at the tail may be lost.
	assert.Contains(t, chunks[len(chunks)-1], "sentence number 39")
}

func TestSplitOverlapCarriesContext(t *testing.T) {
	p := NewProcessor(100, 30)

	var sb strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "Clause %d applies to the tenant. ", i)
	}
	chunks := p.Split(strings.TrimSpace(sb.String()))
	require.Greater(t, len(chunks), 1)

	// Consecutive chunks share text: the head of each chunk after the
	// first must also appear in its predecessor.
	for i := 1; i < len(chunks); i++ {
		head := chunks[i]
		if utf8.RuneCountInString(head) > 15 {
			head = string([]rune(head)[:15])
		}
		assert.Contains(t, chunks[i-1], head, "chunk %d does not overlap its predecessor", i)
	}
}

func TestSplitSnapsToSentenceBoundary(t *testing.T) {
	p := NewProcessor(60, 10)
	text := "The first sentence sets the scene nicely here. The second sentence continues the story onward. The third wraps it up."

	chunks := p.Split(text)
	require.Greater(t, len(chunks), 1)
	// First cut lands on a sentence end, not mid-word.
	assert.True(t, strings.HasSuffix(chunks[0], "."), "chunk %q should end at a sentence boundary", chunks[0])
}

func TestSplitHandlesUnicode(t *testing.T) {
	p := NewProcessor(50, 10)
	text := strings.Repeat("条款规定双方必须遵守本协议的全部内容。", 20)

	chunks := p.Split(text)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 50)
		assert.True(t, utf8.ValidString(chunk))
	}
}

func TestProcessorClampsBadOverlap(t *testing.T) {
	p := NewProcessor(100, 100)
	assert.Equal(t, 50, p.chunkOverlap)

	p = NewProcessor(0, -1)
	assert.Equal(t, defaultChunkSize, p.chunkSize)
	assert.Equal(t, defaultChunkOverlap, p.chunkOverlap)
}

func TestProcess(t *testing.T) {
	p := NewProcessor(1000, 200)

	chunks, err := p.Process("notes.txt", []byte("The retainer agreement was signed in March.\r\n\r\nIt covers litigation services."))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "The retainer agreement was signed in March.\n\nIt covers litigation services.", chunks[0])
}

func TestProcessEmptyDocument(t *testing.T) {
	p := NewProcessor(1000, 200)

	_, err := p.Process("blank.txt", []byte("   \n\t \n"))
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestProcessUnsupported(t *testing.T) {
	p := NewProcessor(1000, 200)

	_, err := p.Process("scan.pdf", []byte("%PDF-1.4"))
	assert.ErrorIs(t, err, ErrUnsupportedExtension)
}
