package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextPlain(t *testing.T) {
	text, err := ExtractText("memo.txt", []byte("Billing rates increase on January 1."))
	require.NoError(t, err)
	assert.Equal(t, "Billing rates increase on January 1.", text)
}

func TestExtractTextUnsupported(t *testing.T) {
	_, err := ExtractText("contract.pdf", []byte("%PDF-1.4"))
	assert.ErrorIs(t, err, ErrUnsupportedExtension)
}

func TestExtractTextCSV(t *testing.T) {
	data := []byte("client,matter,status\nAcme Corp,merger review,open\nBeta LLC,lease dispute,closed\n")

	text, err := ExtractText("matters.csv", data)
	require.NoError(t, err)

	assert.Contains(t, text, "Headers: client | matter | status")
	assert.Contains(t, text, "Row 1: client: Acme Corp | matter: merger review | status: open")
	assert.Contains(t, text, "Row 2: client: Beta LLC | matter: lease dispute | status: closed")
}

func TestExtractTextCSVRaggedRows(t *testing.T) {
	data := []byte("a,b\n1,2,3\n4\n")

	text, err := ExtractText("ragged.csv", data)
	require.NoError(t, err)
	assert.Contains(t, text, "Headers: a | b")
	assert.Contains(t, text, "Row 1: a: 1 | b: 2 | 3")
	assert.Contains(t, text, "Row 2: a: 4")
}

func TestExtractTextHTML(t *testing.T) {
	data := []byte(`<!DOCTYPE html>
<html>
<head>
  <title>Engagement Letter</title>
  <style>body { color: red; }</style>
  <script>alert("hi");</script>
</head>
<body>
  <h1>Engagement Letter</h1>
  <p>This letter confirms the scope of representation.</p>
</body>
</html>`)

	text, err := ExtractText("letter.html", data)
	require.NoError(t, err)

	assert.Contains(t, text, "Engagement Letter")
	assert.Contains(t, text, "confirms the scope of representation")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color: red")
}

func TestExtractTextCaseInsensitiveExtension(t *testing.T) {
	text, err := ExtractText("NOTES.TXT", []byte("uppercase name"))
	require.NoError(t, err)
	assert.Equal(t, "uppercase name", text)
}
