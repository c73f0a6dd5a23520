package binary

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifyFormat_PNGSignature(t *testing.T) {
	name, confidence := identifyFormat([]byte("\x89PNGrest-of-file"))
	assert.Equal(t, "png_image", name)
	assert.Equal(t, 1.0, confidence)
}

func TestIdentifyFormat_UnknownData(t *testing.T) {
	name, confidence := identifyFormat([]byte("not a known binary format"))
	assert.Equal(t, "unknown", name)
	assert.Zero(t, confidence)
}

func TestShannonEntropy_RepeatedByteIsZero(t *testing.T) {
	data := bytes.Repeat([]byte{0x41}, 1024)
	assert.InDelta(t, 0.0, shannonEntropy(data), 1e-9)
}

func TestShannonEntropy_EmptyIsZero(t *testing.T) {
	assert.Zero(t, shannonEntropy(nil))
}

func TestAsciiStrings_ExtractsPrintableRuns(t *testing.T) {
	data := append([]byte{0x00, 0x01}, []byte("hello world")...)
	data = append(data, 0x00)
	strs := asciiStrings(data, 4)
	require.Len(t, strs, 1)
	assert.Equal(t, "hello world", strs[0])
}

func TestAsciiStrings_DropsShortRuns(t *testing.T) {
	data := []byte{0x00, 'a', 'b', 0x00}
	assert.Empty(t, asciiStrings(data, 4))
}

func TestAnalyzeFile_UnknownFormatFlagged(t *testing.T) {
	a := New()
	issues, err := a.AnalyzeFile(context.Background(), "data.bin", []byte("totally unrecognized content"), nil, nil)
	require.NoError(t, err)
	found := false
	for _, iss := range issues {
		if iss.IssueType == "format_recognition" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAnalyzeFile_RecognizedFormatNotFlagged(t *testing.T) {
	a := New()
	content := append([]byte("\x89PNG"), bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 256)...)
	issues, err := a.AnalyzeFile(context.Background(), "icon.png", content, nil, nil)
	require.NoError(t, err)
	for _, iss := range issues {
		assert.NotEqual(t, "format_recognition", iss.IssueType)
	}
}
