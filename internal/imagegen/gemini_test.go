package imagegen

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/lumina/internal/models"
)

func TestBuildGeminiParts(t *testing.T) {
	parts, err := buildGeminiParts(Request{Prompt: "a red fox"})
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, genai.Text("a red fox\n\nAspect ratio: 1:1"), parts[0])

	parts, err = buildGeminiParts(Request{
		Prompt:      "make it blue",
		AspectRatio: models.AspectWide,
		BaseImage:   "data:image/png;base64,aGVsbG8=",
	})
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, genai.Blob{MIMEType: "image/png", Data: []byte("hello")}, parts[0])
	assert.Equal(t, genai.Text("make it blue\n\nAspect ratio: 16:9"), parts[1])

	_, err = buildGeminiParts(Request{Prompt: "x", BaseImage: "data:broken"})
	assert.ErrorIs(t, err, ErrInvalidBaseImage)
}

func TestImageFromResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("here you go")}}},
			{Content: &genai.Content{Parts: []genai.Part{
				genai.Text("and an image"),
				genai.Blob{MIMEType: "image/png", Data: []byte{0x89, 0x50}},
			}}},
		},
	}
	img, err := imageFromResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, []byte{0x89, 0x50}, img.Data)

	_, err = imageFromResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Text("sorry")}}}},
	})
	assert.ErrorIs(t, err, ErrNoImageReturned)

	_, err = imageFromResponse(nil)
	assert.ErrorIs(t, err, ErrNoImageReturned)
}
