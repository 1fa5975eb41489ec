package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)

	c, err := NewClient("key")
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestFirstText(t *testing.T) {
	require.Equal(t, "", firstText(nil))
	require.Equal(t, "", firstText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []genai.Part{
				genai.Blob{MIMEType: "image/png"},
				genai.Text(`{"foods":[]}`),
			}}},
		},
	}
	require.Equal(t, `{"foods":[]}`, firstText(resp))
}
