package scanning

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// Vertex implements Model with the unified Gen AI SDK, targeting Vertex AI.
// Leaving project empty lets the SDK read GOOGLE_CLOUD_PROJECT and friends.
type Vertex struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewVertex creates a Vertex AI model client
func NewVertex(ctx context.Context, project, location, modelName string, timeout time.Duration) (*Vertex, error) {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:     genai.BackendVertexAI,
		Project:     project,
		Location:    location,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Vertex{client: client, model: modelName, timeout: timeout}, nil
}

// GenerateContent sends the parts as a single user turn
func (v *Vertex) GenerateContent(ctx context.Context, parts ...Part) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	genParts := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.IsImage() {
			genParts = append(genParts, &genai.Part{
				InlineData: &genai.Blob{MIMEType: p.MIMEType, Data: p.Data},
			})
			continue
		}
		genParts = append(genParts, &genai.Part{Text: p.Text})
	}

	contents := []*genai.Content{{Role: "user", Parts: genParts}}
	resp, err := v.client.Models.GenerateContent(ctx, v.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("calling vertex: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from vertex")
	}
	return text, nil
}

// Close is a no-op; the genai client holds no closable resources.
func (v *Vertex) Close() error {
	return nil
}
