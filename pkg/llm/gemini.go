package llm

import (
	"context"
	"fmt"
	"io"
	"strings"

	"google.golang.org/genai"

	"github.com/Hamon-Elyot/testcall/pkg/call"
)

const geminiDefaultModel = "gemini-2.0-flash"

// Gemini serves generation requests through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates the client.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = geminiDefaultModel
	}
	return &Gemini{client: client, model: model}, nil
}

// geminiContents splits the history into conversation turns and the
// combined system instruction, in the shape the API expects.
func geminiContents(history []call.Message) ([]*genai.Content, string) {
	var (
		contents []*genai.Content
		system   []string
	)
	for _, msg := range history {
		switch msg.Role {
		case call.RoleSystem:
			system = append(system, msg.Content)
		case call.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return contents, strings.Join(system, "\n\n")
}

func (c *Gemini) generateConfig(system string) *genai.GenerateContentConfig {
	if system == "" {
		return nil
	}
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}
}

type geminiFragment struct {
	text string
	err  error
}

type geminiStream struct {
	out    chan geminiFragment
	cancel context.CancelFunc
}

// Stream requests a streamed reply to the conversation history.
func (c *Gemini) Stream(ctx context.Context, history []call.Message) (call.FragmentStream, error) {
	contents, system := geminiContents(history)
	sctx, cancel := context.WithCancel(ctx)
	out := make(chan geminiFragment, 16)
	go func() {
		defer close(out)
		for resp, err := range c.client.Models.GenerateContentStream(sctx, c.model, contents, c.generateConfig(system)) {
			if err != nil {
				select {
				case out <- geminiFragment{err: err}:
				case <-sctx.Done():
				}
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case out <- geminiFragment{text: text}:
			case <-sctx.Done():
				return
			}
		}
	}()
	return &geminiStream{out: out, cancel: cancel}, nil
}

// Complete requests a full reply in one round trip.
func (c *Gemini) Complete(ctx context.Context, history []call.Message) (string, error) {
	contents, system := geminiContents(history)
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, c.generateConfig(system))
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini completion: empty response")
	}
	return text, nil
}

func (s *geminiStream) Next() (string, error) {
	f, ok := <-s.out
	if !ok {
		return "", io.EOF
	}
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (s *geminiStream) Close() error {
	s.cancel()
	return nil
}
