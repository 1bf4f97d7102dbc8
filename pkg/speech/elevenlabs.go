package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	elevenLabsDefaultBaseURL = "https://api.elevenlabs.io"
	elevenLabsDefaultModel   = "eleven_turbo_v2_5"

	// Carrier media streams play 8kHz mu-law audio.
	elevenLabsOutputFormat = "ulaw_8000"
)

// ElevenLabs synthesizes one text segment per request, returning
// audio in the carrier's wire format.
type ElevenLabs struct {
	apiKey     string
	voiceID    string
	modelID    string
	baseURL    string
	httpClient *http.Client
}

// NewElevenLabs creates a synthesizer for the given voice.
func NewElevenLabs(apiKey, voiceID string) *ElevenLabs {
	return &ElevenLabs{
		apiKey:     strings.TrimSpace(apiKey),
		voiceID:    voiceID,
		modelID:    elevenLabsDefaultModel,
		baseURL:    elevenLabsDefaultBaseURL,
		httpClient: &http.Client{},
	}
}

// WithHTTPClient replaces the HTTP client.
func (e *ElevenLabs) WithHTTPClient(client *http.Client) *ElevenLabs {
	if client != nil {
		e.httpClient = client
	}
	return e
}

// WithBaseURL overrides the API endpoint, for tests.
func (e *ElevenLabs) WithBaseURL(base string) *ElevenLabs {
	base = strings.TrimSpace(base)
	if base != "" {
		e.baseURL = base
	}
	return e
}

// WithModel selects a synthesis model.
func (e *ElevenLabs) WithModel(modelID string) *ElevenLabs {
	if strings.TrimSpace(modelID) != "" {
		e.modelID = modelID
	}
	return e
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize converts text to an audio payload.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("elevenlabs api key is required")
	}

	body, err := json.Marshal(elevenLabsRequest{Text: text, ModelID: e.modelID})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		e.baseURL, url.PathEscape(e.voiceID), elevenLabsOutputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/basic")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("elevenlabs error %d: %s", resp.StatusCode, string(detail))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("elevenlabs returned empty audio")
	}
	return audio, nil
}
