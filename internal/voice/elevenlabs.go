package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrMissingAPIKey reports an absent credential before any network call.
	ErrMissingAPIKey = errors.New("elevenlabs api key is not configured")

	// ErrUnexpectedResponse reports a 2xx reply that did not carry audio.
	ErrUnexpectedResponse = errors.New("elevenlabs returned an unexpected response")
)

// UpstreamError carries the most specific message the transformation API gave
// us for a failed call.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("elevenlabs request failed: %s", e.Message)
}

type ElevenLabsConfig struct {
	APIKey       string
	BaseURL      string
	VoiceID      string
	OutputFormat string
	Timeout      time.Duration
}

// ElevenLabs converts a voice sample into the configured target voice via the
// speech-to-speech endpoint.
type ElevenLabs struct {
	cfg        ElevenLabsConfig
	httpClient *http.Client
}

func NewElevenLabs(cfg ElevenLabsConfig) *ElevenLabs {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &ElevenLabs{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Transform sends the audio payload through speech-to-speech and returns the
// converted audio bytes.
func (c *ElevenLabs) Transform(ctx context.Context, audio []byte, contentType string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if len(audio) == 0 {
		return nil, errors.New("audio payload is empty")
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = "audio/wav"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreatePart(audioPartHeader(contentType))
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if err := mw.WriteField("output_format", c.cfg.OutputFormat); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/speech-to-speech/" + url.PathEscape(c.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call elevenlabs: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read elevenlabs response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &UpstreamError{
			StatusCode: res.StatusCode,
			Message:    extractAPIError(res.StatusCode, res.Status, data),
		}
	}

	respType := res.Header.Get("Content-Type")
	if len(data) == 0 || !strings.HasPrefix(respType, "audio/") {
		return nil, fmt.Errorf("%w: content type %q, body %q", ErrUnexpectedResponse, respType, truncate(data, 512))
	}
	return data, nil
}

// CheckAPIKey verifies the configured credential against the voices listing.
func (c *ElevenLabs) CheckAPIKey(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return ErrMissingAPIKey
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/voices"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call elevenlabs: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &UpstreamError{
			StatusCode: res.StatusCode,
			Message:    extractAPIError(res.StatusCode, res.Status, data),
		}
	}
	return nil
}

// extractAPIError digs the most specific message out of an error reply:
// structured detail first, then the raw body text, then the status line.
func extractAPIError(statusCode int, status string, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 {
		var parsed struct {
			Detail struct {
				Message string `json:"message"`
			} `json:"detail"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(trimmed, &parsed); err == nil {
			if parsed.Detail.Message != "" {
				return parsed.Detail.Message
			}
			if parsed.Message != "" {
				return parsed.Message
			}
		}
		return truncate(trimmed, 512)
	}
	if status != "" {
		return status
	}
	return fmt.Sprintf("status %d", statusCode)
}

func truncate(b []byte, limit int) string {
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

func audioPartHeader(contentType string) textproto.MIMEHeader {
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="audio"; filename="recording"`)
	h.Set("Content-Type", contentType)
	return h
}
