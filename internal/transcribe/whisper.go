package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/voicemind/voicemind/internal/audio"
)

const defaultWhisperTimeout = 30 * time.Second

// WhisperClient calls an OpenAI-compatible audio transcription endpoint
// (POST /audio/transcriptions) over HTTP.
type WhisperClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewWhisperClient creates a WhisperClient for the given endpoint and model.
// If timeout is <= 0, a 30s default applies.
func NewWhisperClient(baseURL, apiKey, model string, timeout time.Duration) *WhisperClient {
	if timeout <= 0 {
		timeout = defaultWhisperTimeout
	}
	return &WhisperClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// transcriptionResponse mirrors the verbose_json response of the API.
type transcriptionResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcribe wraps the PCM payload into a WAV container and posts it as a
// multipart upload. A language of "auto" or "" omits the hint so the backend
// detects it.
func (c *WhisperClient) Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (Result, error) {
	wav, err := audio.EncodeWAV(pcm, sampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("framing audio: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return Result{}, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return Result{}, fmt.Errorf("writing form file: %w", err)
	}
	if err := mw.WriteField("model", c.model); err != nil {
		return Result{}, fmt.Errorf("writing model field: %w", err)
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return Result{}, fmt.Errorf("writing format field: %w", err)
	}
	if language != "" && language != LanguageAuto {
		if err := mw.WriteField("language", language); err != nil {
			return Result{}, fmt.Errorf("writing language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return Result{}, fmt.Errorf("creating transcription request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("transcription: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Result{}, fmt.Errorf("decoding transcription response: %w", err)
	}

	detected := tr.Language
	if detected == "" {
		detected = "unknown"
	}
	return Result{Text: strings.TrimSpace(tr.Text), Language: detected}, nil
}
