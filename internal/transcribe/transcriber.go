// Package transcribe defines the speech-to-text gateway boundary and its
// backends. The pipeline treats every backend as a black box that may fail
// or return empty text.
package transcribe

import "context"

// LanguageAuto asks the backend to detect the spoken language.
const LanguageAuto = "auto"

// Result is the recognized text for one audio chunk.
type Result struct {
	Text     string
	Language string // detected language, or "unknown"
}

// Transcriber converts one raw PCM chunk (mono, 16-bit) into text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (Result, error)
}
