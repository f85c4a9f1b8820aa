package transcribe

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/voicemind/voicemind/internal/audio"
)

// googleDefaultLanguage is used when the caller asked for auto-detection;
// the synchronous Recognize RPC requires an explicit language code.
const googleDefaultLanguage = "en-US"

// GoogleTranscriber recognizes chunk audio with the Cloud Speech-to-Text
// synchronous Recognize RPC. Credentials come from the ambient Google
// application default credentials.
type GoogleTranscriber struct {
	client *speech.Client
}

func NewGoogleTranscriber(ctx context.Context) (*GoogleTranscriber, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating speech client: %w", err)
	}
	return &GoogleTranscriber{client: client}, nil
}

func (g *GoogleTranscriber) Close() error {
	return g.client.Close()
}

func (g *GoogleTranscriber) Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (Result, error) {
	// Validate framing the same way the WAV path does, even though the RPC
	// takes raw LINEAR16 content.
	if _, err := audio.EncodeWAV(pcm, sampleRate); err != nil {
		return Result{}, fmt.Errorf("framing audio: %w", err)
	}

	code := language
	if code == "" || code == LanguageAuto {
		code = googleDefaultLanguage
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(sampleRate),
			LanguageCode:    code,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("recognize: %w", err)
	}

	var parts []string
	detected := "unknown"
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		parts = append(parts, strings.TrimSpace(result.Alternatives[0].Transcript))
		if result.LanguageCode != "" {
			detected = result.LanguageCode
		}
	}

	return Result{Text: strings.Join(parts, " "), Language: detected}, nil
}
