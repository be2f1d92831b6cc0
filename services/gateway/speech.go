package gateway

import (
	"context"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"google.golang.org/api/option"
	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"
)

// SpeechTranscriber transcribes widget voice clips with Google Cloud
// Speech. Clips are expected as LINEAR16 mono at 16 kHz; the widget does
// the conversion before upload. Satisfies VoiceBackend.
type SpeechTranscriber struct {
	CredentialsFile string
	Language        string
}

func (t *SpeechTranscriber) Transcribe(ctx context.Context, audio []byte) (*VoiceResult, error) {
	client, err := speech.NewClient(ctx, option.WithCredentialsFile(t.CredentialsFile))
	if err != nil {
		return nil, NewNetworkError("processVoiceInput", err)
	}
	defer client.Close()

	language := t.Language
	if language == "" {
		language = "en-US"
	}

	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:          speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:   16000,
			LanguageCode:      language,
			AudioChannelCount: 1,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}

	resp, err := client.Recognize(ctx, req)
	if err != nil {
		return nil, NewNetworkError("processVoiceInput", err)
	}

	var transcript strings.Builder
	var confidence float32
	for _, result := range resp.Results {
		for _, alt := range result.Alternatives {
			transcript.WriteString(alt.Transcript + " ")
			if alt.Confidence > confidence {
				confidence = alt.Confidence
			}
		}
	}

	return &VoiceResult{
		Text:       strings.TrimSpace(transcript.String()),
		Confidence: confidence,
	}, nil
}
