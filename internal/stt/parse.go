package stt

import (
    "encoding/json"
    "fmt"
    "strings"

    api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"

    "parley/agent/internal/types"
)

// parser turns Deepgram listen messages into transcript events. It tracks
// the utterance so an UtteranceEnd can stand in for a missed final.
type parser struct {
    lastText     string
    finalEmitted bool
}

// providerError is a Deepgram "Error" frame.
type providerError struct {
    Description string `json:"description"`
    Message     string `json:"message"`
    Variant     string `json:"variant"`
}

func (p *parser) handle(data []byte) ([]types.TranscriptEvent, error) {
    var head struct {
        Type string `json:"type"`
    }
    if err := json.Unmarshal(data, &head); err != nil {
        return nil, fmt.Errorf("stt: decode: %w", err)
    }

    switch api.TypeResponse(head.Type) {
    case api.TypeMessageResponse:
        var msg api.MessageResponse
        if err := json.Unmarshal(data, &msg); err != nil {
            return nil, fmt.Errorf("stt: decode results: %w", err)
        }
        if len(msg.Channel.Alternatives) == 0 {
            return nil, nil
        }
        alt := msg.Channel.Alternatives[0]
        text := strings.TrimSpace(alt.Transcript)
        if text != "" {
            p.lastText = text
        }
        if !(msg.IsFinal || msg.SpeechFinal) {
            if text == "" {
                return nil, nil
            }
            metricTranscriptEvents.WithLabelValues("interim").Inc()
            return []types.TranscriptEvent{{Text: text}}, nil
        }
        if text == "" {
            metricEmptyFinalSkipped.Inc()
            return nil, nil
        }
        p.finalEmitted = true
        conf := alt.Confidence
        metricTranscriptEvents.WithLabelValues("final").Inc()
        return []types.TranscriptEvent{{Text: text, IsFinal: true, Confidence: &conf}}, nil

    case api.TypeUtteranceEndResponse:
        metricUtteranceEvents.WithLabelValues("utterance_end").Inc()
        var out []types.TranscriptEvent
        if !p.finalEmitted && p.lastText != "" {
            out = append(out, types.TranscriptEvent{Text: p.lastText, IsFinal: true})
            metricTranscriptEvents.WithLabelValues("utterance_end_fallback").Inc()
        }
        p.lastText = ""
        p.finalEmitted = false
        return out, nil

    case api.TypeSpeechStartedResponse:
        metricUtteranceEvents.WithLabelValues("speech_started").Inc()
        // a new utterance after a completed one
        if p.finalEmitted {
            p.lastText = ""
            p.finalEmitted = false
        }
        return nil, nil
    }

    if strings.EqualFold(head.Type, "Error") {
        var pe providerError
        _ = json.Unmarshal(data, &pe)
        msg := pe.Description
        if msg == "" {
            msg = pe.Message
        }
        if msg == "" {
            msg = "provider_error"
        }
        return nil, fmt.Errorf("stt: provider: %s", msg)
    }
    // Metadata and anything unknown.
    return nil, nil
}
