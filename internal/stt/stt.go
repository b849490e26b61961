// Package stt streams audio to a transcription provider and hands back
// transcript events in arrival order.
package stt

import (
    "context"
    "errors"

    "parley/agent/internal/types"
)

var (
    // ErrTransport marks a dropped or failed provider connection. It is
    // terminal for the Session that returned it.
    ErrTransport = errors.New("stt: transport failure")
    // ErrClosed is returned after Close.
    ErrClosed = errors.New("stt: session closed")
    // ErrCircuitOpen is returned by Open while recent dials keep failing.
    ErrCircuitOpen = errors.New("stt: circuit open")
)

// Transcriber opens streaming sessions.
type Transcriber interface {
    Open(ctx context.Context) (Session, error)
}

// Session is one live transcription stream. SendAudio and NextEvent may be
// called from different goroutines; NextEvent must have a single caller.
type Session interface {
    SendAudio(ctx context.Context, f types.AudioFrame) error
    NextEvent(ctx context.Context) (types.TranscriptEvent, error)
    Close() error
}
