package tts

import (
    "errors"

    "go.opentelemetry.io/otel"
    "nhooyr.io/websocket"

    "parley/agent/internal/logging"
)

const scopeName = "parley/agent/internal/tts"

var (
    tracer = otel.Tracer(scopeName)
    logger = logging.New(scopeName)
)

func asCloseError(err error, ce *websocket.CloseError) bool { return errors.As(err, ce) }
