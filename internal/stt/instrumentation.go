package stt

import (
    "go.opentelemetry.io/otel"

    "parley/agent/internal/logging"
)

const scopeName = "parley/agent/internal/stt"

var (
    tracer = otel.Tracer(scopeName)
    logger = logging.New(scopeName)
)
