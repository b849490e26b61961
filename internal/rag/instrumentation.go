package rag

import (
	"go.opentelemetry.io/otel"

	"parley/agent/internal/logging"
)

const scopeName = "parley/agent/internal/rag"

var (
	tracer = otel.Tracer(scopeName)
	logger = logging.New(scopeName)
)
