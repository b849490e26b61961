package orchestrator

import (
	"go.opentelemetry.io/otel"

	"parley/agent/internal/logging"
)

const scopeName = "parley/agent/internal/orchestrator"

var (
	tracer = otel.Tracer(scopeName)
	logger = logging.New(scopeName)
)
