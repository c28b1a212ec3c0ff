package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the shared tracer for the forestry core. Without an SDK wired in
// by the host process this is a no-op; services still start spans so an
// embedding application gets traces for free.
var Tracer trace.Tracer = otel.Tracer("forestry")
