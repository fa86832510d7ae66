package ir

// Version constants recorded with every stored pass.
const (
	// TraceVersion is the trace record schema version.
	TraceVersion = "1"

	// EngineVersion is the splice engine version.
	EngineVersion = "0.1.0"
)
