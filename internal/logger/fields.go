package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the job record primary identifier
	FieldJobID = "job_id"

	// FieldPlatform is the identified ATS platform name
	FieldPlatform = "platform"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldStep is the current filler step name
	FieldStep = "step"

	// FieldStrategy is the filling strategy being attempted
	FieldStrategy = "strategy"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
