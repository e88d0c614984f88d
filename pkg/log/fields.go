package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (set by pkg/auth session middleware)
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Service
	FieldService = "service"
)
