package types

// MessageEnvelope wraps list/create responses with a human-readable message.
type MessageEnvelope struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// APIError is the wire shape of every error response.
type APIError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
}
