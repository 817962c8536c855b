package models

// API response types for consistent JSON error responses

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
// Successful endpoints respond with their own typed shapes; this envelope covers
// error responses.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{
		Status:  string(APIStatusError),
		Message: message,
	}
}
