package dto

// Envelope is the uniform response wrapper carried by every endpoint:
// {status, success, message, data|error}.
type Envelope struct {
	Status  int         `json:"status"`
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}
