package lib

import "time"

// SignRequest represents a signing request sent to the server.
type SignRequest struct {
	Path       string    `json:"path"`
	ValidUntil time.Time `json:"valid_until"`
	ValidFrom  time.Time `json:"valid_from,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	Message    string    `json:"message"`
	Version    string    `json:"version"`
}

// SignResponse is sent by the server.
type SignResponse struct {
	Status   string `json:"status"`   // Status will be "ok" or "error".
	Response string `json:"response"` // Response will contain either the signed URL or the error message.
	Version  string `json:"version"`
}
