package models

// UserRequest encapsulates one inbound chat request.
type UserRequest struct {
	// ConvID identifies the conversation the request belongs to.
	ConvID string `json:"conv_id"`
	// RequestText is the user request in natural language.
	RequestText string `json:"request_text"`
}
