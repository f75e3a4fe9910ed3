package model

// ErrorResponse is the body of every non-2xx response. Clients read Detail.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
