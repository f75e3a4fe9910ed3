package model

type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	AdmissionNumber string `json:"admission_number"`
	Password        string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
