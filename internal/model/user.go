package model

import "time"

type User struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	AdmissionNumber string    `json:"admission_number"`
	PasswordHash    string    `json:"-"`
	CreatedAt       time.Time `json:"-"`
}

// Public strips the password hash.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		AdmissionNumber: u.AdmissionNumber,
	}
}

type PublicUser struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	AdmissionNumber string `json:"admission_number"`
}

type LoginResult struct {
	PublicUser
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type DashboardResponse struct {
	Message string     `json:"message"`
	User    PublicUser `json:"user"`
}
