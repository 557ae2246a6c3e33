package models

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	UserName     string    `json:"user_name"`
	Email        string    `json:"email"`
	Avatar       string    `json:"avatar"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicUser is the part of a user that is embedded in public cards.
type PublicUser struct {
	FullName string `json:"full_name"`
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		FullName: u.FullName,
		UserName: u.UserName,
		Email:    u.Email,
		Avatar:   u.Avatar,
	}
}

type RegisterRequest struct {
	FullName string `json:"full_name"`
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type UpdateProfileRequest struct {
	FullName *string `json:"full_name"`
	Avatar   *string `json:"avatar"`
}

type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         User   `json:"user"`
}

var userNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

func (r *RegisterRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.FullName) == "" {
		errors["full_name"] = "Full name is required"
	} else if len(r.FullName) > 120 {
		errors["full_name"] = "Full name is too long"
	}
	if r.UserName == "" {
		errors["user_name"] = "User name is required"
	} else if !userNamePattern.MatchString(r.UserName) {
		errors["user_name"] = "User name must be 3-32 letters, digits, '.', '_' or '-'"
	}
	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if _, err := mail.ParseAddress(r.Email); err != nil {
		errors["email"] = "Email is invalid"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	} else if len(r.Password) < 6 {
		errors["password"] = "Password must be at least 6 characters"
	}

	return errors
}

func (r *LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

func (r *UpdateProfileRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.FullName != nil {
		name := strings.TrimSpace(*r.FullName)
		if name == "" {
			errors["full_name"] = "Full name cannot be empty"
		} else if len(name) > 120 {
			errors["full_name"] = "Full name is too long"
		}
	}
	if r.Avatar != nil && *r.Avatar != "" && !isHTTPURL(*r.Avatar) && !strings.HasPrefix(*r.Avatar, "/uploads/") {
		errors["avatar"] = "Avatar must be an http(s) URL or an uploaded image"
	}

	return errors
}
