package models

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" conform:"trim,lower"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	UserResponse
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type SignupRequest struct {
	Fullname string `json:"fullname" binding:"required,min=2" conform:"trim"`
	Username string `json:"username" binding:"required,min=2" conform:"trim,lower"`
	Email    string `json:"email" binding:"required,email" conform:"trim,lower"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Fullname string `json:"fullname" form:"fullname" conform:"trim"`
	Username string `json:"username" form:"username" conform:"trim,lower"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=online offline away"`
}
