package services

import (
	"log"
	"mime/multipart"
	"net/http"

	"github.com/chatterng/chatterx/config"
	"github.com/chatterng/chatterx/db"
	apiError "github.com/chatterng/chatterx/errors"
	"github.com/chatterng/chatterx/models"
	"github.com/chatterng/chatterx/services/jwt"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	goerrors "errors"
)

// AuthService owns accounts and sessions.
type AuthService interface {
	SignupUser(request *models.SignupRequest) (*models.UserResponse, *apiError.Error)
	LoginUser(loginRequest *models.LoginRequest) (*models.LoginResponse, *apiError.Error)
	LogoutUser(email, token string) *apiError.Error
	RefreshToken(refreshToken string) (*models.LoginResponse, *apiError.Error)
	GetUserProfile(userID uint) (*models.UserResponse, *apiError.Error)
	UpdateProfile(userID uint, request *models.UpdateProfileRequest, avatar *multipart.FileHeader) (*models.UserResponse, *apiError.Error)
	RemoveAvatar(userID uint) (*models.UserResponse, *apiError.Error)
	ListUsers(requesterID uint) ([]models.UserResponse, *apiError.Error)
	SearchUsers(query string, requesterID uint) ([]models.UserResponse, *apiError.Error)
}

type authService struct {
	Config   *config.Config
	authRepo db.AuthRepository
	storage  StorageService
}

func NewAuthService(authRepo db.AuthRepository, storage StorageService, conf *config.Config) AuthService {
	return &authService{
		Config:   conf,
		authRepo: authRepo,
		storage:  storage,
	}
}

func (s *authService) SignupUser(request *models.SignupRequest) (*models.UserResponse, *apiError.Error) {
	if err := models.ScrubRequest(request); err != nil {
		log.Printf("SignupUser error scrubbing request: %v", err)
		return nil, apiError.ErrInternalServerError
	}
	if err := models.ValidatePassword(request.Password); err != nil {
		return nil, apiError.Validation(err.Error())
	}
	if err := s.authRepo.IsEmailExist(request.Email); err != nil {
		return nil, apiError.New("email already in use", http.StatusConflict)
	}
	if err := s.authRepo.IsUsernameExist(request.Username); err != nil {
		return nil, apiError.New("username already in use", http.StatusConflict)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(request.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("SignupUser error hashing password: %v", err)
		return nil, apiError.ErrInternalServerError
	}

	user := &models.User{
		Fullname:       request.Fullname,
		Username:       request.Username,
		Email:          request.Email,
		HashedPassword: string(hashedPassword),
		Status:         models.StatusOffline,
	}
	user, err = s.authRepo.CreateUser(user)
	if err != nil {
		// Two signups racing the same email or username resolve at the
		// unique constraint.
		if apiError.IsUniqueConstraint(err) {
			return nil, apiError.GetUniqueContraintError(err)
		}
		log.Printf("SignupUser error creating user: %v", err)
		return nil, apiError.ErrInternalServerError
	}

	resp := user.Response()
	resp.Email = user.Email
	return &resp, nil
}

func (s *authService) LoginUser(loginRequest *models.LoginRequest) (*models.LoginResponse, *apiError.Error) {
	if err := models.ScrubRequest(loginRequest); err != nil {
		log.Printf("LoginUser error scrubbing request: %v", err)
		return nil, apiError.ErrInternalServerError
	}

	foundUser, err := s.authRepo.FindUserByEmail(loginRequest.Email)
	if err != nil {
		if goerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apiError.New("invalid email or password", http.StatusUnprocessableEntity)
		}
		log.Printf("error finding user by email: %v", err)
		return nil, apiError.ErrInternalServerError
	}
	if err := foundUser.VerifyPassword(loginRequest.Password); err != nil {
		return nil, apiError.New("invalid email or password", http.StatusUnprocessableEntity)
	}

	accessToken, refreshToken, err := jwt.GenerateTokenPair(foundUser.Email, s.Config.JWTSecret, foundUser.ID)
	if err != nil {
		log.Printf("error generating token pair for user %s: %v", foundUser.Email, err)
		return nil, apiError.ErrInternalServerError
	}

	userResponse := foundUser.Response()
	userResponse.Email = foundUser.Email
	return &models.LoginResponse{
		UserResponse: userResponse,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// LogoutUser invalidates the presented access token; it stays rejected until
// its natural expiry.
func (s *authService) LogoutUser(email, token string) *apiError.Error {
	blacklist := &models.Blacklist{
		Email: email,
		Token: token,
	}
	if err := s.authRepo.AddToBlackList(blacklist); err != nil {
		log.Printf("error blacklisting token for %s: %v", email, err)
		return apiError.ErrInternalServerError
	}
	return nil
}

// RefreshToken exchanges a valid refresh token for a fresh token pair. Access
// tokens are not accepted here; a blacklisted refresh token stays dead.
func (s *authService) RefreshToken(refreshToken string) (*models.LoginResponse, *apiError.Error) {
	if s.authRepo.IsTokenInBlacklist(refreshToken) {
		return nil, apiError.New("invalid refresh token", http.StatusUnauthorized)
	}

	claims, err := jwt.ValidateAndGetClaims(refreshToken, s.Config.JWTSecret)
	if err != nil {
		return nil, apiError.New("invalid refresh token", http.StatusUnauthorized)
	}
	if tokenType, ok := claims["type"].(string); !ok || tokenType != "refresh" {
		return nil, apiError.New("invalid refresh token", http.StatusUnauthorized)
	}
	id, ok := claims["id"].(float64)
	if !ok {
		return nil, apiError.New("invalid refresh token", http.StatusUnauthorized)
	}

	user, err := s.authRepo.FindUserByID(uint(id))
	if err != nil {
		if goerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apiError.New("invalid refresh token", http.StatusUnauthorized)
		}
		log.Printf("error finding user %d during refresh: %v", uint(id), err)
		return nil, apiError.ErrInternalServerError
	}

	accessToken, newRefreshToken, err := jwt.GenerateTokenPair(user.Email, s.Config.JWTSecret, user.ID)
	if err != nil {
		log.Printf("error generating token pair for user %s: %v", user.Email, err)
		return nil, apiError.ErrInternalServerError
	}

	userResponse := user.Response()
	userResponse.Email = user.Email
	return &models.LoginResponse{
		UserResponse: userResponse,
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
	}, nil
}

func (s *authService) GetUserProfile(userID uint) (*models.UserResponse, *apiError.Error) {
	user, err := s.authRepo.FindUserByID(userID)
	if err != nil {
		return nil, apiError.NotFound("user not found")
	}
	resp := user.Response()
	resp.Email = user.Email
	return &resp, nil
}

func (s *authService) UpdateProfile(userID uint, request *models.UpdateProfileRequest, avatar *multipart.FileHeader) (*models.UserResponse, *apiError.Error) {
	if err := models.ScrubRequest(request); err != nil {
		log.Printf("UpdateProfile error scrubbing request: %v", err)
		return nil, apiError.ErrInternalServerError
	}

	user, err := s.authRepo.FindUserByID(userID)
	if err != nil {
		return nil, apiError.NotFound("user not found")
	}

	if request.Username != "" && request.Username != user.Username {
		if err := s.authRepo.IsUsernameExist(request.Username); err != nil {
			return nil, apiError.New("username already in use", http.StatusConflict)
		}
		user.Username = request.Username
	}
	if request.Fullname != "" {
		user.Fullname = request.Fullname
	}

	if avatar != nil {
		ref, err := s.storage.UploadAvatar(avatar, userID)
		if err != nil {
			log.Printf("failed to upload avatar for user %d: %v", userID, err)
			return nil, apiError.New("failed to upload avatar", http.StatusBadRequest)
		}
		if old := user.AvatarURL; old != "" {
			go func() {
				if err := s.storage.DeleteObject(old); err != nil {
					log.Printf("failed to release old avatar %s: %v", old, err)
				}
			}()
		}
		user.AvatarURL = ref
	}

	if err := s.authRepo.UpdateUser(user); err != nil {
		if apiError.IsUniqueConstraint(err) {
			return nil, apiError.New("username already in use", http.StatusConflict)
		}
		log.Printf("failed to update user %d: %v", userID, err)
		return nil, apiError.ErrInternalServerError
	}

	resp := user.Response()
	resp.Email = user.Email
	return &resp, nil
}

// RemoveAvatar clears the profile picture and releases the stored object.
// The storage delete is best-effort; the cleared profile stands either way.
func (s *authService) RemoveAvatar(userID uint) (*models.UserResponse, *apiError.Error) {
	user, err := s.authRepo.FindUserByID(userID)
	if err != nil {
		return nil, apiError.NotFound("user not found")
	}

	old := user.AvatarURL
	if old != "" {
		user.AvatarURL = ""
		if err := s.authRepo.UpdateUser(user); err != nil {
			log.Printf("failed to clear avatar for user %d: %v", userID, err)
			return nil, apiError.ErrInternalServerError
		}
		if err := s.storage.DeleteObject(old); err != nil {
			log.Printf("failed to release avatar %s: %v", old, err)
		}
	}

	resp := user.Response()
	resp.Email = user.Email
	return &resp, nil
}

func (s *authService) ListUsers(requesterID uint) ([]models.UserResponse, *apiError.Error) {
	users, err := s.authRepo.ListUsers(requesterID)
	if err != nil {
		log.Printf("failed to list users: %v", err)
		return nil, apiError.ErrInternalServerError
	}
	return userResponses(users), nil
}

func (s *authService) SearchUsers(query string, requesterID uint) ([]models.UserResponse, *apiError.Error) {
	if query == "" {
		return []models.UserResponse{}, nil
	}
	users, err := s.authRepo.SearchUsers(query, requesterID)
	if err != nil {
		log.Printf("failed to search users: %v", err)
		return nil, apiError.ErrInternalServerError
	}
	return userResponses(users), nil
}

func userResponses(users []models.User) []models.UserResponse {
	out := make([]models.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, users[i].Response())
	}
	return out
}
