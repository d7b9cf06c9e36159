package server

import (
	"net/http"

	errs "github.com/chatterng/chatterx/errors"
	"github.com/chatterng/chatterx/models"
	"github.com/chatterng/chatterx/server/response"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleSignup() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request models.SignupRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}

		user, apiErr := s.AuthService.SignupUser(&request)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "signup successful", http.StatusCreated, user, nil)
	}
}

func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request models.LoginRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}

		login, apiErr := s.AuthService.LoginUser(&request)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "login successful", http.StatusOK, login, nil)
	}
}

// handleRefreshToken exchanges a refresh token for a new pair. It sits
// outside the Authorize group so an expired access token is no obstacle.
func (s *Server) handleRefreshToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request models.RefreshTokenRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}

		login, apiErr := s.AuthService.RefreshToken(request.RefreshToken)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "token refreshed", http.StatusOK, login, nil)
	}
}

// handleLogout blacklists the presented token and flips the user offline.
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.New("Unauthorized", http.StatusUnauthorized))
			return
		}
		token, _ := c.Get("access_token")
		accessToken, _ := token.(string)

		if apiErr := s.AuthService.LogoutUser(user.Email, accessToken); apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		s.PresenceService.MarkOffline(user.ID)
		response.JSON(c, "logout successful", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleShowProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, apiErr := s.AuthService.GetUserProfile(currentUserID(c))
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "profile retrieved", http.StatusOK, profile, nil)
	}
}

// handleUpdateProfile accepts multipart form data so the avatar can ride
// along with the field updates.
func (s *Server) handleUpdateProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request models.UpdateProfileRequest
		if err := c.ShouldBind(&request); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}
		avatar, err := c.FormFile("avatar")
		if err != nil {
			avatar = nil
		}

		profile, apiErr := s.AuthService.UpdateProfile(currentUserID(c), &request, avatar)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "profile updated", http.StatusOK, profile, nil)
	}
}

func (s *Server) handleRemoveAvatar() gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, apiErr := s.AuthService.RemoveAvatar(currentUserID(c))
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "avatar removed", http.StatusOK, profile, nil)
	}
}
