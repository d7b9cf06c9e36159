package db

import (
	"time"

	"github.com/chatterng/chatterx/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type AuthRepository interface {
	CreateUser(user *models.User) (*models.User, error)
	IsEmailExist(email string) error
	IsUsernameExist(username string) error
	FindUserByEmail(email string) (*models.User, error)
	FindUserByID(id uint) (*models.User, error)
	FindUsersByIDs(ids []uint) ([]models.User, error)
	ListUsers(excludeUserID uint) ([]models.User, error)
	SearchUsers(query string, excludeUserID uint) ([]models.User, error)
	UpdateUser(user *models.User) error
	UpdateUserStatus(userID uint, status string, lastSeen time.Time) error
	Heartbeat(userID uint, at time.Time) error
	OnlineUsers() ([]models.User, error)
	AddToBlackList(blacklist *models.Blacklist) error
	IsTokenInBlacklist(token string) bool
}

type authRepo struct {
	DB *gorm.DB
}

func NewAuthRepo(db *GormDB) AuthRepository {
	return &authRepo{db.DB}
}

func (a *authRepo) CreateUser(user *models.User) (*models.User, error) {
	if err := a.DB.Create(user).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}
	return user, nil
}

func (a *authRepo) IsEmailExist(email string) error {
	var count int64
	if err := a.DB.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return errors.Wrap(err, "gorm count error")
	}
	if count > 0 {
		return errors.New("email already in use")
	}
	return nil
}

func (a *authRepo) IsUsernameExist(username string) error {
	var count int64
	if err := a.DB.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return errors.Wrap(err, "gorm count error")
	}
	if count > 0 {
		return errors.New("username already in use")
	}
	return nil
}

func (a *authRepo) FindUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := a.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *authRepo) FindUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := a.DB.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *authRepo) FindUsersByIDs(ids []uint) ([]models.User, error) {
	var users []models.User
	if err := a.DB.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load users")
	}
	return users, nil
}

func (a *authRepo) ListUsers(excludeUserID uint) ([]models.User, error) {
	var users []models.User
	err := a.DB.
		Where("id <> ?", excludeUserID).
		Order("status DESC").
		Order("fullname ASC").
		Find(&users).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	return users, nil
}

func (a *authRepo) SearchUsers(query string, excludeUserID uint) ([]models.User, error) {
	var users []models.User
	pattern := "%" + query + "%"
	err := a.DB.
		Where("id <> ?", excludeUserID).
		Where("fullname ILIKE ? OR username ILIKE ?", pattern, pattern).
		Order("status DESC").
		Limit(25).
		Find(&users).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to search users")
	}
	return users, nil
}

func (a *authRepo) UpdateUser(user *models.User) error {
	return a.DB.Save(user).Error
}

func (a *authRepo) UpdateUserStatus(userID uint, status string, lastSeen time.Time) error {
	return a.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"status": status, "last_seen_at": lastSeen}).Error
}

func (a *authRepo) Heartbeat(userID uint, at time.Time) error {
	return a.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_seen_at", at).Error
}

func (a *authRepo) OnlineUsers() ([]models.User, error) {
	var users []models.User
	err := a.DB.
		Where("status = ?", models.StatusOnline).
		Order("fullname ASC").
		Find(&users).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to load online users")
	}
	return users, nil
}

func (a *authRepo) AddToBlackList(blacklist *models.Blacklist) error {
	return a.DB.Create(blacklist).Error
}

func (a *authRepo) IsTokenInBlacklist(token string) bool {
	var count int64
	a.DB.Model(&models.Blacklist{}).Where("token = ?", token).Count(&count)
	return count > 0
}
