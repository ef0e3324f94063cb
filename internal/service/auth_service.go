package service

import (
	"errors"
	"strings"
	"time"

	"github.com/devs-store/unlock-api/internal/config"
	"github.com/devs-store/unlock-api/internal/logger"
	"github.com/devs-store/unlock-api/internal/models"
	"github.com/devs-store/unlock-api/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTokenInvalid       = errors.New("token invalid")
)

// JWTClaims 管理端令牌声明
type JWTClaims struct {
	AdminID  uint   `json:"admin_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService 管理端认证服务
type AuthService struct {
	adminRepo repository.AdminRepository
	jwtCfg    config.JWTConfig
}

// NewAuthService 创建认证服务
func NewAuthService(adminRepo repository.AdminRepository, jwtCfg config.JWTConfig) *AuthService {
	return &AuthService{adminRepo: adminRepo, jwtCfg: jwtCfg}
}

// Login 校验账号密码并签发 JWT
func (s *AuthService) Login(username, password string) (string, *models.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	admin, err := s.adminRepo.GetByUsername(username)
	if err != nil {
		logger.Errorw("admin_login_query_failed", "username", username, "error", err)
		return "", nil, err
	}
	if admin == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.GenerateJWT(admin)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	admin.LastLoginAt = &now
	if err := s.adminRepo.Update(admin); err != nil {
		logger.Warnw("admin_last_login_update_failed", "admin_id", admin.ID, "error", err)
	}

	logger.Infow("admin_login_succeeded", "admin_id", admin.ID, "username", admin.Username)
	return token, admin, nil
}

// GenerateJWT 签发管理端令牌
func (s *AuthService) GenerateJWT(admin *models.Admin) (string, error) {
	if admin == nil {
		return "", ErrInvalidCredentials
	}
	expireHours := s.jwtCfg.ExpireHours
	if expireHours <= 0 {
		expireHours = 24
	}
	now := time.Now()
	claims := JWTClaims{
		AdminID:  admin.ID,
		Username: admin.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expireHours) * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtCfg.SecretKey))
}

// ParseJWT 解析并校验管理端令牌
func (s *AuthService) ParseJWT(tokenString string) (*JWTClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(s.jwtCfg.SecretKey), nil
	})
	if err != nil {
		return nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.AdminID == 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
