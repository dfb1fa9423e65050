package service

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/simurgh/internal/pkg/errors"
	"github.com/xxxsen/simurgh/internal/pkg/jwt"
	"github.com/xxxsen/simurgh/internal/pkg/password"
)

const adminRole = "admin"

// AdminService authenticates the single configured administrator.
type AdminService struct {
	username     string
	passwordHash string
	jwtSecret    []byte
	jwtTTL       time.Duration
}

func NewAdminService(username, passwordHash string, secret []byte, ttl time.Duration) *AdminService {
	return &AdminService{username: username, passwordHash: passwordHash, jwtSecret: secret, jwtTTL: ttl}
}

func (s *AdminService) Login(ctx context.Context, username, plainPassword string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	if err := password.Compare(s.passwordHash, plainPassword); err != nil || !userOK {
		logutil.GetLogger(ctx).Warn("admin login rejected", zap.String("username", username))
		return "", appErr.ErrUnauthorized
	}
	token, err := jwt.GenerateToken(s.username, adminRole, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return "", err
	}
	return token, nil
}
