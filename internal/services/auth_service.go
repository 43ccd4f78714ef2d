package services

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chouhanjibanti/interview-live/internal/cache"
	"github.com/chouhanjibanti/interview-live/internal/models"
	pgrepo "github.com/chouhanjibanti/interview-live/internal/repositories/postgres"
	"github.com/chouhanjibanti/interview-live/internal/utils"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type AuthService interface {
	// Register creates an account and signs it in.
	Register(ctx context.Context, email, password string, role models.AccountRole) (*TokenPair, error)
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	// Refresh rotates the refresh token: the presented token is consumed and
	// a new pair is issued against the account's current role.
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
}

type accessClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type authService struct {
	accounts pgrepo.AccountRepository
	cache    cache.Cache
	secret   []byte
	log      *logrus.Logger
}

func NewAuthService(accounts pgrepo.AccountRepository, c cache.Cache, log *logrus.Logger) AuthService {
	return &authService{
		accounts: accounts,
		cache:    c,
		secret:   []byte(os.Getenv("JWT_SECRET")),
		log:      log,
	}
}

type refreshRecord struct {
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
}

func (s *authService) Register(ctx context.Context, email, password string, role models.AccountRole) (*TokenPair, error) {
	const op = "AuthService.Register"

	if email == "" || password == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "email and password are required", nil)
	}
	switch role {
	case models.RoleRecruiter, models.RoleCandidate, models.RoleAdmin:
	case "":
		role = models.RoleRecruiter
	default:
		return nil, utils.E(utils.CodeInvalidArgument, op, "unknown role", nil)
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "email already registered", nil)
	} else if !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to check account", err)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to hash password", err)
	}
	acc := &models.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create account", err)
	}

	s.log.WithFields(logrus.Fields{"account_id": acc.ID, "role": role}).Info("account registered")
	return s.issuePair(ctx, op, acc.ID, string(role))
}

func (s *authService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	const op = "AuthService.Login"

	if email == "" || password == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "email and password are required", nil)
	}

	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load account", err)
	}
	if utils.CheckPassword(acc.PasswordHash, password) != nil {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
	}

	if err := s.accounts.TouchLastSignIn(ctx, acc.ID); err != nil {
		s.log.WithError(err).WithField("account_id", acc.ID).Warn("last_sign_in update failed")
	}

	return s.issuePair(ctx, op, acc.ID, string(acc.Role))
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	const op = "AuthService.Refresh"

	if refreshToken == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "refresh_token is required", nil)
	}

	key := cache.RefreshTokenKey(refreshToken)
	var rec refreshRecord
	hit, err := s.cache.GetJSON(ctx, key, &rec)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to look up refresh token", err)
	}
	if !hit {
		return nil, utils.E(utils.CodeAuthExpired, op, "refresh token expired or revoked", nil)
	}

	// single-use: the presented token is dead from here on
	if err := s.cache.Del(ctx, key); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to rotate refresh token", err)
	}

	// a deleted account must not keep rotating; role changes take effect here
	acc, err := s.accounts.GetByID(ctx, rec.AccountID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeAuthExpired, op, "account no longer exists", nil)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load account", err)
	}

	return s.issuePair(ctx, op, acc.ID, string(acc.Role))
}

func (s *authService) issuePair(ctx context.Context, op, accountID, role string) (*TokenPair, error) {
	if len(s.secret) == 0 {
		return nil, utils.E(utils.CodeInternal, op, "JWT_SECRET is not set", nil)
	}

	now := time.Now().UTC()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenTTL)),
		},
		Role: role,
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to sign access token", err)
	}

	refresh := uuid.NewString()
	rec := refreshRecord{AccountID: accountID, Role: role}
	if err := s.cache.SetJSON(ctx, cache.RefreshTokenKey(refresh), rec, refreshTokenTTL); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to store refresh token", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}
