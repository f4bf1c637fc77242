package services

import (
	"fmt"
	"time"

	"chat-core/auth"
	"chat-core/domain"
	"chat-core/errors"
	"chat-core/repositories"
)

type IAuthService interface {
	Login(username, password string) (Token, error)
	Register(username, email, password string) (Token, error)
	Identify(token string) (domain.Identity, error)
}

// AuthService is the default identity provider implementation: it stores
// accounts in the user directory and issues the bearer tokens the gateway
// later verifies. The chat core itself only consumes Identify.
type AuthService struct {
	userRepository    repositories.IUserRepository
	authTokenDuration time.Duration
}

type Token string

func NewAuthService(repo repositories.IUserRepository, authTokenDuration time.Duration) IAuthService {
	return &AuthService{userRepository: repo, authTokenDuration: authTokenDuration}
}

func (s *AuthService) Register(username, email, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	}

	// Validate business rules before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hash in the service layer to keep the repository unaware of plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.userRepository.CreateUser(username, email, hashedPassword)
	if err != nil {
		return "", err // Propagates ErrUserAlreadyExists if the name is taken
	}

	token, err := auth.GenerateToken(userID, s.authTokenDuration)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}

	return Token(token), nil
}

func (s *AuthService) Login(username, password string) (Token, error) {
	user, err := s.userRepository.GetByUsername(username)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, s.authTokenDuration)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}

	return Token(token), nil
}

// Identify verifies a bearer token and resolves the claims back to a live
// account. Any failure (signature, expiry, deleted user) comes back as
// ErrInvalidCredential so callers close with a single, stable auth code.
func (s *AuthService) Identify(token string) (domain.Identity, error) {
	claims, err := auth.ValidateToken(token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrInvalidCredential, err)
	}

	user, err := s.userRepository.GetByID(claims.UserID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: unknown subject", errors.ErrInvalidCredential)
	}

	return domain.Identity{ID: user.ID, Username: user.Username}, nil
}
