package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Issuers accepted for external identity tokens.
var externalIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

type AuthUseCase struct {
	sessionRepo repository.AuthSessionRepository
	jwtSecret   string
	tokenTTL    time.Duration
	now         func() time.Time
}

func NewAuthUseCase(sessionRepo repository.AuthSessionRepository, jwtSecret string, tokenTTL time.Duration) *AuthUseCase {
	return &AuthUseCase{
		sessionRepo: sessionRepo,
		jwtSecret:   jwtSecret,
		tokenTTL:    tokenTTL,
		now:         time.Now,
	}
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Identity  domain.Identity `json:"identity"`
}

// SignInGuest issues a token for a fresh anonymous identity.
func (uc *AuthUseCase) SignInGuest(ctx context.Context) (*AuthResponse, error) {
	identity := domain.Identity{
		UserID:   uuid.NewString(),
		AuthType: domain.AuthGuest,
	}
	return uc.issue(ctx, identity)
}

// SignInExternal issues a token for the identity carried by an external provider's ID
// token. The provider's signature is checked upstream by the client SDK that obtained
// the token; here only its claims are read and sanity checked.
func (uc *AuthUseCase) SignInExternal(ctx context.Context, idToken string) (*AuthResponse, error) {
	identity, err := uc.parseExternalToken(idToken)
	if err != nil {
		return nil, err
	}
	return uc.issue(ctx, identity)
}

func (uc *AuthUseCase) parseExternalToken(idToken string) (domain.Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return domain.Identity{}, domain.ErrInvalidToken
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	if iss, _ := claims.GetIssuer(); !externalIssuers[iss] {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	if exp, err := claims.GetExpirationTime(); err != nil || exp == nil || exp.Before(uc.now()) {
		return domain.Identity{}, domain.ErrInvalidToken
	}

	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)
	email, _ := claims["email"].(string)
	return domain.Identity{
		UserID:   sub,
		AuthType: domain.AuthGoogle,
		Name:     name,
		Avatar:   picture,
		Email:    email,
	}, nil
}

func (uc *AuthUseCase) issue(ctx context.Context, identity domain.Identity) (*AuthResponse, error) {
	now := uc.now()
	expiresAt := now.Add(uc.tokenTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":   identity.UserID,
		"auth_type": string(identity.AuthType),
		"jti":       uuid.NewString(),
		"exp":       expiresAt.Unix(),
		"iat":       now.Unix(),
	})

	tokenString, err := token.SignedString([]byte(uc.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	session := &domain.AuthSession{
		TokenHash: hashToken(tokenString),
		Identity:  identity,
		ExpiresAt: expiresAt,
	}
	if err := uc.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().Str("user_id", identity.UserID).Str("auth_type", string(identity.AuthType)).Msg("Issued session token")

	return &AuthResponse{
		Token:     tokenString,
		ExpiresAt: expiresAt,
		Identity:  identity,
	}, nil
}

// VerifyToken verifies JWT token and returns the identity it was issued for
func (uc *AuthUseCase) VerifyToken(ctx context.Context, tokenString string) (domain.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return []byte(uc.jwtSecret), nil
	}, jwt.WithTimeFunc(uc.now))

	if err != nil || !token.Valid {
		return domain.Identity{}, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return domain.Identity{}, domain.ErrInvalidToken
	}

	// Verify session exists
	session, err := uc.sessionRepo.GetByToken(ctx, hashToken(tokenString))
	if err != nil {
		return domain.Identity{}, domain.ErrSessionNotFound
	}
	if uc.now().After(session.ExpiresAt) {
		return domain.Identity{}, domain.ErrSessionExpired
	}
	if session.UserID != userID {
		return domain.Identity{}, domain.ErrInvalidToken
	}

	return session.Identity, nil
}

// Logout deletes user session
func (uc *AuthUseCase) Logout(ctx context.Context, tokenString string) error {
	return uc.sessionRepo.DeleteByToken(ctx, hashToken(tokenString))
}

// hashToken creates SHA256 hash of token for storage
func hashToken(token string) string {
	h := sha256.New()
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}
