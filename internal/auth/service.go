package auth

import (
	"context"
	"errors"
	"time"

	"github.com/Matanel980/TaxiBot-sub003/internal/db"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	secret []byte
	db     db.Querier
}

// Claims ties a token to both the driver and the station so authorization
// checks never need a second lookup.
type Claims struct {
	DriverID  string `json:"driver_id"`
	StationID string `json:"station_id"`
	jwt.RegisteredClaims
}

func NewService(secret string, db db.Querier) *Service {
	return &Service{
		secret: []byte(secret),
		db:     db,
	}
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (TokenResponse, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, station_id, password_hash
		FROM drivers WHERE phone = $1
	`, req.Phone)

	var driverID, stationID, hash string
	if err := row.Scan(&driverID, &stationID, &hash); err != nil {
		return TokenResponse{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		return TokenResponse{}, ErrInvalidCredentials
	}

	return s.GenerateTokens(ctx, driverID, stationID)
}

// SetPassword stores a bcrypt hash for the driver. Dispatch calls this
// during onboarding; drivers call it through the password route.
func (s *Service) SetPassword(ctx context.Context, driverID, password string) error {
	if password == "" {
		return errors.New("password required")
	}
	hash, err := hashPasswordFn([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `UPDATE drivers SET password_hash=$2 WHERE id=$1`, driverID, string(hash))
	return err
}

func (s *Service) GenerateTokens(ctx context.Context, driverID, stationID string) (TokenResponse, error) {
	access, err := signTokenFn(s, driverID, stationID, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := signTokenFn(s, driverID, stationID, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := s.saveRefreshToken(ctx, refresh, driverID, refreshTokenTTL); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return nil, err
	}

	driverID, expiresAt, err := s.lookupRefreshToken(ctx, token)
	if err != nil || driverID != claims.DriverID || time.Now().After(expiresAt) {
		return nil, errors.New("refresh token invalid")
	}
	return claims, nil
}

func (s *Service) ValidateAccessToken(token string) (*Claims, error) {
	return s.parseToken(token)
}

var (
	signTokenFn    = (*Service).signToken
	hashPasswordFn = bcrypt.GenerateFromPassword
)

func (s *Service) signToken(driverID, stationID string, ttl time.Duration) (string, error) {
	claims := Claims{
		DriverID:  driverID,
		StationID: stationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

var parseWithClaimsFn = jwt.ParseWithClaims

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := parseWithClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

func (s *Service) saveRefreshToken(ctx context.Context, token, driverID string, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, driver_id, token, expires_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), driverID, token, time.Now().Add(ttl))
	return err
}

func (s *Service) lookupRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	row := s.db.QueryRow(ctx, `
		SELECT driver_id, expires_at
		FROM refresh_tokens
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	var driverID string
	var expiresAt time.Time
	if err := row.Scan(&driverID, &expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return driverID, expiresAt, nil
}
