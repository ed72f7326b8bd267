package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carried by a locally signed channel credential.
type Claims struct {
	jwt.RegisteredClaims

	AppID   string `json:"app_id"`
	Channel string `json:"channel"`
	UID     uint32 `json:"uid"`
	Role    Role   `json:"role"`
}

// JWTIssuer signs channel credentials as HS256 JWTs. It serves media backends
// that verify JWTs against a shared secret; Agora clients need AgoraIssuer.
type JWTIssuer struct {
	appID  string
	secret []byte
	now    func() time.Time
}

func NewJWTIssuer(appID, appCertificate string) (*JWTIssuer, error) {
	if appID == "" || appCertificate == "" {
		return nil, errors.New("credentials: app id and certificate are required")
	}
	return &JWTIssuer{appID: appID, secret: []byte(appCertificate), now: time.Now}, nil
}

func (i *JWTIssuer) Issue(ctx context.Context, req Request) (string, error) {
	req = req.withDefaults()
	if err := req.validate(); err != nil {
		return "", err
	}

	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.appID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(req.TTL)),
			ID:        uuid.NewString(),
		},
		AppID:   i.appID,
		Channel: req.Channel,
		UID:     req.UID,
		Role:    req.Role,
	}

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("credentials: sign: %w", err)
	}
	return tok, nil
}

// Verify parses a credential minted by this issuer and checks it is still valid at now.
func (i *JWTIssuer) Verify(token string, now time.Time) (Claims, error) {
	var claims Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.appID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30*time.Second),
	)
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	if claims.Channel == "" {
		return Claims{}, errors.New("channel missing")
	}
	return claims, nil
}
