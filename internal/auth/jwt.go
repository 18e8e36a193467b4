package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PlaybackTokenDuration bounds how long a started playback may keep posting
// events before the viewer has to reload the watch page.
const PlaybackTokenDuration = 12 * time.Hour

type PlaybackClaims struct {
	SessionID  string `json:"sessionId"`
	PlaybackID string `json:"playbackId"`
	jwt.RegisteredClaims
}

// GeneratePlaybackToken mints the bearer token the watch page carries for the
// lifetime of one playback.
func GeneratePlaybackToken(secret string, sessionID, playbackID string) (string, error) {
	claims := &PlaybackClaims{
		SessionID:  sessionID,
		PlaybackID: playbackID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(PlaybackTokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        playbackID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidatePlaybackToken(secret string, tokenStr string) (*PlaybackClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &PlaybackClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*PlaybackClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.SessionID == "" || claims.PlaybackID == "" {
		return nil, fmt.Errorf("invalid token: missing playback identity")
	}

	return claims, nil
}
