package controllers

import (
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func GenerateSessionToken(sessionId string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sessionId,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		log.Printf("Error when signing session token for %s. Error %s ", sessionId, err)
	}
	return t
}
