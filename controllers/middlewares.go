package controllers

import (
	"log"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

// SessionMiddleware resolves the JWT subject to a live studio session.
func SessionMiddleware(store *SessionStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRaw := c.Get("user")
			if userRaw == nil {
				return echo.ErrUnauthorized
			}
			token := userRaw.(*jwt.Token)
			claims := token.Claims.(jwt.MapClaims)
			sessionId := claims["sub"]
			if sessionId == nil || sessionId == "" {
				log.Println("Error while getting the token information!")
				return echo.ErrUnauthorized
			}

			session := store.Get(sessionId.(string))
			if session == nil {
				// Token outlived the process, the client has to start over.
				return echo.ErrUnauthorized
			}
			c.Set("currentSession", session)
			return next(c)
		}
	}
}
