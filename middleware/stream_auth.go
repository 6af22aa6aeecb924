package middleware

import (
	"fmt"
	"strings"

	"puzzle-bar/utils"

	jwt "github.com/form3tech-oss/jwt-go"
	"github.com/gofiber/fiber/v2"
)

// StreamAuthMiddleware authenticates event-stream requests, which cannot
// carry gateway headers, from a signed `token` query parameter. The token's
// "id" claim becomes the request user.
func StreamAuthMiddleware(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := strings.TrimSpace(c.Query("token"))
		if raw == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token in query",
			})
		}

		userID, roles, err := parseStreamToken(raw, secret)
		if err != nil {
			utils.LogWarn("[STREAM_AUTH] ❌ rejected token from %s: %v", c.IP(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals("user_id", userID)
		c.Locals("user_roles", roles)
		return c.Next()
	}
}

func parseStreamToken(raw string, secret []byte) (string, []string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", nil, fmt.Errorf("invalid token")
	}
	userID, _ := claims["id"].(string)
	if userID == "" {
		return "", nil, fmt.Errorf("token has no id claim")
	}

	var roles []string
	if role, ok := claims["role"].(string); ok && role != "" {
		roles = append(roles, role)
	}
	return userID, roles, nil
}
