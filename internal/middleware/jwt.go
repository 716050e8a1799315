package middleware

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-grading-go/internal/service"
	"github.com/noah-isme/gema-grading-go/internal/utils"
)

const actorLocal = "grading_actor"

var (
	errMissingSubject = errors.New("token subject missing")
	errInvalidSubject = errors.New("token subject must be a positive integer")
)

// JWTProtected validates HMAC bearer tokens and binds the grading actor they
// describe to the request.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		actor, err := actorFromClaims(claims)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}
		BindActor(c, actor)

		return c.Next()
	}
}

// BindActor stores the authenticated actor on the request.
func BindActor(c *fiber.Ctx, actor service.Actor) {
	c.Locals(actorLocal, actor)
}

// CurrentActor returns the actor bound by JWTProtected.
func CurrentActor(c *fiber.Ctx) (service.Actor, bool) {
	actor, ok := c.Locals(actorLocal).(service.Actor)
	return actor, ok
}

func actorFromClaims(claims jwt.MapClaims) (service.Actor, error) {
	id, err := subjectFromClaims(claims)
	if err != nil {
		return service.Actor{}, err
	}
	return service.Actor{ID: id, Role: roleFromClaims(claims)}, nil
}

func subjectFromClaims(claims jwt.MapClaims) (uint, error) {
	for _, key := range []string{"sub", "user_id", "id"} {
		if value, ok := claims[key]; ok {
			return parseSubject(value)
		}
	}
	return 0, errMissingSubject
}

func parseSubject(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 1 || v != math.Trunc(v) || v > math.MaxUint32 {
			return 0, errInvalidSubject
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil || parsed == 0 {
			return 0, errInvalidSubject
		}
		return uint(parsed), nil
	default:
		return 0, errInvalidSubject
	}
}

func roleFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"role", "roles"} {
		if value, ok := claims[key]; ok {
			if role := normalizeRole(value); role != "" {
				return role
			}
		}
	}
	return ""
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				if role := strings.ToLower(strings.TrimSpace(str)); role != "" {
					return role
				}
			}
		}
	}
	return ""
}
