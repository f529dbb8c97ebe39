package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"textilemart/internal/domain/policy"
	repo "textilemart/internal/repository"
	auth "textilemart/internal/usecase/auth_usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const CtxActorKey = "actor" // policy.Actor

// Bearerトークンを検証し、DBのユーザーに解決してactorをcontextに入れる
func AuthJWT(secret string, users repo.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//Authorizationヘッダを取得
			authz := c.Request().Header.Get("Authorization")
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("not authorized, no token"))
			}
			rawToken := strings.TrimSpace(parts[1])

			//JWTをパースして検証する
			token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
				if t.Method != jwt.SigningMethodHS256 {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil || token == nil || !token.Valid {
				return c.JSON(http.StatusUnauthorized, errorJSON("not authorized, token failed"))
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("not authorized, token failed"))
			}

			userID, err := parseUserID(claims[auth.ClaimSubject])
			if err != nil || userID <= 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("not authorized, token failed"))
			}
			tv, err := parseInt(claims[auth.ClaimTokenVersion])
			if err != nil || tv < 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("not authorized, token failed"))
			}

			//DBから最新のuserを取得する（削除済みなら401）
			user, err := users.FindByID(c.Request().Context(), userID)
			if err != nil || user == nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("not authorized, token failed"))
			}

			//token_version が一致しなければ強制ログアウト扱い
			if user.TokenVersion != tv {
				return c.JSON(http.StatusUnauthorized, errorJSON("not authorized, token failed"))
			}

			//roleはトークンではなくDBの値を使う
			c.Set(CtxActorKey, policy.Actor{UserID: user.ID, Role: user.Role, Name: user.Name})
			return next(c)
		}
	}
}

// AuthJWTが入れたactor。未認証ならok=false
func ActorFrom(c echo.Context) (policy.Actor, bool) {
	a, ok := c.Get(CtxActorKey).(policy.Actor)
	if !ok || a.UserID <= 0 {
		return policy.Actor{}, false
	}
	return a, true
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

// subをint64に変換する
func parseUserID(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, errors.New("invalid sub")
	}
}

func parseInt(v interface{}) (int, error) {
	switch t := v.(type) {
	case float64:
		return int(t), nil
	case int:
		return t, nil
	case string:
		i64, err := strconv.ParseInt(t, 10, 32)
		if err != nil {
			return 0, err
		}
		return int(i64), nil
	default:
		return 0, errors.New("invalid int")
	}
}
