package middlewares

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/watukazi/authv1/utils"
)

type contextKey string

// UserIDKey carries the authenticated user's id (the token's sub claim)
// through the request context.
const UserIDKey contextKey = "userID"

func GetTokenFromAuthorizationHeader(authHeader string) (string, error) {
	if len(authHeader) == 0 {
		return "", errors.New(utils.MISSING_REQUEST_DATA)
	}
	bearer_token := strings.Split(authHeader, " ")
	if len(bearer_token) < 2 {
		return "", errors.New(utils.MISSING_REQUEST_DATA)
	}
	return bearer_token[1], nil
}

func IsAccessTokenAuthorized(f http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := r.Header.Get("authorization")
		accessTokenString, err := GetTokenFromAuthorizationHeader(authorization)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		claims, err, errMessage := utils.VerifyToken(utils.ACCESS_TYPE, accessTokenString)
		if err != nil {
			// in FE, use the refresh token to get a new access token now
			log.Println(err)
			http.Error(w, errMessage, http.StatusUnauthorized)
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			http.Error(w, utils.JWT_TOKEN_PARSING_ERROR, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), UserIDKey, sub)
		f(w, r.WithContext(ctx))
	}
}
