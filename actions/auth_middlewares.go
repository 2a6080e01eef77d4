package actions

import (
	"fmt"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"gitlab.com/tng-miniapp/ledger_api/featureflags"
	"gitlab.com/tng-miniapp/ledger_api/logger"
)

// ParseToken from JWT to Claims
func ParseToken(tokenString string, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("Unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if token == nil {
		return jwt.MapClaims{}, fmt.Errorf("Invalid token")
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return jwt.MapClaims{}, err
}

// RestrictService only lets through the requests carrying a service token issued for the ledger
func (actions *Actions) RestrictService() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.GetLogger(c)
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			log.Warn().Str("section", "restrict").Msg("Missing service token")
			abortWithError(c, Unauthorized, "Unauthorized")
			return
		}

		claims, err := ParseToken(token, actions.jwtTokenSecret)
		if err != nil {
			_ = c.Error(err)
			log.Warn().Err(err).Str("section", "restrict:token").Msg("Invalid token received")
			abortWithError(c, Unauthorized, "Unauthorized")
			return
		}
		if !claims.VerifyAudience(actions.serviceAudience, true) {
			log.Warn().Str("section", "restrict:token").Interface("aud", claims["aud"]).Msg("Token issued for another audience")
			abortWithError(c, AccessDenied, "Access denied")
			return
		}
		caller, _ := claims["sub"].(string)
		if caller == "" {
			log.Warn().Str("section", "restrict:token").Msg("Unable to load caller from token 'sub' claim")
			abortWithError(c, AccessDenied, "Access denied")
			return
		}

		c.Set(logger.ServiceKey, caller)
		c.Set(logger.LoggerKey, log.With().Str("caller", caller).Logger())
		c.Next()
	}
}

// CheckMaintenanceMode rejects the mutating requests while the ledger is in maintenance
func (actions *Actions) CheckMaintenanceMode() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != "GET" && featureflags.IsEnabled(featureflags.MaintenanceMode) {
			abortWithError(c, ServiceUnavailable, "The ledger is under maintenance. Please try later.")
			return
		}
		c.Next()
	}
}

// CheckFeature rejects the request when the given kill switch is on
func (actions *Actions) CheckFeature(flag string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if featureflags.IsEnabled(flag) {
			abortWithError(c, ServiceUnavailable, "This operation is temporarily disabled")
			return
		}
		c.Next()
	}
}
