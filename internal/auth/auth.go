package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"whatsapp-bot/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const profileKey = "profile"

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Verifier checks access tokens issued by the external auth provider.
// Tokens are HS256 and carry the profile id in "sub".
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Subject validates tokenString and returns its subject.
func (v *Verifier) Subject(tokenString string) (string, error) {
	if len(v.secret) == 0 {
		return "", fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return sub, nil
}

// tokenFromRequest reads the bearer token, falling back to the access_token
// query parameter that browsers use for websocket upgrades.
func tokenFromRequest(c *gin.Context) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			return "", fmt.Errorf("%w: invalid authorization header format", ErrMissingToken)
		}
		return tokenString, nil
	}
	if tokenString := c.Query("access_token"); tokenString != "" {
		return tokenString, nil
	}
	return "", ErrMissingToken
}

// Middleware authenticates the request and loads the caller's profile.
func Middleware(db *gorm.DB, verifier *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := tokenFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		sub, err := verifier.Subject(tokenString)
		if err != nil {
			log.Debug().Err(err).Msg("rejected access token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		var profile models.Profile
		if err := db.WithContext(c.Request.Context()).Where("id = ?", sub).Take(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Profile not found"})
				return
			}
			log.Error().Err(err).Str("profile_id", sub).Msg("failed to load profile")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if profile.Status != "active" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Profile is not active"})
			return
		}

		c.Set(profileKey, &profile)
		c.Next()
	}
}

// ProfileFrom returns the profile stored by Middleware.
func ProfileFrom(c *gin.Context) *models.Profile {
	if v, ok := c.Get(profileKey); ok {
		if p, ok := v.(*models.Profile); ok {
			return p
		}
	}
	return nil
}
