package handler

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"teambot/discord"
	"teambot/errs"
	"teambot/jwt"
	"teambot/log"
)

const (
	headerSignature = "X-Signature-Ed25519"
	headerTimestamp = "X-Signature-Timestamp"

	maxInteractionBody = 1 << 20
)

type EngineConfig struct {
	PublicKey ed25519.PublicKey
	// AdminKey signs admin tokens. The admin routes are not mounted without it.
	AdminKey []byte
}

// ParsePublicKey decodes the hex application key shown in the developer portal.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, errors.New("invalid public key length")
	}
	return ed25519.PublicKey(b), nil
}

func NewEngine(router *Router, teams Teams, cfg EngineConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), accessLog())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/interactions", verifySignature(cfg.PublicKey), func(c *gin.Context) {
		var i discord.Interaction
		if err := json.Unmarshal(c.MustGet("body").([]byte), &i); err != nil {
			c.String(http.StatusBadRequest, "malformed interaction")
			return
		}
		c.JSON(http.StatusOK, router.Handle(c.Request.Context(), &i))
	})

	if len(cfg.AdminKey) > 0 {
		admin := r.Group("/admin", requireAdmin(cfg.AdminKey))
		admin.GET("/teams", func(c *gin.Context) {
			_, snap, err := teams.Teams(c.Request.Context())
			if err != nil {
				log.Logger.Error("admin snapshot failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": genericFailure})
				return
			}
			c.JSON(http.StatusOK, snap)
		})
		admin.GET("/teams/:name", func(c *gin.Context) {
			roster, err := teams.ListRoster(c.Request.Context(), c.Param("name"))
			switch {
			case errors.Is(err, errs.ErrTeamNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case err != nil:
				log.Logger.Error("admin roster failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": genericFailure})
			default:
				c.JSON(http.StatusOK, roster)
			}
		})
	}

	return r
}

// verifySignature rejects requests not signed by the platform. The verified
// body is stored under "body".
func verifySignature(key ed25519.PublicKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		sig, err := hex.DecodeString(c.GetHeader(headerSignature))
		ts := c.GetHeader(headerTimestamp)
		if err != nil || len(sig) != ed25519.SignatureSize || ts == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid request signature"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInteractionBody))
		if err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		if !ed25519.Verify(key, append([]byte(ts), body...), sig) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid request signature"})
			return
		}

		c.Set("body", body)
		c.Next()
	}
}

func requireAdmin(key []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errs.ErrUnauthorized.Error()})
			return
		}

		claims, err := jwt.ValidateAdminToken(token, key)
		switch {
		case errors.Is(err, errs.ErrNotAdmin):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errs.ErrUnauthorized.Error()})
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
