package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/seenuaaa/casmi/internal/adapters/signal"
	"github.com/seenuaaa/casmi/internal/app"
	"github.com/seenuaaa/casmi/internal/config"
	"github.com/seenuaaa/casmi/internal/pkg/token"
)

// ClientTokenMiddleware gives every client a stable opaque token via
// cookie. Guests keep it for the cookie lifetime; verified users get it
// overridden by AuthMiddleware.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, _ := c.Cookie("ct")
		if t == "" {
			t = uuid.NewString()
			c.SetCookie("ct", t, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", t)
		c.Next()
	}
}

// AuthMiddleware verifies an identity token when one is presented. An
// absent or invalid token is not an error: the connection continues as a
// guest, since room access only requires presenting a room and user id.
func AuthMiddleware(verifier *token.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("token")
		if raw == "" {
			raw, _ = c.Cookie("token")
		}
		if raw != "" && verifier != nil {
			claims, err := verifier.Verify(raw)
			if err != nil {
				log.Debug().Err(err).Str("module", "adapters.http").Msg("token rejected, continuing as guest")
			} else if claims.Subject != "" {
				c.Set("client_token", claims.Subject)
			}
		}
		c.Next()
	}
}

func SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	engine *app.Engine,
	ctl *signal.Controller,
	verifier *token.Verifier,
) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("CasmiSessions", store))
	r.Use(ClientTokenMiddleware())
	r.Use(AuthMiddleware(verifier))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	api.GET("/rooms/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": engine.Rooms()})
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	return r
}
