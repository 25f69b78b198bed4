package cloud

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/latoulicious/rpsync/pkg/logging"
)

const maxBodyBytes = 8 << 20

// APIPrefix is where NewHandler mounts the profile routes
const APIPrefix = "/api"

type handler struct {
	gateway Gateway
	token   string
	logger  logging.Logger
}

// NewHandler exposes gw over the REST API consumed by HTTPClient. Routes live
// under /api/profiles. When token is non-empty every request must carry it as
// a bearer token
func NewHandler(gw Gateway, token string, logger logging.Logger) http.Handler {
	h := &handler{gateway: gw, token: token, logger: logger.WithPipeline("http")}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.CustomRecovery(h.recovered), bodyLimit(maxBodyBytes))

	api := router.Group(APIPrefix)
	if token != "" {
		api.Use(h.authenticate())
	}

	profiles := api.Group("/profiles")
	{
		profiles.GET("", h.listProfiles)
		profiles.POST("", h.createProfile)
		profiles.GET("/:id", h.getProfile)
		profiles.PUT("/:id", h.updateProfile)
		profiles.DELETE("/:id", h.deleteProfile)
		profiles.GET("/:id/versions", h.getVersions)
		profiles.POST("/:id/rollback", h.rollback)
	}

	return router
}

func bodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func (h *handler) authenticate() gin.HandlerFunc {
	want := []byte("Bearer " + h.token)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			h.abort(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func (h *handler) recovered(c *gin.Context, v any) {
	h.abort(c, fmt.Errorf("panic: %v", v))
}

func (h *handler) listProfiles(c *gin.Context) {
	profiles, err := h.gateway.ListProfiles(c.Request.Context())
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse{Profiles: profiles})
}

func (h *handler) createProfile(c *gin.Context) {
	var data ProfileData
	if err := bindBody(c, &data); err != nil {
		h.abort(c, err)
		return
	}

	profile, err := h.gateway.CreateProfile(c.Request.Context(), data)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

func (h *handler) getProfile(c *gin.Context) {
	profile, err := h.gateway.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *handler) updateProfile(c *gin.Context) {
	id := c.Param("id")

	var data ProfileData
	if err := bindBody(c, &data); err != nil {
		h.abort(c, err)
		return
	}
	data.ID = id

	profile, err := h.gateway.UpdateProfile(c.Request.Context(), id, data)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *handler) deleteProfile(c *gin.Context) {
	if err := h.gateway.DeleteProfile(c.Request.Context(), c.Param("id")); err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "profile deleted"})
}

func (h *handler) getVersions(c *gin.Context) {
	versions, err := h.gateway.GetVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, versionsResponse{Versions: versions})
}

func (h *handler) rollback(c *gin.Context) {
	var req rollbackRequest
	if err := bindBody(c, &req); err != nil {
		h.abort(c, err)
		return
	}
	if req.Version <= 0 {
		h.abort(c, fmt.Errorf("%w: version must be positive", ErrInvalidProfile))
		return
	}

	profile, err := h.gateway.Rollback(c.Request.Context(), c.Param("id"), req.Version)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func bindBody(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return nil
}

// abort ends the request with the status statusFor picks for err
func (h *handler) abort(c *gin.Context, err error) {
	status := statusFor(err)
	fields := map[string]interface{}{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
		"status": status,
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", err, fields)
		msg = http.StatusText(status)
	} else {
		h.logger.Debug("Request rejected", fields)
	}

	// the sentinel text is enough for clients; wrapped detail stays in the log
	for _, sentinel := range []error{ErrNotFound, ErrVersionNotFound, ErrAlreadyExists, ErrUnauthorized} {
		if errors.Is(err, sentinel) {
			msg = sentinel.Error()
			break
		}
	}

	c.AbortWithStatusJSON(status, errorResponse{Error: strings.TrimSpace(msg)})
}
