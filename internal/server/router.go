package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/keyline-id/keyline/internal/identity"
)

var errMissingIdentityService = errors.New("identity service dependency required")

// Dependencies wires the HTTP layer to the identity core.
type Dependencies struct {
	IdentityService *identity.Service
	Logger          *zap.Logger
	CORSOrigins     []string
}

// NewHTTPHandler validates dependencies and builds the API router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.IdentityService == nil {
		return nil, errMissingIdentityService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		identityService: deps.IdentityService,
		logger:          logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/users/:id/identity", handler.handleDescribeUser)
	router.POST("/identities/resolve", handler.handleResolveBatch)

	return router, nil
}

type httpHandler struct {
	identityService *identity.Service
	logger          *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleDescribeUser(c *gin.Context) {
	descriptor, err := h.identityService.DescribeUser(c.Request.Context(), c.Param("id"))
	if errors.Is(err, identity.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
		return
	}
	if errors.Is(err, identity.ErrInvalidInternalID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_internal_id"})
		return
	}
	if err != nil {
		h.logger.Error("identity projection failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "projection_failed", "code": serviceErrorCode(err)})
		return
	}

	c.JSON(http.StatusOK, descriptor)
}

type resolveRequestPayload struct {
	Entries []resolveEntryPayload `json:"entries"`
}

type resolveEntryPayload struct {
	ExternalID string `json:"external_id"`
	AuthMethod string `json:"auth_method"`
}

type resolveResponsePayload struct {
	Results     []string              `json:"results"`
	Resolutions []resolutionPayload   `json:"resolutions"`
	Diagnostics []identity.Diagnostic `json:"diagnostics"`
}

type resolutionPayload struct {
	InternalID string `json:"internal_id"`
	Resolved   bool   `json:"resolved"`
}

func (h *httpHandler) handleResolveBatch(c *gin.Context) {
	var request resolveRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	entries := make([]identity.BatchEntry, 0, len(request.Entries))
	for _, entry := range request.Entries {
		// Absent fields flow through so the resolver can diagnose them
		// positionally; a present but unknown auth method is a caller bug
		// and rejected outright.
		method := identity.AuthMethod("")
		if entry.AuthMethod != "" {
			parsed, err := identity.ParseAuthMethod(entry.AuthMethod)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_auth_method"})
				return
			}
			method = parsed
		}
		entries = append(entries, identity.BatchEntry{
			ExternalID: entry.ExternalID,
			AuthMethod: method,
		})
	}

	result, err := h.identityService.ResolveBatch(c.Request.Context(), entries)
	if err != nil {
		h.logger.Error("batch resolution failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "lookup_failed"})
		return
	}

	response := resolveResponsePayload{
		Results:     result.IDs(),
		Resolutions: make([]resolutionPayload, 0, len(result.Resolutions)),
		Diagnostics: result.Diagnostics,
	}
	for _, resolution := range result.Resolutions {
		response.Resolutions = append(response.Resolutions, resolutionPayload{
			InternalID: resolution.InternalID,
			Resolved:   resolution.Resolved,
		})
	}

	c.JSON(http.StatusOK, response)
}

func serviceErrorCode(err error) string {
	var serviceErr *identity.ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return ""
}
