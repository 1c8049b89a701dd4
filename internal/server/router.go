// Package server exposes the sync endpoints: token issuance, whole-document
// fetch and push, and a server-sent-events feed that tells other devices a
// newer document landed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/gradebook/internal/store"
)

const (
	accountIDContextKey = "gradebook_account_id"
	heartbeatInterval   = 25 * time.Second
)

var (
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingDocumentStore = errors.New("document store dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

type TokenManager interface {
	IssueToken(ctx context.Context, accountID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

type Dependencies struct {
	TokenManager TokenManager
	Documents    *store.DocumentStore
	Realtime     *RealtimeDispatcher
	Logger       *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Documents == nil {
		return nil, errMissingDocumentStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:    deps.TokenManager,
		documents: deps.Documents,
		realtime:  realtime,
		logger:    logger,
	}

	router.POST("/auth/token", handler.handleIssueToken)

	protected := router.Group("/v1")
	protected.Use(handler.authorizeRequest)
	protected.GET("/document", handler.handleFetchDocument)
	protected.PUT("/document", handler.handlePushDocument)
	protected.GET("/events", handler.handleEvents)

	return router, nil
}

type httpHandler struct {
	tokens    TokenManager
	documents *store.DocumentStore
	realtime  *RealtimeDispatcher
	logger    *zap.Logger
}

type tokenRequestPayload struct {
	AccountID string `json:"account_id"`
}

type tokenResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleIssueToken(c *gin.Context) {
	var request tokenRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.AccountID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), strings.TrimSpace(request.AccountID))
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, tokenResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

type documentResponsePayload struct {
	Document    json.RawMessage `json:"document"`
	UpdatedAtMs int64           `json:"updated_at_ms"`
}

func (h *httpHandler) handleFetchDocument(c *gin.Context) {
	accountID := c.GetString(accountIDContextKey)
	if accountID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	payload, updatedAtMs, found, err := h.documents.LoadKey(c.Request.Context(), accountID)
	if err != nil {
		h.logger.Error("failed to load document", zap.Error(err), zap.String("account_id", accountID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch_failed"})
		return
	}
	if !found {
		c.JSON(http.StatusOK, documentResponsePayload{Document: nil})
		return
	}
	c.JSON(http.StatusOK, documentResponsePayload{
		Document:    json.RawMessage(payload),
		UpdatedAtMs: updatedAtMs,
	})
}

type pushRequestPayload struct {
	Document json.RawMessage `json:"document"`
}

type pushResponsePayload struct {
	Accepted    bool  `json:"accepted"`
	UpdatedAtMs int64 `json:"updated_at_ms"`
}

func (h *httpHandler) handlePushDocument(c *gin.Context) {
	accountID := c.GetString(accountIDContextKey)
	if accountID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request pushRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || len(request.Document) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	var stamp struct {
		UpdatedAtMs int64 `json:"_updatedAt"`
	}
	if err := json.Unmarshal(request.Document, &stamp); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_document"})
		return
	}

	_, storedAtMs, found, err := h.documents.LoadKey(c.Request.Context(), accountID)
	if err != nil {
		h.logger.Error("failed to load stored document", zap.Error(err), zap.String("account_id", accountID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "push_failed"})
		return
	}
	// The stored copy keeps its place unless the incoming stamp is strictly
	// newer. The client resolves this the same way, so both sides converge.
	if found && stamp.UpdatedAtMs <= storedAtMs {
		c.JSON(http.StatusOK, pushResponsePayload{Accepted: false, UpdatedAtMs: storedAtMs})
		return
	}

	if err := h.documents.SaveKey(c.Request.Context(), accountID, string(request.Document), stamp.UpdatedAtMs); err != nil {
		h.logger.Error("failed to store document", zap.Error(err), zap.String("account_id", accountID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "push_failed"})
		return
	}

	h.realtime.Publish(RealtimeMessage{
		AccountID:   accountID,
		EventType:   RealtimeEventDocumentChanged,
		UpdatedAtMs: stamp.UpdatedAtMs,
		Timestamp:   time.Now().UTC(),
	})

	c.JSON(http.StatusOK, pushResponsePayload{Accepted: true, UpdatedAtMs: stamp.UpdatedAtMs})
}

type realtimeEventPayload struct {
	UpdatedAtMs int64  `json:"updatedAtMs"`
	Source      string `json:"source"`
}

func (h *httpHandler) handleEvents(c *gin.Context) {
	accountID := c.GetString(accountIDContextKey)
	if accountID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	// Register before the response goes out so a push racing the stream
	// handshake still lands in the buffer.
	stream, cancel := h.realtime.Subscribe(c.Request.Context(), accountID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, realtimeEventPayload{
				UpdatedAtMs: message.UpdatedAtMs,
				Source:      realtimeSourceBackend,
			})
			return true
		case <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{"ts": time.Now().UTC().Unix()})
			return true
		}
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	accountID, err := h.tokens.ValidateToken(token)
	if err != nil {
		// Expired tokens are routine client churn, not a fault worth a warning.
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(accountIDContextKey, accountID)
	c.Next()
}

// bearerToken pulls the token from the Authorization header, falling back to
// the access_token query parameter because EventSource cannot set headers.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(c.Query("access_token"))
}
