// Package handlers exposes single-image verification over HTTP. The batch
// engine stays a pure in-process library; this is just another front-end
// around it.
package handlers

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wanghaisheng/brand-qr-checker-verify/internal/cache"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/logging"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/preprocess"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/verify"
)

// MaxUploadSize bounds multipart uploads.
const MaxUploadSize = 16 << 20

const verdictTTL = time.Hour

// Engine is the per-image sweep the handler drives. *verify.Sequencer
// satisfies it.
type Engine interface {
	Verify(ctx context.Context, taskID string, req *verify.Request) verify.Outcome
}

// Server holds the verification dependencies for the HTTP front-end.
type Server struct {
	engine       Engine
	cache        cache.Cache
	candidates   []preprocess.Spec
	resizeTarget int
	logger       *zap.Logger
}

type cachedVerdict struct {
	Scannable bool   `json:"scannable"`
	Text      string `json:"text"`
	Hash      string `json:"sha1_hash"`
}

// NewServer constructs the handler set. A nil cache disables verdict
// caching.
func NewServer(engine Engine, verdictCache cache.Cache, candidates []preprocess.Spec, resizeTarget int, logger *zap.Logger) *Server {
	return &Server{
		engine:       engine,
		cache:        verdictCache,
		candidates:   candidates,
		resizeTarget: resizeTarget,
		logger:       logger.Named("http"),
	}
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func (s *Server) RegisterRoutes(router *gin.Engine, middleware ...gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	group := router.Group("/", middleware...)
	group.POST("/verify", s.verifyImage)
}

func (s *Server) verifyImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return
	}

	requestID := uuid.NewString()
	opLogger := logging.WithOperation(s.logger, "http.verify_image", requestID)

	hash := sha1.Sum(data)
	hashHex := hex.EncodeToString(hash[:])

	if verdict, ok := s.cachedVerdict(c.Request.Context(), opLogger, hashHex); ok {
		c.JSON(http.StatusOK, gin.H{
			"request_id": requestID,
			"scannable":  verdict.Scannable,
			"text":       verdict.Text,
			"cached":     true,
		})
		return
	}

	outcome := s.engine.Verify(c.Request.Context(), requestID, &verify.Request{
		Source:       data,
		ResizeTarget: s.resizeTarget,
		Candidates:   s.candidates,
	})

	s.storeVerdict(c.Request.Context(), opLogger, hashHex, outcome)

	c.JSON(http.StatusOK, gin.H{
		"request_id": requestID,
		"scannable":  outcome.Decoded,
		"text":       outcome.Text,
		"cached":     false,
	})
}

func (s *Server) cachedVerdict(ctx context.Context, opLogger *zap.Logger, hashHex string) (cachedVerdict, bool) {
	if s.cache == nil {
		return cachedVerdict{}, false
	}
	raw, err := s.cache.Get(ctx, verdictKey(hashHex))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			opLogger.Warn("failed to read verdict cache", zap.Error(err))
		}
		return cachedVerdict{}, false
	}
	var verdict cachedVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		opLogger.Warn("failed to decode cached verdict", zap.Error(err))
		return cachedVerdict{}, false
	}
	return verdict, true
}

func (s *Server) storeVerdict(ctx context.Context, opLogger *zap.Logger, hashHex string, outcome verify.Outcome) {
	if s.cache == nil {
		return
	}
	serialized, err := json.Marshal(cachedVerdict{
		Scannable: outcome.Decoded,
		Text:      outcome.Text,
		Hash:      hashHex,
	})
	if err != nil {
		opLogger.Error("failed to serialize verdict", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, verdictKey(hashHex), string(serialized), verdictTTL); err != nil {
		opLogger.Warn("failed to cache verdict", zap.Error(err))
	}
}

func verdictKey(hashHex string) string {
	return "verdict:" + hashHex
}
