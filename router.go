package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/botconsulting/botgpt/pkg/cache"
	"github.com/botconsulting/botgpt/pkg/config"
	"github.com/botconsulting/botgpt/pkg/handler"
	"github.com/botconsulting/botgpt/pkg/service"
	"github.com/botconsulting/botgpt/pkg/utils"
	"github.com/cloudwego/eino/components/model"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	ginEngine *gin.Engine
	cfg       *config.AppConfig
	db        *gorm.DB
	chatModel model.BaseChatModel
	logger    *slog.Logger
	port      int
	done      chan struct{}
}

func NewServer(cfg *config.AppConfig, database *gorm.DB, chatModel model.BaseChatModel) *Server {
	if cfg.LogLevel() == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())
	if gin.IsDebugging() {
		ginEngine.Use(gin.Logger())
	}

	// CORS: browser clients are only served from localhost origins.
	ginEngine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" {
			if !isLocalOrigin(origin) {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, "+handler.UserEmailHeader)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	server := &Server{
		ginEngine: ginEngine,
		cfg:       cfg,
		db:        database,
		chatModel: chatModel,
		logger:    utils.GetLogger(),
		done:      make(chan struct{}),
	}

	server.SetupRoutes()

	return server
}

func isLocalOrigin(origin string) bool {
	for _, prefix := range []string{
		"http://localhost", "http://127.0.0.1",
		"https://localhost", "https://127.0.0.1",
	} {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

func (s *Server) SetupRoutes() {
	store := service.NewChatStore(s.db)
	conversationCache := cache.New(s.cfg.CacheTTL())

	chatService := service.NewChatService(store, conversationCache, s.chatModel, service.ChatConfig{
		WindowSize:    s.cfg.WindowSize(),
		RetrievalTopK: s.cfg.RetrievalTopK(),
		Temperature:   s.cfg.LLM.ReplyTemperature(),
		MaxTokens:     s.cfg.LLM.ReplyMaxTokens(),
		Summarizer: service.SummarizerConfig{
			Temperature: s.cfg.LLM.SummaryTemp(),
			MaxTokens:   s.cfg.LLM.SummaryTokens(),
		},
	})
	documentService := service.NewDocumentService(store, chatService)

	root := s.ginEngine.Group("")
	handler.NewHealthHandler(s.db).RegisterRoutes(root)
	handler.NewChatHandler(chatService, documentService).RegisterRoutes(root)
	handler.NewDocumentHandler(documentService).RegisterRoutes(root)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

// Port returns the bound port once Start has succeeded.
func (s *Server) Port() int {
	return s.port
}

// Start binds the configured address and serves in the background. Cancelling
// ctx shuts the server down; Wait blocks until that has finished.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host(), fmt.Sprint(s.cfg.Port()))
	srv := &http.Server{Addr: addr, Handler: s.ginEngine}

	// Attempt to listen on port first; if occupied return error immediately
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	} else {
		s.port = s.cfg.Port()
	}

	s.logger.Info("HTTP server listening", "addr", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	go func() {
		defer close(s.done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP server shutdown", "error", err)
		}
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	default:
	}
	return nil
}

// Wait blocks until a started server has shut down.
func (s *Server) Wait() {
	<-s.done
}
