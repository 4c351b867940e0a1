package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leettrack/internal/auth"
	"leettrack/internal/cloudinary"
	"leettrack/internal/config"
	"leettrack/internal/events"
	"leettrack/internal/httpmiddleware"
	"leettrack/internal/store"
	"leettrack/internal/tracker"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	redisClient := store.NewRedis(cfg.RedisAddr)

	var db *store.DB
	var st tracker.Store
	if cfg.StoreBackend == "memory" {
		st = tracker.NewMemoryStore()
		log.Println("using in-memory store")
	} else {
		var err error
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		st = tracker.NewPostgresStore(db.Client)
	}

	var feed events.Feed
	if cfg.FeedBackend == "memory" {
		feed = events.NewMemoryFeed()
	} else {
		feed = events.NewRedisFeed(redisClient.Client, "leettrack:changes")
	}

	svc := tracker.NewService(st, feed, nil)

	cdn := cloudinary.New(cfg.CloudinaryCloud, cfg.CloudinaryKey, cfg.CloudinarySecret)
	if cdn.Configured() {
		log.Println("Cloudinary configured:", cfg.CloudinaryCloud)
	} else {
		log.Println("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db == nil || db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/signup", func(c *gin.Context) {
		var req struct {
			Email    string  `json:"email" binding:"required"`
			Password string  `json:"password" binding:"required"`
			Name     *string `json:"name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		u, err := svc.SignUp(c.Request.Context(), req.Email, req.Password, req.Name)
		if err != nil {
			if errors.Is(err, tracker.ErrEmailTaken) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		issueTokens(c, cfg, u, http.StatusCreated)
	})

	r.POST("/v1/auth/login", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		u, err := svc.Authenticate(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, tracker.ErrInvalidCredentials) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}
		issueTokens(c, cfg, u, http.StatusOK)
	})

	student := r.Group("/v1", auth.RequireUser(cfg.JWTSigningKey, cfg.JWTIssuer))

	student.POST("/uploads/sign", func(c *gin.Context) {
		var req struct {
			Folder string `json:"folder"`
		}
		_ = c.ShouldBindJSON(&req)
		claims, _ := auth.FromContext(c)
		folder := req.Folder
		if folder == "" {
			folder = cfg.CloudinaryFolder + "/" + claims.UserID
		}
		sig, err := cdn.SignUpload(folder)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "missing Cloudinary credentials"})
			return
		}
		c.JSON(http.StatusOK, sig)
	})

	student.POST("/submissions", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "screenshot file required"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
			return
		}

		if !cdn.Configured() {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "missing Cloudinary credentials"})
			return
		}
		folder := cfg.CloudinaryFolder + "/" + claims.UserID
		result, err := cdn.UploadBytes(data, header.Filename, folder)
		if err != nil {
			log.Printf("cloudinary upload failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
			return
		}

		sub, err := svc.RecordSubmission(c.Request.Context(), claims.UserID, result.SecureURL)
		if err != nil {
			if errors.Is(err, tracker.ErrDuplicateSubmission) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, sub)
	})

	student.GET("/submissions", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		subs, err := svc.Submissions(c.Request.Context(), claims.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"submissions": subs})
	})

	student.GET("/summary", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		sum, err := svc.Summarize(c.Request.Context(), claims.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, sum)
	})

	student.POST("/leaves", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		var req struct {
			DateKey     string `json:"date_key"`
			Reason      string `json:"reason"`
			SkipNextDay bool   `json:"skip_next_day"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		l, err := svc.RequestLeave(c.Request.Context(), claims.UserID, req.DateKey, req.Reason, req.SkipNextDay)
		if err != nil {
			if errors.Is(err, tracker.ErrNoLeaveBalance) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, l)
	})

	student.GET("/leaves", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		leaves, err := svc.Leaves(c.Request.Context(), claims.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"leaves": leaves})
	})

	admin := r.Group("/v1/admin", auth.RequireUser(cfg.JWTSigningKey, cfg.JWTIssuer), auth.RequireAdmin())

	admin.GET("/students", func(c *gin.Context) {
		rows, err := svc.Overview(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"students": rows})
	})

	admin.GET("/students/:id", func(c *gin.Context) {
		detail, err := svc.Detail(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, tracker.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, detail)
	})

	admin.POST("/submissions/:id/status", func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		err := svc.ResolveSubmission(c.Request.Context(), c.Param("id"), tracker.SubmissionStatus(req.Status))
		writeResolveResult(c, err)
	})

	admin.POST("/leaves/:id/status", func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		err := svc.ResolveLeave(c.Request.Context(), c.Param("id"), tracker.LeaveStatus(req.Status))
		writeResolveResult(c, err)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func issueTokens(c *gin.Context, cfg config.App, u tracker.User, status int) {
	tokens, err := auth.Issue(u.ID, u.Email, string(u.Role), cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(status, gin.H{
		"user":          u,
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

func writeResolveResult(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case errors.Is(err, tracker.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, tracker.ErrNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
