package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/abdusco/linkhub/internal/auth"
	"github.com/abdusco/linkhub/internal/cache"
	"github.com/abdusco/linkhub/internal/clicklog"
	"github.com/abdusco/linkhub/internal/db"
	"github.com/abdusco/linkhub/internal/handler"
	"github.com/abdusco/linkhub/internal/logger"
	"github.com/abdusco/linkhub/internal/metrics"
	"github.com/abdusco/linkhub/internal/redirect"
	"github.com/abdusco/linkhub/internal/render"
	"github.com/abdusco/linkhub/internal/repo"
	"github.com/abdusco/linkhub/web"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

type Config struct {
	Host          string
	Port          string
	DBPath        string
	AdminPassword string `json:"-"`
	JWTSecret     string `json:"-"`
	LogLevel      string
	Debug         bool
	LandingURL    string

	RedisAddr     string
	RedisPassword string `json:"-"`
	RedisDB       int
	LinkCacheTTL  time.Duration

	ClickQueueSize int
	ClickWorkers   int
}

func newConfigFromEnv() (Config, error) {
	cfg := Config{
		Host:          cmp.Or(os.Getenv("HOST"), "localhost"),
		Port:          cmp.Or(os.Getenv("PORT"), "8080"),
		DBPath:        cmp.Or(os.Getenv("DB_PATH"), "linkhub.db"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		LogLevel:      cmp.Or(os.Getenv("LOG_LEVEL"), "info"),
		Debug:         os.Getenv("DEBUG") == "1",
		LandingURL:    cmp.Or(os.Getenv("LANDING_URL"), "/"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}

	var err error
	if cfg.RedisDB, err = intFromEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.ClickQueueSize, err = intFromEnv("CLICK_QUEUE_SIZE", clicklog.DefaultQueueSize); err != nil {
		return Config{}, err
	}
	if cfg.ClickWorkers, err = intFromEnv("CLICK_WORKERS", clicklog.DefaultWorkers); err != nil {
		return Config{}, err
	}

	cfg.LinkCacheTTL = cache.DefaultTTL
	if raw := os.Getenv("LINK_CACHE_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LINK_CACHE_TTL %q: %w", raw, err)
		}
		cfg.LinkCacheTTL = ttl
	}

	if cfg.AdminPassword == "" {
		cfg.AdminPassword = "admin"
		log.Warn().Msg("using default admin password - set ADMIN_PASSWORD for production")
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = cfg.AdminPassword
		log.Warn().Msg("using ADMIN_PASSWORD as JWT_SECRET - set JWT_SECRET for production")
	}

	return cfg, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	cfg, err := newConfigFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse configuration from environment")
	}

	if err := logger.Setup(cfg.LogLevel, cfg.Debug); err != nil {
		log.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("failed to parse log level")
	}

	log.Info().
		Interface("config", cfg).
		Msg("current configuration")

	ctx := context.Background()
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("application error")
	}
}

func run(ctx context.Context, cfg Config) error {
	log.Info().
		Str("version", version).
		Str("build_time", buildTime).
		Msg("starting application")

	dbInstance, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbInstance.Close()

	linksRepo := repo.NewLinksRepo(dbInstance)
	clicksRepo := repo.NewClicksRepo(dbInstance)
	domainsRepo := repo.NewDomainsRepo(dbInstance)
	bioRepo := repo.NewBioRepo(dbInstance)

	var gateway redirect.LinkGateway = linksRepo
	var invalidator handler.LinkInvalidator
	if cfg.RedisAddr != "" {
		client := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, lookups fall back to the database")
		}
		linkCache := cache.NewLinkCache(linksRepo, client, cfg.LinkCacheTTL)
		gateway = linkCache
		invalidator = linkCache
		log.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.LinkCacheTTL).Msg("link cache enabled")
	}

	recorder := clicklog.NewRecorder(clicksRepo, cfg.ClickQueueSize, cfg.ClickWorkers)
	recorder.Start()
	defer recorder.Close()

	renderer, err := render.NewRenderer(web.FS)
	if err != nil {
		return err
	}

	e := newServer(serverDeps{
		resolver:      redirect.NewResolver(gateway, recorder, cfg.LandingURL),
		authenticator: auth.NewAuthenticator(cfg.AdminPassword, cfg.JWTSecret),
		renderer:      renderer,
		linksRepo:     linksRepo,
		clicksRepo:    clicksRepo,
		domainsRepo:   domainsRepo,
		bioRepo:       bioRepo,
		invalidator:   invalidator,
	})
	defer e.Close()

	log.Info().Str("address", cfg.Port).Msg("server starting")

	// Run server and handle graceful shutdown
	runServer(ctx, e, cfg.Port)

	return nil
}

type serverDeps struct {
	resolver      *redirect.Resolver
	authenticator *auth.Authenticator
	renderer      echo.Renderer
	linksRepo     *repo.LinksRepo
	clicksRepo    *repo.ClicksRepo
	domainsRepo   *repo.DomainsRepo
	bioRepo       *repo.BioRepo
	invalidator   handler.LinkInvalidator
}

func newServer(deps serverDeps) *echo.Echo {
	e := echo.New()

	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = customErrorHandler
	e.Renderer = deps.renderer
	e.Validator = handler.NewValidator()

	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	authHandler := handler.NewAuthHandler(deps.authenticator)
	e.POST("/login", authHandler.Login)
	e.GET("/logout", authHandler.Logout)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api")
	api.GET("/auth/check", authHandler.Check)

	authMiddleware := auth.NewAuthMiddleware(deps.authenticator)
	admin := api.Group("", authMiddleware)

	domainHandler := handler.NewDomainHandler(deps.domainsRepo, deps.linksRepo, deps.invalidator)
	admin.GET("/domains", domainHandler.ListDomains)
	admin.POST("/domains", domainHandler.CreateDomain)
	admin.DELETE("/domains/:id", domainHandler.DeleteDomain)

	linkHandler := handler.NewLinkHandler(deps.linksRepo, deps.invalidator)
	admin.GET("/links", linkHandler.ListLinks)
	admin.POST("/links", linkHandler.CreateLink)
	admin.GET("/links/:id", linkHandler.GetLink)
	admin.PUT("/links/:id", linkHandler.UpdateLink)
	admin.DELETE("/links/:id", linkHandler.DeleteLink)
	admin.GET("/links/:id/targets", linkHandler.ListTargets)
	admin.POST("/links/:id/targets", linkHandler.CreateTarget)
	admin.PUT("/links/:id/targets/:targetId", linkHandler.UpdateTarget)
	admin.DELETE("/links/:id/targets/:targetId", linkHandler.DeleteTarget)
	admin.GET("/links/:id/utm-rules", linkHandler.ListRules)
	admin.POST("/links/:id/utm-rules", linkHandler.CreateRule)
	admin.DELETE("/links/:id/utm-rules/:ruleId", linkHandler.DeleteRule)

	bioHandler := handler.NewBioHandler(deps.bioRepo)
	admin.GET("/bio", bioHandler.ListPages)
	admin.POST("/bio", bioHandler.CreatePage)
	admin.GET("/bio/:id", bioHandler.GetPage)
	admin.PUT("/bio/:id", bioHandler.UpdatePage)
	admin.DELETE("/bio/:id", bioHandler.DeletePage)
	admin.POST("/bio/:id/links", bioHandler.CreateLink)
	admin.PUT("/bio/:id/links", bioHandler.ReorderLinks)
	admin.PUT("/bio/:id/links/:linkId", bioHandler.UpdateLink)
	admin.DELETE("/bio/:id/links/:linkId", bioHandler.DeleteLink)

	clickHandler := handler.NewClickHandler(deps.clicksRepo)
	admin.GET("/clicks", clickHandler.Stats)
	admin.GET("/analytics", clickHandler.Analytics)

	qrHandler := handler.NewQrHandler(deps.linksRepo)
	admin.GET("/qr/:linkId", qrHandler.Image)
	admin.GET("/qr/:linkId/settings", qrHandler.GetSettings)
	admin.PUT("/qr/:linkId", qrHandler.SaveSettings)

	redirectHandler := handler.NewRedirectHandler(deps.resolver, deps.bioRepo)
	e.GET("/", redirectHandler.Landing)

	// Catch-all for short links and bio pages (matched after every static route)
	e.GET("/*", redirectHandler.Serve)

	return e
}

func runServer(ctx context.Context, e *echo.Echo, port string) {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(":" + port)
	}()

	// Wait for context cancellation (Ctrl+C or SIGTERM)
	<-ctx.Done()

	log.Info().Msg("shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during graceful shutdown")
	}

	if err := <-serverErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server error")
	}

	log.Info().Msg("server stopped")
}

func customErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := "internal server error"
	isAPICall := strings.HasPrefix(c.Request().URL.Path, "/api/")

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		}
	}

	if code >= http.StatusInternalServerError {
		log.Error().
			Int("code", code).
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Err(err).
			Msg("http error")
	}

	if c.Response().Committed {
		return
	}

	if !isAPICall {
		c.String(code, message)
		return
	}

	c.JSON(code, map[string]any{
		"error": message,
	})
}
