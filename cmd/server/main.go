package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata" // receipt.timezone must load on minimal images

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/donationcore/internal/config"
	"github.com/jmerrifield20/donationcore/internal/donation/handler"
	"github.com/jmerrifield20/donationcore/internal/donation/render"
	"github.com/jmerrifield20/donationcore/internal/donation/service"
	"github.com/jmerrifield20/donationcore/internal/email"
	"github.com/jmerrifield20/donationcore/internal/health"
	"github.com/jmerrifield20/donationcore/internal/identity"
	"github.com/jmerrifield20/donationcore/internal/razorpay"
	"github.com/jmerrifield20/donationcore/internal/security"
	"github.com/jmerrifield20/donationcore/internal/sms"
	"github.com/jmerrifield20/donationcore/internal/users"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	v := viper.New()
	config.SetDefaults(v)
	found, err := config.ReadFile(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "donationcore: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "donationcore: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log.Development)
	defer logger.Sync() //nolint:errcheck

	if !found {
		logger.Warn("no config file found, using defaults and env vars")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func newLogger(development bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Storage ──────────────────────────────────────────────────────────────
	startCtx, cancelStart := context.WithTimeout(ctx, 30*time.Second)
	st, err := openStores(startCtx, cfg, logger)
	cancelStart()
	if err != nil {
		return err
	}
	defer st.Close()

	// ── Notifiers ────────────────────────────────────────────────────────────
	var smsSender service.Notifier
	switch cfg.SMS.Provider {
	case "twilio":
		tw, err := sms.NewTwilioSender(sms.TwilioConfig{
			AccountSID: cfg.SMS.TwilioAccountSID,
			AuthToken:  cfg.SMS.TwilioAuthToken,
			From:       cfg.SMS.TwilioFrom,
		}, logger)
		if err != nil {
			return fmt.Errorf("twilio sender: %w", err)
		}
		smsSender = tw
		logger.Info("SMS sender: twilio")
	default:
		smsSender = sms.NewNoopSender(logger)
		logger.Warn("SMS sender: noop; OTP codes are written to the log (set sms.provider=twilio in production)")
	}

	var mailer email.Sender
	if cfg.Email.SMTPHost != "" {
		mailer = email.NewSMTPSender(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.SMTPUsername,
			cfg.Email.SMTPPassword,
			cfg.Email.FromAddress,
		)
		logger.Info("SMTP email sender configured", zap.String("host", cfg.Email.SMTPHost))
	} else {
		mailer = email.NewNoopSender(logger)
		logger.Info("email sender: noop (set email.smtp_host to enable SMTP)")
	}

	// ── OTP + sessions ───────────────────────────────────────────────────────
	otp := service.NewOTPManager(st.otp, security.NewHasher(cfg.OTP.HashCost), smsSender, st.locker, service.OTPConfig{
		Expiry:            cfg.OTP.Expiry,
		ResendCooldown:    cfg.OTP.ResendCooldown,
		MaxSendPerHour:    cfg.OTP.MaxSendPerHour,
		MaxVerifyAttempts: cfg.OTP.MaxVerifyAttempts,
		DeliveryTimeout:   cfg.OTP.DeliveryTimeout,
	}, logger)
	otp.SetUserDirectory(st.users)

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("auth.jwt_secret not set; using an ephemeral secret, sessions will not survive a restart")
	}
	sessions, err := identity.NewSessionIssuer(secret, cfg.Server.PublicURL, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("session issuer: %w", err)
	}

	// ── Payments ─────────────────────────────────────────────────────────────
	rzpCfg := razorpay.Config{
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
		Mode:      cfg.Razorpay.Mode,
	}
	var orders *service.OrderService
	gateway, err := razorpay.NewClient(rzpCfg, logger)
	if err != nil {
		logger.Warn("razorpay not configured; order creation disabled", zap.Error(err))
		orders = service.NewUnconfiguredOrderService(err, logger)
	} else {
		orders = service.NewOrderService(gateway, cfg.Receipt.Currency, logger)
	}

	verifier := service.NewSignatureVerifier(cfg.Razorpay.KeySecret)
	if !verifier.Configured() {
		logger.Warn("razorpay.key_secret not set; every payment verification will be rejected")
	}
	issuer := service.NewReceiptIssuer(verifier, st.receipts, render.NewReceipts(cfg.Location()), mailer, cfg.Receipt.Currency, logger)
	issuer.SetEmailTimeout(cfg.Email.Timeout)

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Retry-After"},
		AllowCredentials: !containsWildcard(cfg.Server.CORSOrigins),
		MaxAge:           12 * time.Hour,
	}))
	router.Use(handler.SecurityHeaders())
	router.Use(handler.BodyLimit(1 << 20))
	if rps := cfg.Server.RateLimitRPS; rps > 0 {
		router.Use(handler.RateLimiter(ctx, rps, rps*2))
	}
	router.Use(handler.PrometheusMiddleware())
	router.Use(handler.RequestLogger(logger))

	checker := health.New(health.Config{}, logger)
	checker.SetMetricsRecord(handler.RecordDependencyProbe)
	for name, p := range st.probes {
		checker.Register(name, p)
	}
	go checker.Start(ctx)

	router.GET("/healthz", handler.Liveness)
	router.GET("/readyz", handler.Readiness(checker))
	router.GET("/metrics", handler.MetricsHandler())

	var loginLimit []gin.HandlerFunc
	if n := cfg.Server.AuthRatePerMinute; n > 0 {
		loginLimit = append(loginLimit, handler.RouteRateLimiter(ctx, n))
	}
	accounts := users.NewUserService(st.users, security.NewHasher(cfg.Auth.PasswordHashCost), logger)

	api := router.Group("/api")
	handler.NewAuthHandler(otp, sessions, logger).Register(api, loginLimit...)
	handler.NewUserHandler(accounts, sessions, logger).Register(api, loginLimit...)
	handler.NewPaymentHandler(orders, issuer, logger).Register(api)
	handler.NewReceiptHandler(issuer, sessions, logger).Register(api)

	// ── Background: prune stale OTP challenges every 5 minutes ───────────────
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
				if _, err := otp.DeleteStale(cctx); err != nil {
					logger.Warn("otp challenge cleanup error", zap.Error(err))
				}
				cancel()
			case <-ctx.Done():
				return
			}
		}
	}()

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("donationcore HTTP listening", zap.Int("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("HTTP listen: %w", err)
	}
	logger.Info("shutting down donationcore...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("donationcore stopped")
	return nil
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("read random secret: %v", err))
	}
	return hex.EncodeToString(b)
}
