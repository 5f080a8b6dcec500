package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/config"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/db"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/handlers"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/logging"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/middleware"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/notify"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/account"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/gateway"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/message"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/mission"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/payment"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/review"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/wallet"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/store"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/throttle"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DBDSN, log)
	if err != nil {
		log.WithError(err).Fatal("connect postgres")
	}
	if err := db.Migrate(gdb); err != nil {
		log.WithError(err).Fatal("migrate")
	}
	rdb, err := db.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, log)
	if err != nil {
		log.WithError(err).Fatal("connect redis")
	}
	defer rdb.Close()

	if cfg.JWTSecret == "" {
		log.Fatal(utils.ErrMissingSecret)
	}

	st := store.NewGorm(gdb)
	notifier := notify.NewRedis(rdb)
	tokens := utils.NewTokenService(cfg.JWTSecret, cfg.JWTTTL())

	var provider payment.Provider
	var verifier handlers.SignatureVerifier
	if cfg.Gateway.Enabled() {
		gw := gateway.New(cfg.Gateway, cfg.AppBaseURL, cfg.FrontendBaseURL)
		provider, verifier = gw, gw
	} else {
		log.Warn("payment gateway not configured, payments stay pending")
	}

	accounts := account.NewAccountService(st, utils.NewPasswordHasher(cfg.BcryptCost), tokens,
		throttle.NewRedis(rdb, cfg.LoginMaxAttempts, cfg.LoginWindow), notifier, log)
	payments := payment.NewPaymentService(st, wallet.NewWalletService(), provider, notifier, log,
		payment.Config{FeePercent: cfg.PlatformFeePercent, Currency: cfg.DefaultCurrency})
	missions := mission.NewMissionService(st, payments, notifier, log)
	messages := message.NewMessageService(st, notifier, log)

	authH := &handlers.AuthHandler{
		Accounts:     accounts,
		TTL:          cfg.JWTTTL(),
		SecureCookie: strings.HasPrefix(cfg.AppBaseURL, "https://"),
	}
	var googleH *handlers.GoogleOAuthHandler
	if cfg.GoogleClientID != "" {
		googleH = handlers.NewGoogleOAuthHandler(authH, cfg.GoogleClientID, cfg.GoogleSecret, cfg.GoogleRedirect, cfg.FrontendBaseURL)
	}

	limiter := middleware.NewRateLimiter(float64(cfg.APIRatePerSec), cfg.APIRateBurst, log)
	limiter.StartCleanup(10*time.Minute, ctx.Done())

	sqlDB, err := gdb.DB()
	if err != nil {
		log.WithError(err).Fatal("postgres pool")
	}

	app := handlers.NewApp(handlers.Server{
		Auth:     authH,
		Google:   googleH,
		Missions: handlers.NewMissionHandler(missions),
		Payments: handlers.NewPaymentHandler(payments, verifier, log),
		Reviews:  handlers.NewReviewHandler(review.NewReviewService(st, notifier, log)),
		Messages: handlers.NewMessageHandler(messages),
		Category: handlers.NewCategoryHandler(missions),
		Wallet:   handlers.NewWalletHandler(wallet.NewLedger(st), accounts, messages),
		Health: &handlers.HealthHandler{Checks: map[string]handlers.Pinger{
			"postgres": sqlDB.PingContext,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}},
		Guard:        middleware.NewGuard(tokens, st),
		Limiter:      limiter,
		Log:          log,
		AllowOrigins: cfg.AllowOrigins(),
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.WithError(err).Error("shutdown")
		}
	}()

	log.WithField("port", cfg.AppPort).Info("listening")
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.WithError(err).Fatal("listen")
	}
}
