package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "rolegate/docs"
	"rolegate/internal/bot"
	"rolegate/internal/config"
	"rolegate/internal/handlers"
	"rolegate/internal/repositories"
	"rolegate/internal/routes"
	"rolegate/internal/services"
	"rolegate/internal/web"
)

const queueDepth = 64

func Run() {
	cfg := config.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("Ошибка подключения к БД: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Ошибка закрытия БД: %v", err)
		}
	}()
	if err := repositories.EnsureSchema(ctx, db); err != nil {
		log.Fatal("Ошибка миграции БД: ", err)
	}

	// === Repos ===
	recordRepo := repositories.NewVerificationRecordRepository(db)
	ledger, closeLedger := repositories.OpenChallengeLedger(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	// === Discord ===
	session, err := bot.NewSession(cfg.Discord.Token)
	if err != nil {
		log.Fatal(err)
	}
	gateway := services.NewDiscordGateway(bot.StateAPI{Session: session}, cfg.Discord.GuildID)

	// === Services ===
	notifiers := services.MultiNotifier{services.NewDiscordLogNotifier(session, cfg.Discord.LogChannelID)}
	if cfg.Telegram.BotToken != "" {
		tg, err := services.NewTelegramService(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			log.Printf("[app][tg][warn] alerts disabled: %v", err)
		} else {
			notifiers = append(notifiers, tg)
		}
	}

	challengeService := services.NewChallengeService(cfg.Challenge.Secret, cfg.Server.PublicURL, cfg.Server.HomeURL, cfg.Challenge.TTL, ledger)
	verificationService := services.NewVerificationService(
		services.NewAbuseFilter(cfg.Abuse.Denylist),
		services.NewRecaptchaVerifier(cfg.Recaptcha.Secret, cfg.Recaptcha.VerifyURL, cfg.Recaptcha.Timeout),
		gateway,
		recordRepo,
		challengeService,
		notifiers,
		cfg.Discord.RoleID,
		cfg.Discord.GrantTimeout,
	)
	recordService := services.NewRecordService(recordRepo)

	discordBot := bot.New(session, cfg.Discord.GuildID, &bot.Handler{Issuer: challengeService, Records: recordService})
	// очередь живёт столько же, сколько бот-сессия
	queue := services.NewSessionQueue(discordBot.Context(), cfg.Discord.QueueShards, queueDepth, verificationService.Verify)

	if err := discordBot.Open(); err != nil {
		log.Fatal(err)
	}

	// === Handlers ===
	verifyHandler := handlers.NewVerifyHandler(queue, challengeService, cfg.Recaptcha.SiteKey, cfg.Support.Invite, cfg.Server.HomeURL, cfg.Server.ResponseWait)
	recordHandler := handlers.NewRecordHandler(recordService)
	var oauthHandler *handlers.OAuthHandler
	if cfg.OAuthEnabled() {
		oauthService := services.NewOAuthService(cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.RedirectURI)
		oauthHandler = handlers.NewOAuthHandler(
			oauthService,
			challengeService,
			verificationService.Filter,
			cfg.Support.Invite,
			strings.HasPrefix(cfg.Server.PublicURL, "https://"),
		)
	}

	// === Gin ===
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxy); err != nil {
		log.Fatal("Ошибка trusted proxies: ", err)
	}
	router.SetHTMLTemplate(web.Templates())

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupRoutes(router, cfg.Server.HomeURL, verifyHandler, oauthHandler, recordHandler, []byte(cfg.Admin.JWTSecret))

	// === Run ===
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Сервер запущен на %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Ошибка запуска сервера: ", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[app] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[app][http][err] shutdown: %v", err)
	}
	queue.Close()
	if err := closeLedger(); err != nil {
		log.Printf("[app][redis][err] close: %v", err)
	}
	if err := discordBot.Close(); err != nil {
		log.Printf("[app][discord][err] close: %v", err)
	}
}
