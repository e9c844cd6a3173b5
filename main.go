package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/cache"
	fbclient "crosspost/infrastructure/clients/facebook"
	igclient "crosspost/infrastructure/clients/instagram"
	ttclient "crosspost/infrastructure/clients/tiktok"
	ytclient "crosspost/infrastructure/clients/youtube"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/mediastore"
	"crosspost/infrastructure/persistence"
	"crosspost/infrastructure/realtime"
	"crosspost/infrastructure/statetoken"
	httpHandler "crosspost/interfaces/http"
	"crosspost/server"
	"crosspost/usecase"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")

	app := configuration.C.App

	psqlDb, err := persistence.NewPostgreSQLDB(configuration.C.Database.Psql)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Cannot connect to PostgreSQL")
		os.Exit(1)
	}
	if err := persistence.EnsureCredentialSchema(psqlDb); err != nil {
		logger.GetLogger().WithField("error", err).Error("failed ensuring credential schema")
	}
	if err := persistence.EnsurePublishSchema(psqlDb); err != nil {
		logger.GetLogger().WithField("error", err).Error("failed ensuring publish schema")
	}

	redisClient, err := cache.NewCache(
		ctx,
		fmt.Sprintf("%s:%s", configuration.C.RedisClient.Host, configuration.C.RedisClient.Port),
		configuration.C.RedisClient.Username,
		configuration.C.RedisClient.Password,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - publish status caching disabled")
		redisClient = nil
	}

	mediaStore, err := mediastore.New(ctx, configuration.C.Storage)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Media store initialization failed")
		os.Exit(1)
	}

	credRepo := persistence.NewCredentialRepository(psqlDb)
	publishRepo := persistence.NewPublishRepository(psqlDb)
	userRepo := persistence.NewUserRepository(psqlDb)

	oauthCfg := configuration.C.OAuth
	fb := fbclient.NewClient(fbclient.Config{
		ClientID:     oauthCfg.Facebook.ClientID,
		ClientSecret: oauthCfg.Facebook.ClientSecret,
		RedirectURI:  oauthCfg.Facebook.RedirectURI,
	})
	ig := igclient.NewClient(igclient.Config{
		ClientID:        oauthCfg.Instagram.ClientID,
		ClientSecret:    oauthCfg.Instagram.ClientSecret,
		RedirectURI:     oauthCfg.Instagram.RedirectURI,
		PollInterval:    time.Duration(configuration.C.Publish.PollIntervalSeconds) * time.Second,
		PollMaxAttempts: configuration.C.Publish.PollMaxAttempts,
	})
	tt := ttclient.NewClient(ttclient.Config{
		ClientKey:    oauthCfg.TikTok.ClientID,
		ClientSecret: oauthCfg.TikTok.ClientSecret,
		RedirectURI:  oauthCfg.TikTok.RedirectURI,
	})
	yt := ytclient.NewClient(ytclient.Config{
		ClientID:     oauthCfg.YouTube.ClientID,
		ClientSecret: oauthCfg.YouTube.ClientSecret,
		RedirectURI:  oauthCfg.YouTube.RedirectURI,
	})

	providers := map[string]httpHandler.Provider{}
	registerProvider := func(platform string, cc configuration.OAuthClient, connector httpHandler.IProviderConnector) {
		if !cc.Configured() {
			logger.GetLogger().WithField("platform", platform).Warn("OAuth client not configured; connect disabled")
			return
		}
		providers[platform] = httpHandler.Provider{
			Connector: connector,
			Codec:     statetoken.New(statetoken.SelectSecret(cc.StateSecret, app.SecretKey), statetoken.DefaultTTL),
			Secure:    len(cc.RedirectURI) >= 8 && cc.RedirectURI[:8] == "https://",
		}
	}
	registerProvider(model.PlatformFacebook, oauthCfg.Facebook, fb)
	registerProvider(model.PlatformInstagram, oauthCfg.Instagram, ig)
	registerProvider(model.PlatformTikTok, oauthCfg.TikTok, tt)
	registerProvider(model.PlatformYouTube, oauthCfg.YouTube, yt)

	refreshers := map[string]repository.IRefresher{
		model.PlatformTikTok:  tt,
		model.PlatformYouTube: yt,
	}
	pipelines := map[string]repository.IPipeline{
		model.PlatformFacebook:  fb,
		model.PlatformInstagram: ig,
		model.PlatformTikTok:    tt,
		model.PlatformYouTube:   yt,
	}

	publishHub := realtime.NewPublishHub()
	statusCache := cache.NewPublishStatusCache(redisClient)

	tokenUsecase := usecase.NewTokenUsecase(credRepo, refreshers)
	publishUsecase := usecase.NewPublishUsecase(
		publishRepo,
		tokenUsecase,
		pipelines,
		publishHub,
		statusCache,
		time.Duration(configuration.C.Publish.PipelineTimeoutSeconds)*time.Second,
	)
	userUsecase := usecase.NewUserUsecase(userRepo, app.SecretKey)

	userHandler := httpHandler.NewUserHandler(userUsecase)
	oauthHandler := httpHandler.NewOAuthHandler(providers, credRepo, app.BaseURL, fb)
	publishHandler := httpHandler.NewPublishHandler(publishUsecase, mediaStore)
	connectionHandler := httpHandler.NewConnectionHandler(credRepo)
	fbSecure := len(oauthCfg.Facebook.RedirectURI) >= 8 && oauthCfg.Facebook.RedirectURI[:8] == "https://"
	facebookPagesHandler := httpHandler.NewFacebookPagesHandler(fb, credRepo, fbSecure)

	allowedOrigins := []string{app.BaseURL, "http://localhost:3000", "http://localhost:4200"}
	router := server.InitiateRouter(
		userHandler,
		oauthHandler,
		publishHandler,
		connectionHandler,
		facebookPagesHandler,
		func(c *gin.Context) { publishHub.Serve(c) },
		app.SecretKey,
		allowedOrigins,
	)

	logger.GetLogger().WithFields(map[string]interface{}{"port": app.Port, "tls": app.TLSEnabled}).Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", app.Port),
			Handler: router,
		}
		if app.TLSEnabled {
			cert := app.TLSCertFile
			key := app.TLSKeyFile
			if cert == "" || key == "" {
				logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
				if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			}
			logger.GetLogger().WithFields(map[string]interface{}{"cert": cert, "key": key}).Info("Serving HTTPS")
			if err := httpServer.ListenAndServeTLS(cert, key); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}
