package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"novelhub/internal/amendments"
	"novelhub/internal/auth"
	"novelhub/internal/backup"
	"novelhub/internal/chapters"
	"novelhub/internal/diffs"
	"novelhub/internal/feedback"
	"novelhub/internal/identity"
	"novelhub/internal/maintenance"
	"novelhub/internal/novels"
	"novelhub/internal/porter"
	"novelhub/internal/summaries"
	"novelhub/internal/syncnotify"
	"novelhub/internal/templates"
	"novelhub/internal/translations"
	"novelhub/pkg/database"
	"novelhub/pkg/utils"
)

func main() {
	ctx := context.Background()

	dbCfg, err := database.LoadConfig()
	if err != nil {
		log.Fatalf("db config: %v", err)
	}
	if err := database.EnsureDataDir(dbCfg); err != nil {
		log.Fatalf("data dir: %v", err)
	}

	// Snapshot-guarded open: a pending schema upgrade is backed up first.
	db, err := backup.GuardedOpen(ctx, dbCfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := maintenance.NewRunner(db).RunAll(ctx); err != nil {
		log.Fatalf("maintenance jobs: %v", err)
	}

	appCfg, err := utils.LoadAppConfig()
	if err != nil {
		log.Fatalf("app config: %v", err)
	}

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	hub := syncnotify.NewHub()
	hub.SchemaVersion = database.TargetVersion
	router.GET("/ws", syncnotify.WSHandler(hub))
	tcpSrv := syncnotify.NewServer(appCfg.SyncAddr, hub)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": db.Path()})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.SQL().PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	resolver := identity.NewResolver(db)
	chapterRepo := chapters.NewRepo(db)
	translationRepo := translations.NewRepo(db, resolver)

	tokenSvc := auth.TokenService{
		Secret:   []byte(appCfg.JWTSecret),
		Issuer:   appCfg.JWTIssuer,
		Duration: appCfg.JWTDuration,
	}
	authStore := auth.NewStore(db)
	auth.NewHandler(authStore, tokenSvc).RegisterRoutes(router)

	// The library surface is protected once a passphrase has been set; the
	// middleware stays out of the way until then so a fresh install works
	// without a login step.
	api := router.Group("/")
	hasPassword, err := authStore.HasPassword(ctx)
	if err != nil {
		log.Fatalf("auth state: %v", err)
	}
	if hasPassword {
		api.Use(auth.AuthMiddleware(tokenSvc, authStore))
	}

	chapters.NewHandler(chapterRepo, resolver, hub).RegisterRoutes(api.Group("/chapters"))
	translations.NewHandler(translationRepo, hub).RegisterRoutes(api.Group("/translations"))
	summaries.NewHandler(summaries.NewRepo(db)).RegisterRoutes(api.Group("/summaries"))
	feedback.NewHandler(feedback.NewRepo(db)).RegisterRoutes(api.Group("/feedback"))
	templates.NewHandler(templates.NewRepo(db)).RegisterRoutes(api.Group("/templates"))
	novels.NewHandler(novels.NewRepo(db)).RegisterRoutes(api.Group("/novels"))
	diffs.NewHandler(diffs.NewRepo(db)).RegisterRoutes(api.Group("/diffs"))
	amendments.NewHandler(amendments.NewRepo(db)).RegisterRoutes(api.Group("/amendments"))
	porter.NewHandler(porter.NewExporter(db), porter.NewImporter(db)).RegisterRoutes(api.Group("/library"))

	httpSrv := &http.Server{
		Addr:    appCfg.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("HTTP API server listening on %s", appCfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if err := tcpSrv.Close(); err != nil {
		log.Printf("tcp shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("servers stopped")
}
