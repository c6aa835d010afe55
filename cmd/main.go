package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "userconsole/docs"
	"userconsole/pkg/config"
	"userconsole/pkg/console"
	"userconsole/pkg/live"
	"userconsole/pkg/stream"
	"userconsole/pkg/users"
)

// @title           User Console API
// @version         1.0
// @description     Paginated user management console kept in sync with the user hub

// @host      localhost:8080
// @BasePath  /

// @schemes   http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := newApp(cfg)

	go func() {
		if err := a.listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("live listener stopped: %v", err)
		}
	}()

	// A failed first load leaves an empty console; the user can retry from the page bar.
	if err := a.controller.LoadPage(ctx, 1); err != nil {
		log.Printf("initial page load failed: %v", err)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: a.router,
	}

	go func() {
		if !cfg.TLSEnabled() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("listen (HTTP): %v", err)
			}
			return
		}

		tlsConfig, err := buildTLSConfig(cfg.TLSCertPath, cfg.TLSKeyPath)
		if err != nil {
			log.Fatalf("TLS setup error: %v", err)
		}
		srv.TLSConfig = tlsConfig
		if err := srv.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen (TLS): %v", err)
		}
	}()
	log.Printf("console listening on :%s (api %s, hub %s)", cfg.Port, cfg.APIBaseURL, cfg.HubURL)

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}

type app struct {
	router     *gin.Engine
	controller *console.Controller
	listener   *live.Listener
	stream     *stream.Handler
}

// newApp wires the REST client, controller, hub listener and browser
// stream together. Nothing is started.
func newApp(cfg config.Config) *app {
	api := users.NewHTTPUserAPI(cfg.APIBaseURL,
		users.WithTimeout(cfg.HTTPTimeout),
		users.WithUserAgent(cfg.UserAgent),
	)
	ctrl := console.NewController(api, cfg.PageSize, cfg.PendingTTL)

	streamHandler := stream.NewHandler(stream.NewConnectionManager())
	streamHandler.SetSnapshotSource(func() any { return ctrl.Snapshot() })
	ctrl.Subscribe(func(s console.State) { streamHandler.Publish(s) })

	listener := live.NewListener(cfg.HubURL, ctrl)
	listener.SetReconnectDelays(cfg.ReconnectDelays)
	listener.OnReconnect(func(ctx context.Context) {
		if err := ctrl.Resync(ctx); err != nil {
			log.Printf("resync after reconnect failed: %v", err)
		}
	})

	return &app{
		router:     newRouter(cfg, ctrl, streamHandler),
		controller: ctrl,
		listener:   listener,
		stream:     streamHandler,
	}
}

func newRouter(cfg config.Config, svc console.Service, streamHandler *stream.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: cfg.CORSAllowCreds,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsCfg))

	console.NewConsoleHandler(svc).RegisterRoutes(router)

	router.GET("/ws/console", streamHandler.HandleWebSocketGin)
	router.GET("/api/console/viewers", streamHandler.GetStatusGin)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return router
}

func buildTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
}
