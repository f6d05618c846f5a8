package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"whiteboard-complete/handlers/api/boards"
	"whiteboard-complete/handlers/auth"
	"whiteboard-complete/handlers/collab"
	authMiddleware "whiteboard-complete/middleware"
	"whiteboard-complete/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

func setupRouter(store stores.Store) *chi.Mux {
	blobs := stores.GetBlobStore()

	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-CSRF-Token", "Origin", "Host", "Connection", "Accept-Encoding", "Accept-Language", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", auth.HandleRegister(store))
		r.Post("/login", auth.HandleLogin(store))
		r.Post("/logout", auth.HandleLogout())
		r.Get("/findId", auth.HandleFindID(store))
		r.Get("/oidc/login", auth.HandleOIDCLogin)
		r.Get("/oidc/callback", auth.HandleOIDCCallback)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT)
			r.Get("/me", auth.HandleMe(store))
			r.Get("/recents", auth.HandleRecents(store, store))
		})
	})

	r.Route("/api/boards", func(r chi.Router) {
		// Public boards are viewable without an account; the
		// capability set decides per board.
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.OptionalAuthJWT)
			r.Get("/public", boards.HandleListPublic(store))
			r.Get("/{id}", boards.HandleGet(store, blobs))
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT)
			r.Post("/", boards.HandleCreate(store, blobs))
			r.Get("/", boards.HandleList(store))
			r.Get("/shared", boards.HandleListShared(store))
			r.Put("/{id}", boards.HandleUpdate(store, blobs))
			r.Delete("/{id}", boards.HandleDelete(store, blobs))
			r.Post("/{id}/share", boards.HandleShare(store, store))
			r.Post("/{id}/unshare", boards.HandleUnshare(store, store))
			r.Post("/{id}/recent", boards.HandleRecent(store, store))
		})
	})

	return r
}

func waitForShutdown(ioo *socketio.Server) {
	exit := make(chan struct{})
	signalC := make(chan os.Signal, 1)

	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range signalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	logrus.Info("Shutting down...")
	ioo.Close(nil)
	os.Exit(0)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":5000", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	store := stores.GetStore()
	auth.InitAuth(store)

	r := setupRouter(store)

	ioo := collab.NewServer(store)
	r.Mount("/socket.io/", ioo.ServeHandler(nil))

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddress, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(ioo)
}
