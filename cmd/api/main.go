package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "github.com/hmansour/commune/docs"
	"github.com/hmansour/commune/internal/config"
	"github.com/hmansour/commune/internal/database"
	"github.com/hmansour/commune/internal/group"
	"github.com/hmansour/commune/internal/membership"
	"github.com/hmansour/commune/internal/post"
	"github.com/hmansour/commune/internal/query"
	"github.com/hmansour/commune/internal/user"
	mw "github.com/hmansour/commune/pkg/middleware"
)

// @title        Commune API
// @version      1.0
// @description  Group membership and moderation engine
// @BasePath     /api/v1
func main() {
	// .env is optional; real environment variables win either way
	_ = godotenv.Load()

	cfg := config.Load()

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("connected to database")

	// Repositories
	userRepo := user.NewRepository(db)
	groupRepo := group.NewRepository(db)
	memberRepo := membership.NewRepository(db)
	postRepo := post.NewRepository(db)

	// Services
	userService := user.NewService(userRepo)
	groupService := group.NewService(groupRepo, memberRepo)
	membershipService := membership.NewService(memberRepo, groupRepo, userRepo)
	postService := post.NewService(postRepo, groupRepo, memberRepo)
	queryService := query.NewService(groupRepo, memberRepo, postRepo, nil)

	// Handlers
	userHandler := user.NewHandler(userService)
	groupHandler := group.NewHandler(groupService, logger)
	membershipHandler := membership.NewHandler(membershipService, logger)
	postHandler := post.NewHandler(postService, logger)
	queryHandler := query.NewHandler(queryService, logger)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth(cfg.JWTSecret))

		r.Route("/users", func(r chi.Router) {
			userHandler.Register(r)
		})

		// Group, membership, moderation and read-side routes all live
		// under /groups; each feature registers its own slice.
		r.Route("/groups", func(r chi.Router) {
			groupHandler.Register(r)
			membershipHandler.Register(r)
			postHandler.Register(r)
			queryHandler.Register(r)
		})
	})

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(level string) *zap.Logger {
	var logger *zap.Logger
	var err error
	if level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}
