package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"tasknote-backend/application/services"
	"tasknote-backend/interfaces/http/rest/handlers"
	"tasknote-backend/interfaces/http/rest/middleware"
	"tasknote-backend/pkg/auth"
	pkgerrors "tasknote-backend/pkg/errors"
)

// Router creates and configures the HTTP router
type Router struct {
	users      *services.UserService
	taskLists  *services.TaskListService
	notes      *services.NoteService
	validator  *auth.JWTValidator
	errors     *pkgerrors.ErrorHandler
	enableCORS bool
	logger     *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	users *services.UserService,
	taskLists *services.TaskListService,
	notes *services.NoteService,
	validator *auth.JWTValidator,
	errors *pkgerrors.ErrorHandler,
	enableCORS bool,
	logger *zap.Logger,
) *Router {
	return &Router{
		users:      users,
		taskLists:  taskLists,
		notes:      notes,
		validator:  validator,
		errors:     errors,
		enableCORS: enableCORS,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.CircuitBreaker(middleware.DefaultCircuitBreakerConfig("api"), rt.logger))

	if rt.enableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, rt.users, rt.logger))

		userHandler := handlers.NewUserHandler(rt.users, rt.errors, rt.logger)
		r.Route("/me", func(r chi.Router) {
			r.Get("/", userHandler.GetMe)
			r.Put("/email", userHandler.UpdateEmail)
			r.Delete("/", userHandler.DeleteMe)
		})

		taskListHandler := handlers.NewTaskListHandler(rt.taskLists, rt.users, rt.errors, rt.logger)
		noteHandler := handlers.NewNoteHandler(rt.notes, rt.users, rt.errors, rt.logger)

		r.Route("/tasklists", func(r chi.Router) {
			r.Post("/", taskListHandler.Create)
			r.Get("/", taskListHandler.GetAll)
			r.Route("/{listID}", func(r chi.Router) {
				r.Get("/", taskListHandler.Get)
				r.Put("/", taskListHandler.Rename)
				r.Delete("/", taskListHandler.Delete)
				r.Post("/share", taskListHandler.Share)
				r.Delete("/share/{userID}", taskListHandler.Unshare)
				r.Post("/notes", noteHandler.Create)
			})
		})

		r.Route("/notes/{noteID}", func(r chi.Router) {
			r.Get("/", noteHandler.Get)
			r.Put("/", noteHandler.Update)
			r.Patch("/closed", noteHandler.SetClosed)
			r.Delete("/", noteHandler.Delete)
			r.Post("/moveup", noteHandler.MoveUp)
			r.Post("/movedown", noteHandler.MoveDown)
			r.Post("/copy", noteHandler.Copy)
			r.Post("/move", noteHandler.Move)
			r.Post("/share", noteHandler.Share)
			r.Delete("/share/{userID}", noteHandler.Unshare)
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
