package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"collegemgmt/internal/academics"
	"collegemgmt/internal/auth"
	"collegemgmt/internal/bulletin"
	"collegemgmt/internal/files"
	"collegemgmt/internal/gateway/handlers"
	"collegemgmt/internal/gateway/util"
	"collegemgmt/internal/marks"
	"collegemgmt/internal/people"
	"collegemgmt/internal/shared"
)

// Services bundles everything the router serves.
type Services struct {
	Auth      *auth.Service
	Marks     *marks.Service
	Academics *academics.Service
	People    *people.Service
	Bulletin  *bulletin.Service
	Files     files.Store
	Config    *shared.Config
}

// SetupRoutes configures the Chi router, middleware, and route handlers.
func SetupRoutes(svc *Services) *chi.Mux {
	r := chi.NewRouter()

	// 1. Global Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS Configuration (Allow React Frontend)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   svc.Config.CORS.AllowedOrigins,
		AllowedMethods:   svc.Config.CORS.AllowedMethods,
		AllowedHeaders:   svc.Config.CORS.AllowedHeaders,
		AllowCredentials: svc.Config.CORS.AllowCredentials,
		MaxAge:           svc.Config.CORS.MaxAge,
	}))

	// 2. Initialize Handlers
	authHandler := &handlers.AuthHandler{Auth: svc.Auth}
	marksHandler := &handlers.MarksHandler{Marks: svc.Marks}
	academicsHandler := &handlers.AcademicsHandler{Academics: svc.Academics}
	peopleHandler := &handlers.PeopleHandler{People: svc.People}
	bulletinHandler := &handlers.BulletinHandler{Bulletin: svc.Bulletin, Files: svc.Files}

	// 3. Define Routes (grouped by prefix)
	r.Route("/api", func(r chi.Router) {

		// --- Public Routes ---

		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout) // Logout handles its own token extraction

		// --- Protected Routes (Require Valid Token) ---
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(svc.Auth))

			// Auth
			r.Get("/auth/validate", authHandler.Validate)
			r.Post("/auth/change-password", authHandler.ChangePassword)

			// Profile
			r.Get("/profile", peopleHandler.Me)
			r.Put("/profile", peopleHandler.UpdateMe)

			// Academic structure (viewable by any authenticated role)
			r.Get("/branches", academicsHandler.ListBranches)
			r.Get("/subjects", academicsHandler.ListSubjects)
			r.Get("/exams", academicsHandler.ListExams)

			// Marks workflow
			r.Route("/marks", func(r chi.Router) {
				// Faculty
				r.Get("/students", marksHandler.Roster)
				r.Post("/bulk", marksHandler.SubmitBulk)
				r.Get("/stats", marksHandler.Statistics)

				// Student
				r.Get("/student", marksHandler.StudentMarks)
			})

			// Directory
			r.Get("/students", peopleHandler.SearchStudents)

			// Bulletin
			r.Route("/notices", func(r chi.Router) {
				r.Get("/", bulletinHandler.ListNotices)
				r.Post("/", bulletinHandler.CreateNotice)
				r.Delete("/{id}", bulletinHandler.DeleteNotice)
			})
			r.Route("/materials", func(r chi.Router) {
				r.Get("/", bulletinHandler.ListMaterials)
				r.Post("/", bulletinHandler.UploadMaterial)
				r.Delete("/{id}", bulletinHandler.DeleteMaterial)
			})
			r.Get("/timetable", bulletinHandler.GetTimetable)
			r.Get("/media/{ref}", bulletinHandler.ServeMedia)

			// Admin Management
			r.Route("/admin", func(r chi.Router) {
				// Academic structure
				r.Post("/branches", academicsHandler.CreateBranch)
				r.Patch("/branches/{id}", academicsHandler.UpdateBranch)
				r.Delete("/branches/{id}", academicsHandler.DeleteBranch)
				r.Post("/subjects", academicsHandler.CreateSubject)
				r.Patch("/subjects/{id}", academicsHandler.UpdateSubject)
				r.Delete("/subjects/{id}", academicsHandler.DeleteSubject)
				r.Post("/exams", academicsHandler.CreateExam)
				r.Patch("/exams/{id}", academicsHandler.UpdateExam)
				r.Delete("/exams/{id}", academicsHandler.DeleteExam)

				// Users
				r.Post("/users", peopleHandler.CreateUser)
				r.Get("/users/{id}", peopleHandler.GetUser)
				r.Put("/users/{id}", peopleHandler.UpdateUser)
				r.Patch("/users/{id}/status", peopleHandler.SetUserStatus)
				r.Get("/faculty", peopleHandler.ListFaculty)

				// Audit trail
				r.Get("/audit", peopleHandler.ListAudit)

				// Timetables
				r.Post("/timetable", bulletinHandler.PostTimetable)
			})
		})
	})

	return r
}

// AuthMiddleware creates a middleware that validates JWT tokens via the auth
// service and injects the user into the request context.
func AuthMiddleware(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Extract Token
			tokenStr, err := util.ExtractToken(r)
			if err != nil {
				util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
				return
			}

			// 2. Validate signature, session and account status
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()

			user, err := authService.ValidateToken(ctx, tokenStr)
			if err != nil {
				util.HandleServiceError(w, err)
				return
			}

			// 3. Inject User into Context
			// Handlers access the caller via r.Context().Value("user")
			ctxWithUser := context.WithValue(r.Context(), "user", user)
			next.ServeHTTP(w, r.WithContext(ctxWithUser))
		})
	}
}
