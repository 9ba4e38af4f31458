package rest

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/progres-gateway/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Deps struct {
	Sessions    SessionManager
	Students    StudentRecords
	Recommender Recommender
	Verifier    TokenVerifier
	Revocations RevocationChecker
	Limiter     *RateLimiter
	Logger      logging.Logger
}

type Options struct {
	AllowedOrigins    []string
	CORSMaxAge        time.Duration
	CookieSecure      bool
	// TrustProxyHeaders lets X-Forwarded-For / X-Real-IP replace the peer
	// address, which also keys the auth rate limiter.
	TrustProxyHeaders bool
}

// NewRouter wires every endpoint with its middleware.
func NewRouter(d Deps, opts Options) http.Handler {
	h := &handler{
		sessions:     d.Sessions,
		students:     d.Students,
		recommender:  d.Recommender,
		logger:       d.Logger.With("module", "handlers"),
		cookieSecure: opts.CookieSecure,
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if opts.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(accessLog(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Set-Cookie"},
		AllowCredentials: true,
		MaxAge:           int(opts.CORSMaxAge.Seconds()),
	}))

	r.Get("/healthz", h.health)

	r.Route("/api/auth", func(ar chi.Router) {
		ar.Use(noStore)
		if d.Limiter != nil {
			ar.Use(d.Limiter.Middleware)
		}
		ar.Post("/login", h.login)
		ar.Post("/refresh", h.refresh)
		ar.Post("/logout", h.logout)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(requireBearer(d.Verifier, d.Revocations, d.Logger))

		pr.Route("/api/student", func(sr chi.Router) {
			sr.Get("/data", h.studentData)
			sr.Get("/info", h.studentInfo)
			sr.Get("/photo", h.studentPhoto)
			sr.Get("/exams/{id}", h.periodResults)
			sr.Get("/cc-grades/{cardId}", h.continuousGrades)
			sr.Get("/exam-grades/{cardId}", h.examGrades)
			sr.Get("/subjects/{offerId}/{levelId}", h.subjects)
		})

		pr.Post("/api/recommendations/suggest", h.suggest)
	})

	return r
}
