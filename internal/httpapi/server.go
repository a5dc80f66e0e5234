package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classtrack/attendance/internal/auth"
	"classtrack/attendance/internal/config"
	"classtrack/attendance/internal/repository"
)

const tokenCookieName = "jwt"

// Stored dates are plain calendar dates; the IST offset is applied only when
// rendering record dates back to clients.
var istZone = time.FixedZone("IST", 5*3600+30*60)

const (
	dateLayout        = "2006-01-02"
	displayDateLayout = "02/01/2006"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "attendance_http_requests_total",
	Help: "HTTP requests served, by method and status code.",
}, []string{"method", "code"})

type Server struct {
	cfg   config.Config
	store *repository.Store
}

func NewServer(cfg config.Config, store *repository.Store) *Server {
	return &Server{cfg: cfg, store: store}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(countRequests)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		respond(w, http.StatusOK, "Welcome to the Attendance Tracker API!", nil)
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/sign-out", s.handleSignOut)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/sign-up", s.handleTeacherSignUp)
			r.Post("/sign-in", s.handleTeacherSignIn)
			r.With(s.authMiddleware).Get("/details", s.handleTeacherDetails)
			r.Post("/{teacherId}/update-subgroups/{subjectCode}", s.handleUpdateSubgroups)
			r.With(s.authMiddleware).Post("/attendance/{subjectCode}/{subgroupId}", s.handleMarkAttendance)
			r.With(s.authMiddleware).Get("/attendance/{subjectCode}/{subgroupId}/{date}", s.handleAttendanceDetails)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/sign-up", s.handleStudentSignUp)
			r.Post("/sign-in", s.handleStudentSignIn)
			r.With(s.authMiddleware).Get("/details", s.handleStudentDetails)
			r.With(s.authMiddleware).Post("/mark-attendance", s.handleStudentMarkAttendance)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "Route not found")
	})

	return r
}

func (s *Server) handleSignOut(w http.ResponseWriter, _ *http.Request) {
	clearTokenCookie(w)
	respond(w, http.StatusOK, "User signed out successfully", nil)
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "Access denied. No token provided.")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid or expired token.")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

// requestToken extracts the credential, cookie first, then the Authorization
// header.
func requestToken(r *http.Request) string {
	if cookie, err := r.Cookie(tokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (s *Server) issueToken(w http.ResponseWriter, userID, userType string) (string, error) {
	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.TokenTTL, auth.Claims{
		UserID:   userID,
		UserType: userType,
	})
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.TokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}

func clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// Response envelope

type apiResponse struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
}

func respond(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, apiResponse{StatusCode: status, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, message, nil)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

// Dates

func parseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, value)
}

func formatRecordDate(t time.Time) string {
	return t.In(istZone).Format(displayDateLayout)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		requestsTotal.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
	})
}
