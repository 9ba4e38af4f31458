package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/progres-gateway/internal/common"
	"github.com/dmitrijs2005/progres-gateway/internal/logging"
	"github.com/dmitrijs2005/progres-gateway/internal/server/auth"
	"github.com/dmitrijs2005/progres-gateway/internal/server/services"
	"github.com/go-chi/chi/v5"
)

const maxRequestBody = 1 << 20

// SessionManager is the token lifecycle used by the auth endpoints.
type SessionManager interface {
	Login(ctx context.Context, username, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string)
	RefreshTokenLifetime() time.Duration
}

type StudentRecords interface {
	Enrollments(ctx context.Context, caller auth.Caller) (json.RawMessage, error)
	PersonalInfo(ctx context.Context, caller auth.Caller) (json.RawMessage, error)
	Photo(ctx context.Context, caller auth.Caller) (json.RawMessage, error)
	PeriodResults(ctx context.Context, caller auth.Caller, enrollmentID string) (json.RawMessage, error)
	ContinuousGrades(ctx context.Context, caller auth.Caller, enrollmentID string) (json.RawMessage, error)
	ExamGrades(ctx context.Context, caller auth.Caller, enrollmentID string) (json.RawMessage, error)
	Subjects(ctx context.Context, caller auth.Caller, offerID, levelID string) (json.RawMessage, error)
}

type Recommender interface {
	Suggest(ctx context.Context, caller auth.Caller, req services.RecommendationRequest) (*services.RecommendationResponse, error)
}

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token   string `json:"token"`
	UUID    string `json:"uuid"`
	Message string `json:"message"`
}

type logoutResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

type handler struct {
	sessions     SessionManager
	students     StudentRecords
	recommender  Recommender
	logger       logging.Logger
	cookieSecure bool
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Password) == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	pair, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:   pair.AccessToken,
		UUID:    pair.Subject,
		Message: "Login successful",
	})
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	token := refreshCookie(r)
	if token == "" {
		h.clearRefreshCookie(w)
		writeError(w, http.StatusUnauthorized, "refresh token missing")
		return
	}

	pair, err := h.sessions.Refresh(r.Context(), token)
	if err != nil {
		h.clearRefreshCookie(w)
		if errors.Is(err, common.ErrUnauthenticated) || errors.Is(err, common.ErrRevoked) {
			writeError(w, http.StatusUnauthorized, "invalid or expired refresh token")
			return
		}
		writeServiceError(w, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:   pair.AccessToken,
		UUID:    pair.Subject,
		Message: "Token refreshed successfully",
	})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	access, _ := common.ExtractBearerToken(r.Header.Get("Authorization"))
	h.sessions.Logout(r.Context(), access, refreshCookie(r))

	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, logoutResponse{Message: "Logged out successfully", Success: true})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) studentData(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, func(ctx context.Context, c auth.Caller) (json.RawMessage, error) {
		return h.students.Enrollments(ctx, c)
	})
}

func (h *handler) studentInfo(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, func(ctx context.Context, c auth.Caller) (json.RawMessage, error) {
		return h.students.PersonalInfo(ctx, c)
	})
}

func (h *handler) studentPhoto(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, func(ctx context.Context, c auth.Caller) (json.RawMessage, error) {
		return h.students.Photo(ctx, c)
	})
}

func (h *handler) periodResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.proxy(w, r, func(ctx context.Context, c auth.Caller) (json.RawMessage, error) {
		return h.students.PeriodResults(ctx, c, id)
	})
}

func (h *handler) continuousGrades(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cardId")
	h.proxy(w, r, func(ctx context.Context, c auth.Caller) (json.RawMessage, error) {
		return h.students.ContinuousGrades(ctx, c, id)
	})
}

func (h *handler) examGrades(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cardId")
	h.proxy(w, r, func(ctx context.Context, c auth.Caller) (json.RawMessage, error) {
		return h.students.ExamGrades(ctx, c, id)
	})
}

func (h *handler) subjects(w http.ResponseWriter, r *http.Request) {
	offer, level := chi.URLParam(r, "offerId"), chi.URLParam(r, "levelId")
	h.proxy(w, r, func(ctx context.Context, c auth.Caller) (json.RawMessage, error) {
		return h.students.Subjects(ctx, c, offer, level)
	})
}

func (h *handler) suggest(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		writeServiceError(w, common.ErrUnauthenticated)
		return
	}

	var req services.RecommendationRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := h.recommender.Suggest(r.Context(), caller, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) proxy(w http.ResponseWriter, r *http.Request, fetch func(context.Context, auth.Caller) (json.RawMessage, error)) {
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		writeServiceError(w, common.ErrUnauthenticated)
		return
	}

	body, err := fetch(r.Context(), caller)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeRawJSON(w, body)
}

// decodeBody decodes a JSON body into v. An empty body yields io.EOF.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return io.EOF
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	return dec.Decode(v)
}

func refreshCookie(r *http.Request) string {
	c, err := r.Cookie(common.RefreshTokenCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *handler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.RefreshTokenCookieName,
		Value:    token,
		Path:     common.RefreshTokenCookiePath,
		MaxAge:   int(h.sessions.RefreshTokenLifetime().Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteNoneMode,
	})
}

func (h *handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.RefreshTokenCookieName,
		Value:    "",
		Path:     common.RefreshTokenCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteNoneMode,
	})
}
