package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/api/middleware"
	"github.com/phrazzld/cards-api/internal/api/shared"
	"github.com/phrazzld/cards-api/internal/config"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/mocks"
	"github.com/phrazzld/cards-api/internal/platform/logger"
	"github.com/phrazzld/cards-api/internal/platform/memory"
	"github.com/phrazzld/cards-api/internal/service"
	"github.com/phrazzld/cards-api/internal/service/auth"
	"github.com/phrazzld/cards-api/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "Secr3t#pass"

var sessionInput = strings.Repeat("The mitochondria is the powerhouse of the cell. ", 25)

// syncRunner executes tasks as soon as they are submitted.
type syncRunner struct{}

func (syncRunner) Submit(ctx context.Context, t task.Task) error {
	return t.Execute(ctx)
}

type testAPI struct {
	server *httptest.Server
	db     *memory.DB
	logs   *logger.TestLogBuffer
}

type apiOptions struct {
	generationDisabled bool
}

func newTestAPI(t *testing.T, opts apiOptions) *testAPI {
	t.Helper()

	logs, log := logger.NewTestLogger(t)
	db := memory.New(log)
	stores := db.Stores()

	jwtService, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:                   "test-secret-that-is-at-least-32-characters",
		TokenLifetimeMinutes:        15,
		RefreshTokenLifetimeMinutes: 60,
		BCryptCost:                  4,
	})
	require.NoError(t, err)

	hasher := &mocks.MockPasswordVerifier{}
	users := service.NewUserService(stores.Users, db, hasher, hasher, log)
	flashcards, err := service.NewFlashcardService(stores.Flashcards, log)
	require.NoError(t, err)

	gen := mocks.NewMockGeneratorWithSuggestions(
		[2]string{"What powers the cell?", "Mitochondria"},
		[2]string{"What does ATP stand for?", "Adenosine triphosphate"},
	)
	var runner service.TaskRunner
	var factory service.GenerationTaskFactory
	if !opts.generationDisabled {
		runner = syncRunner{}
		factory = task.NewGenerationTaskFactory(stores.Sessions, gen, log)
	}
	generation, err := service.NewGenerationService(stores.Sessions, db, runner, factory, gen.Model(), log)
	require.NoError(t, err)

	resolver := auth.NewIdentityResolver(stores.Users, log)
	authHandler := NewAuthHandler(users, jwtService, log)
	cardHandler := NewFlashcardHandler(flashcards, resolver, log)
	genHandler := NewGenerationHandler(generation, resolver, log)
	authMiddleware := middleware.NewAuthMiddleware(jwtService, log)

	r := chi.NewRouter()
	r.Use(middleware.NewTraceMiddleware(log))
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.RefreshToken)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/flashcards", cardHandler.CreateFlashcard)
			r.Get("/flashcards", cardHandler.GetFlashcards)
			r.Post("/ai/sessions", genHandler.CreateSession)
			r.Get("/ai/sessions/{id}", genHandler.GetSession)
			r.Get("/ai/sessions/{id}/suggestions", genHandler.GetSuggestions)
			r.Post("/ai/sessions/{id}/approve", genHandler.ApproveSuggestions)
		})
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &testAPI{server: server, db: db, logs: logs}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func registration(username string) RegisterRequest {
	return RegisterRequest{
		Username:  username,
		Password:  testPassword,
		Email:     username + "@example.com",
		FirstName: "Test",
		LastName:  "User",
	}
}

// loginAs registers username and returns its access token.
func (a *testAPI) loginAs(t *testing.T, username string) string {
	t.Helper()
	resp := a.do(t, http.MethodPost, "/api/auth/register", "", registration(username))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: username, Password: testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeBody[TokenResponse](t, resp).AccessToken
}

func TestAuthEndpoints(t *testing.T) {
	a := newTestAPI(t, apiOptions{})

	resp := a.do(t, http.MethodPost, "/api/auth/register", "", registration("ada_lovelace"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	registered := decodeBody[RegisterResponse](t, resp)
	assert.NotEqual(t, uuid.Nil, registered.UserID)

	t.Run("duplicate username", func(t *testing.T) {
		dup := registration("ada_lovelace")
		dup.Email = "other@example.com"
		resp := a.do(t, http.MethodPost, "/api/auth/register", "", dup)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "Username already exists", decodeBody[shared.ErrorResponse](t, resp).Error)
	})

	t.Run("request validation", func(t *testing.T) {
		resp := a.do(t, http.MethodPost, "/api/auth/register", "", registration("ab"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid username: too short", decodeBody[shared.ErrorResponse](t, resp).Error)
	})

	t.Run("weak password", func(t *testing.T) {
		weak := registration("grace_hopper")
		weak.Password = "password"
		resp := a.do(t, http.MethodPost, "/api/auth/register", "", weak)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp := a.do(t, http.MethodPost, "/api/auth/register", "", `{"username":`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid request format", decodeBody[shared.ErrorResponse](t, resp).Error)
	})

	t.Run("login and refresh", func(t *testing.T) {
		resp := a.do(t, http.MethodPost, "/api/auth/login", "",
			LoginRequest{Username: "ada_lovelace", Password: testPassword})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		tokens := decodeBody[TokenResponse](t, resp)
		assert.Equal(t, "ada_lovelace", tokens.Username)
		assert.NotEmpty(t, tokens.AccessToken)
		assert.NotEmpty(t, tokens.RefreshToken)
		assert.Equal(t, int64(15*60), tokens.ExpiresIn)

		resp = a.do(t, http.MethodPost, "/api/auth/refresh", "",
			RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		refreshed := decodeBody[TokenResponse](t, resp)
		assert.Equal(t, "ada_lovelace", refreshed.Username)
		assert.NotEmpty(t, refreshed.AccessToken)

		// Access tokens are not accepted as refresh tokens.
		resp = a.do(t, http.MethodPost, "/api/auth/refresh", "",
			RefreshTokenRequest{RefreshToken: tokens.AccessToken})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := a.do(t, http.MethodPost, "/api/auth/login", "",
			LoginRequest{Username: "ada_lovelace", Password: "Wrong#pass1"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Invalid username or password", decodeBody[shared.ErrorResponse](t, resp).Error)
	})

	t.Run("unknown user", func(t *testing.T) {
		resp := a.do(t, http.MethodPost, "/api/auth/login", "",
			LoginRequest{Username: "nobody", Password: testPassword})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestFlashcardEndpoints(t *testing.T) {
	a := newTestAPI(t, apiOptions{})
	token := a.loginAs(t, "learner")
	otherToken := a.loginAs(t, "other_learner")

	for i := 0; i < 3; i++ {
		resp := a.do(t, http.MethodPost, "/api/flashcards", token, CreateFlashcardRequest{
			FrontContent: fmt.Sprintf("Question %d", i),
			BackContent:  "Answer",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		created := decodeBody[service.CreateFlashcardResponse](t, resp)
		assert.Equal(t, domain.FlashcardSourceManual, created.Source)
		assert.Equal(t, fmt.Sprintf("Question %d", i), created.FrontContent)
	}

	t.Run("list with paging and sort", func(t *testing.T) {
		resp := a.do(t, http.MethodGet, "/api/flashcards?page=0&size=2&sort=frontContent,desc", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		page := decodeBody[service.GetFlashcardsResponse](t, resp)

		require.Len(t, page.Content, 2)
		assert.Equal(t, "Question 2", page.Content[0].FrontContent)
		assert.Equal(t, "Question 1", page.Content[1].FrontContent)
		assert.Equal(t, service.PageInfo{Page: 0, Size: 2, TotalElements: 3, TotalPages: 2}, page.PageInfo)
	})

	t.Run("other users see nothing", func(t *testing.T) {
		resp := a.do(t, http.MethodGet, "/api/flashcards", otherToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		page := decodeBody[service.GetFlashcardsResponse](t, resp)
		assert.Empty(t, page.Content)
		assert.Zero(t, page.PageInfo.TotalElements)
	})

	t.Run("source filter", func(t *testing.T) {
		resp := a.do(t, http.MethodGet, "/api/flashcards?source=generated", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Zero(t, decodeBody[service.GetFlashcardsResponse](t, resp).PageInfo.TotalElements)
	})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		status int
	}{
		{name: "non-integer page", method: http.MethodGet, path: "/api/flashcards?page=abc", token: token, status: http.StatusBadRequest},
		{name: "negative page", method: http.MethodGet, path: "/api/flashcards?page=-1", token: token, status: http.StatusBadRequest},
		{name: "zero size", method: http.MethodGet, path: "/api/flashcards?size=0", token: token, status: http.StatusBadRequest},
		{name: "missing token", method: http.MethodGet, path: "/api/flashcards", status: http.StatusUnauthorized},
		{name: "garbage token", method: http.MethodGet, path: "/api/flashcards", token: "not-a-jwt", status: http.StatusUnauthorized},
		{name: "blank front", method: http.MethodPost, path: "/api/flashcards", token: token,
			body: CreateFlashcardRequest{FrontContent: "   ", BackContent: "A"}, status: http.StatusBadRequest},
		{name: "front too long", method: http.MethodPost, path: "/api/flashcards", token: token,
			body: CreateFlashcardRequest{FrontContent: strings.Repeat("x", 1001), BackContent: "A"}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := a.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
		})
	}
}

func TestGenerationEndpoints(t *testing.T) {
	a := newTestAPI(t, apiOptions{})
	token := a.loginAs(t, "learner")
	otherToken := a.loginAs(t, "snooper")

	resp := a.do(t, http.MethodPost, "/api/ai/sessions", token, CreateSessionRequest{InputText: sessionInput})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	created := decodeBody[CreateSessionResponse](t, resp)
	assert.Equal(t, domain.GenerationStatusPending, created.Status)
	sessionPath := "/api/ai/sessions/" + created.SessionID.String()

	resp = a.do(t, http.MethodGet, sessionPath, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decodeBody[SessionResponse](t, resp)
	assert.Equal(t, domain.GenerationStatusCompleted, session.Status)
	assert.Equal(t, 2, session.GeneratedCount)
	assert.Equal(t, "mock-model", session.AIModel)

	resp = a.do(t, http.MethodGet, sessionPath+"/suggestions", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	suggestions := decodeBody[SuggestionsResponse](t, resp)
	require.Len(t, suggestions.Suggestions, 2)

	t.Run("access checks", func(t *testing.T) {
		resp := a.do(t, http.MethodGet, sessionPath, otherToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = a.do(t, http.MethodGet, "/api/ai/sessions/"+uuid.NewString(), token, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp = a.do(t, http.MethodGet, "/api/ai/sessions/not-a-uuid", token, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("input too short", func(t *testing.T) {
		resp := a.do(t, http.MethodPost, "/api/ai/sessions", token, CreateSessionRequest{InputText: "too short"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("approve rejects unknown suggestion", func(t *testing.T) {
		resp := a.do(t, http.MethodPost, sessionPath+"/approve", token, ApproveSuggestionsRequest{
			ApprovedSuggestions: []ApprovedSuggestionRequest{
				{SuggestionID: suggestions.Suggestions[0].ID.String()},
				{SuggestionID: uuid.NewString()},
			},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("approve with edits", func(t *testing.T) {
		edited := "What generates ATP?"
		resp := a.do(t, http.MethodPost, sessionPath+"/approve", token, ApproveSuggestionsRequest{
			ApprovedSuggestions: []ApprovedSuggestionRequest{
				{SuggestionID: suggestions.Suggestions[0].ID.String(), FrontContent: &edited},
				{SuggestionID: suggestions.Suggestions[1].ID.String()},
			},
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, 2, decodeBody[ApproveSuggestionsResponse](t, resp).CreatedCount)

		resp = a.do(t, http.MethodGet, "/api/flashcards?source=GENERATED&sort=frontContent", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		page := decodeBody[service.GetFlashcardsResponse](t, resp)
		require.Len(t, page.Content, 2)
		assert.Equal(t, "What does ATP stand for?", page.Content[0].FrontContent)
		assert.Equal(t, edited, page.Content[1].FrontContent)

		resp = a.do(t, http.MethodGet, sessionPath, token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 2, decodeBody[SessionResponse](t, resp).AcceptedCount)
	})

	t.Run("approve by another user", func(t *testing.T) {
		resp := a.do(t, http.MethodPost, sessionPath+"/approve", otherToken, ApproveSuggestionsRequest{
			ApprovedSuggestions: []ApprovedSuggestionRequest{{SuggestionID: suggestions.Suggestions[0].ID.String()}},
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("empty approval", func(t *testing.T) {
		resp := a.do(t, http.MethodPost, sessionPath+"/approve", token, ApproveSuggestionsRequest{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGenerationEndpoints_Disabled(t *testing.T) {
	a := newTestAPI(t, apiOptions{generationDisabled: true})
	token := a.loginAs(t, "learner")

	resp := a.do(t, http.MethodPost, "/api/ai/sessions", token, CreateSessionRequest{InputText: sessionInput})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "Flashcard generation is currently unavailable", decodeBody[shared.ErrorResponse](t, resp).Error)
}

func TestErrorResponsesDoNotLeakInternals(t *testing.T) {
	a := newTestAPI(t, apiOptions{})

	resp := a.do(t, http.MethodPost, "/api/auth/login", "",
		LoginRequest{Username: "nobody", Password: testPassword})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decodeBody[shared.ErrorResponse](t, resp)
	assert.NotEmpty(t, body.TraceID)
	assert.Equal(t, resp.Header.Get("X-Trace-ID"), body.TraceID)
	logger.AssertLogNotContains(t, a.logs, testPassword)
}
