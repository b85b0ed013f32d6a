package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/keyline-id/keyline/internal/identity"
)

type stubLookup struct {
	users    map[string]identity.User
	accounts []identity.LinkedAccount
	findErr  error
}

func (s *stubLookup) GetUserWithAccounts(ctx context.Context, internalID string) (identity.User, error) {
	user, ok := s.users[internalID]
	if !ok {
		return identity.User{}, identity.ErrUserNotFound
	}
	return user, nil
}

func (s *stubLookup) FindAccounts(ctx context.Context, filter identity.AccountFilter) ([]identity.LinkedAccount, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.accounts, nil
}

func newTestHandler(testContext *testing.T, lookup identity.Lookup) http.Handler {
	testContext.Helper()
	gin.SetMode(gin.TestMode)

	identityService, err := identity.NewService(identity.ServiceConfig{Lookup: lookup})
	if err != nil {
		testContext.Fatalf("failed to create identity service: %v", err)
	}
	handler, err := NewHTTPHandler(Dependencies{
		IdentityService: identityService,
		Logger:          zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to create handler: %v", err)
	}
	return handler
}

func TestNewHTTPHandlerRequiresIdentityService(testContext *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); err == nil {
		testContext.Fatalf("expected missing identity service to be rejected")
	}
}

func TestHandleDescribeUserReturnsDescriptor(testContext *testing.T) {
	handler := newTestHandler(testContext, &stubLookup{
		users: map[string]identity.User{
			"u1": {
				InternalID:  "u1",
				DisplayName: "Ada",
				LinkedAccounts: []identity.LinkedAccount{
					{Provider: identity.AuthMethodDiscord, ProviderAccountID: "acc42", UserID: "u1"},
				},
			},
		},
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/users/u1/identity", nil)
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected ok status, got %d", recorder.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		testContext.Fatalf("failed to decode response: %v", err)
	}
	if payload["id"] != "acc42" || payload["auth_method"] != "discord" {
		testContext.Fatalf("unexpected descriptor payload: %v", payload)
	}
}

func TestHandleDescribeUserReportsUnknownUser(testContext *testing.T) {
	handler := newTestHandler(testContext, &stubLookup{users: map[string]identity.User{}})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/users/ghost/identity", nil)
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNotFound {
		testContext.Fatalf("expected not found status, got %d", recorder.Code)
	}
	expected := `{"error":"user_not_found"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleResolveBatchReturnsPositionalResults(testContext *testing.T) {
	handler := newTestHandler(testContext, &stubLookup{
		accounts: []identity.LinkedAccount{
			{Provider: identity.AuthMethodDiscord, ProviderAccountID: "acc42", UserID: "u99"},
		},
	})

	body := `{"entries":[{"external_id":"u1","auth_method":"local"},{"external_id":"acc42","auth_method":"discord"}]}`
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/identities/resolve", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected ok status, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var payload resolveResponsePayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		testContext.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.Results) != 2 || payload.Results[0] != "u1" || payload.Results[1] != "u99" {
		testContext.Fatalf("unexpected results: %v", payload.Results)
	}
	if len(payload.Diagnostics) != 0 {
		testContext.Fatalf("expected no diagnostics, got %v", payload.Diagnostics)
	}
	if !payload.Resolutions[1].Resolved {
		testContext.Fatalf("expected second position to be resolved")
	}
}

func TestHandleResolveBatchReportsUnresolvedPosition(testContext *testing.T) {
	handler := newTestHandler(testContext, &stubLookup{})

	body := `{"entries":[{"external_id":"u1","auth_method":"local"},{"external_id":"acc42","auth_method":"discord"}]}`
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/identities/resolve", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected ok status, got %d", recorder.Code)
	}
	var payload resolveResponsePayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		testContext.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.Results) != 2 || payload.Results[1] != "acc42" {
		testContext.Fatalf("unexpected results: %v", payload.Results)
	}
	if len(payload.Diagnostics) != 1 || payload.Diagnostics[0].Index != 1 {
		testContext.Fatalf("expected diagnostic for index 1, got %v", payload.Diagnostics)
	}
	if payload.Diagnostics[0].Reason != identity.ReasonUnresolvedMapping {
		testContext.Fatalf("unexpected diagnostic reason %q", payload.Diagnostics[0].Reason)
	}
}

func TestHandleResolveBatchRejectsUnknownAuthMethod(testContext *testing.T) {
	handler := newTestHandler(testContext, &stubLookup{})

	body := `{"entries":[{"external_id":"x","auth_method":"github"}]}`
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/identities/resolve", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
	expected := `{"error":"invalid_auth_method"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleResolveBatchRejectsMalformedPayload(testContext *testing.T) {
	handler := newTestHandler(testContext, &stubLookup{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/identities/resolve", strings.NewReader("{"))
	request.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
}

func TestHandleResolveBatchReportsLookupFailure(testContext *testing.T) {
	handler := newTestHandler(testContext, &stubLookup{findErr: errors.New("connection refused")})

	body := `{"entries":[{"external_id":"acc42","auth_method":"discord"}]}`
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/identities/resolve", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadGateway {
		testContext.Fatalf("expected bad gateway status, got %d", recorder.Code)
	}
	expected := `{"error":"lookup_failed"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleHealthReportsOK(testContext *testing.T) {
	handler := newTestHandler(testContext, &stubLookup{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected ok status, got %d", recorder.Code)
	}
}
