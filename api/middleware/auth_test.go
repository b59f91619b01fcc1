package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-backend/pkg/auth"
	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func bearer(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAuthRejectsUnusableTokens(t *testing.T) {
	foreign := testJWT
	foreign.Issuer = "someone-else"

	cases := map[string]string{
		"missing":        "",
		"garbage":        "invalid",
		"foreign issuer": mintTestToken(t, foreign, enums.RoleAdmin, uuid.New()),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			Auth(testJWT, nil)(okHandler()).ServeHTTP(resp, bearer(token))
			assert.Equal(t, http.StatusUnauthorized, resp.Code)
		})
	}
}

func TestAuthPopulatesIdentity(t *testing.T) {
	partyID := uuid.New()
	var (
		gotParty uuid.UUID
		gotRole  enums.Role
	)
	h := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotParty, _ = PartyIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, bearer(mintTestToken(t, testJWT, enums.RoleSeller, partyID)))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, partyID, gotParty)
	assert.Equal(t, enums.RoleSeller, gotRole)
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name    string
		allowed []enums.Role
		role    enums.Role
		userID  string
		want    int
	}{
		{"admin allowed", []enums.Role{enums.RoleAdmin}, enums.RoleAdmin, "", http.StatusOK},
		{"delivery on admin route", []enums.Role{enums.RoleAdmin}, enums.RoleDelivery, "", http.StatusForbidden},
		{"wallet role without party", []enums.Role{enums.RoleSeller, enums.RoleDelivery}, enums.RoleDelivery, "", http.StatusUnauthorized},
		{"wallet role with party", []enums.Role{enums.RoleSeller, enums.RoleDelivery}, enums.RoleDelivery, uuid.NewString(), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			ctx := WithRole(req.Context(), tc.role)
			if tc.userID != "" {
				ctx = WithUserID(ctx, tc.userID)
			}

			resp := httptest.NewRecorder()
			RequireRole(nil, tc.allowed...)(okHandler()).ServeHTTP(resp, req.WithContext(ctx))
			assert.Equal(t, tc.want, resp.Code)
		})
	}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, role enums.Role, userID uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{UserID: userID, Role: role})
	require.NoError(t, err)
	return token
}
