package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/confessions/internal/auth"
	"github.com/MarcoPoloResearchLab/confessions/internal/confessions"
	"github.com/MarcoPoloResearchLab/confessions/internal/database"
	"go.uber.org/zap"
)

const (
	testSigningSecret = "integration-secret"
	testIssuer        = "confessions-auth"
	testAudience      = "confessions-api"
)

var databaseSequence atomic.Int64

type testServerOptions struct {
	dedupeVotes     bool
	postingCooldown time.Duration
	logger          *zap.Logger
}

func newTestRouter(t *testing.T, options testServerOptions) (http.Handler, *auth.TokenIssuer) {
	t.Helper()

	dsn := fmt.Sprintf("file:server_%d?mode=memory&cache=shared", databaseSequence.Add(1))
	db, err := database.Open(database.Config{Driver: database.DriverSQLite, DSN: dsn}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	service, err := confessions.NewService(confessions.ServiceConfig{
		Database:    db,
		IDProvider:  confessions.NewUUIDProvider(),
		DedupeVotes: options.dedupeVotes,
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		Audience:      testAudience,
		TokenTTL:      time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to build token issuer: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		ConfessionsService: service,
		TokenIssuer:        issuer,
		Logger:             options.logger,
		AllowedOrigins:     []string{"*"},
		PostingCooldown:    options.postingCooldown,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return handler, issuer
}

func newJSONRequest(method, target, body, token string) *http.Request {
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	request, _ := http.NewRequest(method, target, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	request.RemoteAddr = "192.0.2.10:4321"
	return request
}

func decodeBody[T any](t *testing.T, body []byte) T {
	t.Helper()
	var decoded T
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("failed to decode response %s: %v", string(body), err)
	}
	return decoded
}

type stubTokenIssuer struct{}

func (stubTokenIssuer) IssueAnonymousToken(context.Context) (auth.AnonymousToken, error) {
	return auth.AnonymousToken{}, nil
}

func (stubTokenIssuer) ValidateToken(string) (string, error) {
	return "", nil
}
