package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingMiddleware_RecordsStatusAndUser(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	secret := "test-secret"
	userID := uuid.New()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	tokenString, _ := token.SignedString([]byte(secret))

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	handler := LoggingMiddleware(logger)(AuthMiddleware(secret, zap.NewNop())(inner))

	req := httptest.NewRequest("POST", "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("Request completed").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one log entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry.Level != zapcore.WarnLevel {
		t.Errorf("Expected warn level for 400, got %v", entry.Level)
	}
	fields := entry.ContextMap()
	if fields["status"] != int64(http.StatusBadRequest) {
		t.Errorf("Unexpected status field: %v", fields["status"])
	}
	if fields["user_id"] != userID.String() {
		t.Errorf("Unexpected user_id field: %v", fields["user_id"])
	}
}

func TestLevelForStatus(t *testing.T) {
	cases := map[int]zapcore.Level{
		200: zapcore.InfoLevel,
		201: zapcore.InfoLevel,
		404: zapcore.WarnLevel,
		429: zapcore.WarnLevel,
		500: zapcore.ErrorLevel,
	}
	for status, want := range cases {
		if got := levelForStatus(status); got != want {
			t.Errorf("status %d: expected %v, got %v", status, want, got)
		}
	}
}
