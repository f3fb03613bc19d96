package logging

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/questd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func encodeWith(t *testing.T, fields ...zap.Field) string {
	t.Helper()
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	buf, err := enc.EncodeEntry(zapcore.Entry{
		Level:   zapcore.InfoLevel,
		Time:    time.Unix(0, 0),
		Message: "login",
	}, fields)
	require.NoError(t, err)
	defer buf.Free()
	return buf.String()
}

func TestRedactingEncoder_SensitiveKeys(t *testing.T) {
	out := encodeWith(t,
		zap.String("password", "hunter22"),
		zap.String("access_token", "eyJhbGciOi.payload.sig"),
		zap.String("username", "ada"),
	)

	assert.NotContains(t, out, "hunter22")
	assert.NotContains(t, out, "eyJhbGciOi")
	assert.Contains(t, out, `"username":"ada"`)
	assert.Contains(t, out, `"password":"[REDACTED]"`)
}

func TestRedactingEncoder_Patterns(t *testing.T) {
	out := encodeWith(t,
		zap.String("header", "Bearer abc.def.ghi"),
		zap.String("hash", "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"),
	)

	assert.NotContains(t, out, "abc.def.ghi")
	assert.NotContains(t, out, "N9qo8uLOickgx2ZMRZoMye")
	assert.Contains(t, out, "[REDACTED:pattern]")
}

func TestRedactingEncoder_WithFields(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	clone := enc.Clone()
	zap.String("api_key", "AIza-123").AddTo(clone)

	buf, err := clone.EncodeEntry(zapcore.Entry{Message: "planner ready"}, nil)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "AIza-123")
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{})
	require.NoError(t, err)

	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "m"}, []zap.Field{zap.String("password", "plain")})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "plain")
}

func TestNewRedactingEncoder_InvalidPattern(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{
		Enabled:  true,
		Patterns: []string{"(unclosed"},
	})
	assert.Error(t, err)
}

func TestSecretAndRedactedString(t *testing.T) {
	logger := NewTestLogger()

	logger.Info(context.Background(), "configured",
		Secret("api_key", config.Secret("AIza-0123456789")),
		RedactedString("token", "abc"),
	)

	logger.AssertField(t, "configured", "api_key", "[REDACTED:15]")
	logger.AssertField(t, "configured", "token", "[REDACTED:3]")
}
