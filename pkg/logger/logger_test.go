package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: "debug", Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithOperationID(ctx, "op-456")

	log.Error(ctx, "boom", errors.New("boom"))

	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
	assert.Contains(t, buf.String(), `"operation_id":"op-456"`)
	assert.Contains(t, buf.String(), `"stack"`)
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: "debug", Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	assert.Contains(t, buf.String(), `"stack"`)

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Level: "debug", Output: buf})
	quiet.Warn(context.Background(), "warny")
	assert.NotContains(t, buf.String(), `"stack"`)
}

func TestLoggerFieldsDoNotLeakAcrossContexts(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	base := context.Background()
	tagged := log.WithFields(base, map[string]any{"order_id": "o-1"})

	log.Info(base, "plain")
	assert.NotContains(t, buf.String(), "o-1")

	log.Info(tagged, "tagged")
	assert.Contains(t, buf.String(), `"order_id":"o-1"`)
}

func TestParseLevelDefaults(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
}

func TestLoggerFormatsMoneyAndIDs(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	partyID := uuid.MustParse("5b1f6d4e-6a43-4c0f-9a8e-2f1d1e7a9c11")
	ctx := log.WithParty(context.Background(), "seller", partyID)
	ctx = log.WithFields(ctx, map[string]any{
		"amount":  decimal.RequireFromString("1500.5"),
		"missing": (*decimal.Decimal)(nil),
	})
	log.Info(ctx, "wallet movement recorded")

	out := buf.String()
	assert.Contains(t, out, `"amount":"1500.50"`)
	assert.Contains(t, out, `"party_id":"5b1f6d4e-6a43-4c0f-9a8e-2f1d1e7a9c11"`)
	assert.Contains(t, out, `"party_type":"seller"`)
	assert.Contains(t, out, `"missing":null`)
}

func TestDebugRespectsLevel(t *testing.T) {
	cases := map[string]bool{
		"":        false,
		"info":    false,
		"bogus":   false,
		"debug":   true,
		" Debug ": true,
	}
	for level, visible := range cases {
		t.Run("level="+level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			log := New(Options{ServiceName: "test", Level: level, Output: buf})
			log.Debug(context.Background(), "maybe")
			assert.Equal(t, visible, strings.Contains(buf.String(), "maybe"))
		})
	}
}
