package cronrunner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRunner_RunsJobWithBaseContext(t *testing.T) {
	type ctxKey struct{}
	base := context.WithValue(context.Background(), ctxKey{}, "base")
	r := New(nil, base)
	got := make(chan any, 1)
	_, err := r.Add("@every 1s", func(ctx context.Context) {
		select {
		case got <- ctx.Value(ctxKey{}):
		default:
		}
	})
	require.NoError(t, err)
	r.Start()
	defer r.Stop()

	select {
	case v := <-got:
		assert.Equal(t, "base", v)
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestRunner_RejectsBadSpec(t *testing.T) {
	r := New(nil, context.Background())
	_, err := r.Add("not a spec", func(context.Context) {})
	require.Error(t, err)
	assert.Equal(t, 0, r.Entries())
}

func TestZapLogger_Error(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	zl := zapLogger{l: zap.New(core)}
	zl.Error(errors.New("boom"), "panic", "job", "tick", 3)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "tick", fields["job"])
	assert.Equal(t, "boom", fields["error"])
}
