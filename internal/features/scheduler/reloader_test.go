package scheduler

import (
	"context"
	"errors"
	"testing"

	"go-fleetreport/internal/features/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeReloader struct {
	calls  int
	result catalog.LoadResult
	err    error
}

func (f *fakeReloader) Reload(ctx context.Context) (catalog.LoadResult, error) {
	f.calls++
	return f.result, f.err
}

func TestCatalogReloader_Start(t *testing.T) {
	t.Run("blank schedule", func(t *testing.T) {
		r := NewCatalogReloader("", &fakeReloader{}, zap.NewNop())
		require.NoError(t, r.Start())
		_, ok := r.Next()
		assert.False(t, ok)
	})

	t.Run("invalid schedule", func(t *testing.T) {
		r := NewCatalogReloader("every tuesday", &fakeReloader{}, zap.NewNop())
		assert.Error(t, r.Start())
	})

	t.Run("scheduled", func(t *testing.T) {
		r := NewCatalogReloader("*/5 * * * *", &fakeReloader{}, zap.NewNop())
		require.NoError(t, r.Start())
		defer r.Stop()

		next, ok := r.Next()
		require.True(t, ok)
		assert.Zero(t, next.Minute()%5)
		assert.Error(t, r.Start())
	})
}

func TestCatalogReloader_RunOnce(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	target := &fakeReloader{result: catalog.LoadResult{
		Count:     2,
		HasErrors: true,
		Problems:  []catalog.Problem{{Severity: catalog.SeverityError, Message: "bad column"}},
	}}
	r := NewCatalogReloader("@hourly", target, zap.New(core))

	r.RunOnce(context.Background())
	assert.Equal(t, 1, target.calls)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())

	target.err = errors.New("file missing")
	r.RunOnce(context.Background())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}
