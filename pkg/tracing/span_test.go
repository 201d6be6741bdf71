package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseBuildsTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "merge-round", "trace-1")
	boom := errors.New("boom")

	require.NoError(t, Phase(ctx, "load", func(ctx context.Context) error {
		SpanFromContext(ctx).SetAttr("files", 3)
		return nil
	}))
	assert.ErrorIs(t, Phase(ctx, "save", func(context.Context) error { return boom }), boom)
	root.End()

	require.Len(t, root.Children, 2)
	assert.Equal(t, "load", root.Children[0].Name)
	assert.Equal(t, "trace-1", root.Children[0].TraceID)
	assert.Equal(t, 3, root.Children[0].Attrs["files"])
	assert.Equal(t, boom, root.Children[1].Err)
}

func TestChildWithoutParentIsRoot(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	assert.Len(t, span.TraceID, 32)
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx, root := StartSpan(context.Background(), "round", "t")
	_ = Phase(ctx, "child", func(context.Context) error { return nil })
	root.End()
	root.Log(logger)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "span=round")
	assert.Contains(t, lines[1], "depth=1")
}
