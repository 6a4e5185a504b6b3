package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/novelmemory"
	"github.com/BaSui01/novelmemory/config"
	"github.com/BaSui01/novelmemory/types"
)

const scenarioYAML = `
project: novel-1
steps:
  - op: update
    scope: global
    content: 角色X拥有木属性灵根
    content_type: 角色
  - op: consistency
    content: 角色X现在是火属性修炼者
  - op: update
    scope: chapter
    chapter_id: c1
    content: 林远在藏经阁找到残卷
    content_type: 场景
    importance: 6
  - op: search
    scope: chapter
    query: 藏经阁
    max_results: 3
  - op: context
    scope: chapter
    chapter_id: c1
    task: draft
  - op: completeness
    scope: chapter
    chapter_id: c1
  - op: compress
    scope: chapter
  - op: maintain
  - op: stats
`

func TestParseScenario(t *testing.T) {
	t.Parallel()

	s, err := ParseScenario([]byte(scenarioYAML))
	require.NoError(t, err)
	assert.Equal(t, "novel-1", s.Project)
	require.Len(t, s.Steps, 9)
	assert.Equal(t, types.ScopeChapter, s.Steps[2].Scope)
	assert.Equal(t, 6, s.Steps[2].Importance)

	_, err = ParseScenario([]byte("steps: []"))
	assert.Error(t, err)
	_, err = ParseScenario([]byte("project: p\nsteps:\n  - op: explode\n"))
	assert.ErrorContains(t, err, "unknown op")
	_, err = ParseScenario([]byte("project: p\nsteps:\n  - op: search\n    scope: book\n"))
	assert.Error(t, err)
}

func TestReplay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := ParseScenario([]byte(scenarioYAML))
	require.NoError(t, err)

	svc, err := novelmemory.New(config.DefaultConfig(), zap.NewNop(), novelmemory.WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer svc.Close(ctx)

	var out bytes.Buffer
	require.NoError(t, Replay(ctx, svc, s, &out))

	var results []map[string]any
	sc := bufio.NewScanner(&out)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var r map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		results = append(results, r)
	}
	require.Len(t, results, 9)

	for i, r := range results {
		assert.Equal(t, float64(i+1), r["step"])
	}
	assert.Equal(t, true, results[0]["ok"])

	consistency := results[1]["result"].(map[string]any)
	assert.Equal(t, false, consistency["is_consistent"])

	hits := results[3]["result"].([]any)
	assert.Len(t, hits, 1)

	bundle := results[4]["result"].(map[string]any)
	assert.NotEmpty(t, bundle["items"])

	assert.Equal(t, true, results[6]["ok"])
	assert.Equal(t, true, results[8]["ok"])
}

func TestReplay_CancelledContext(t *testing.T) {
	t.Parallel()

	s, err := ParseScenario([]byte(scenarioYAML))
	require.NoError(t, err)
	svc, err := novelmemory.New(nil, nil, novelmemory.WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer svc.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	assert.ErrorIs(t, Replay(ctx, svc, s, &out), context.Canceled)
	assert.Zero(t, out.Len())
}
