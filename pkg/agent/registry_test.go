package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harun/mcplink/pkg/rpcsession"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *[]*Client) {
	t.Helper()
	tools := newToolServer(t)
	var created []*Client
	r := NewDefaultRegistry(RegistryConfig{
		Logger:    zerolog.Nop(),
		Connector: inMemoryConnector(t, tools.MCPServer()),
		OnCreate: func(c *Client) {
			created = append(created, c)
		},
	})
	t.Cleanup(func() {
		for _, c := range r.StopAll() {
			select {
			case <-c.Done():
			case <-time.After(5 * time.Second):
				t.Error("client did not stop")
			}
		}
	})
	return r, &created
}

func fastConfig(p Provider) *Config {
	cfg := p.DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	return &cfg
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(RegistryConfig{Logger: zerolog.Nop()})

	require.NoError(t, r.Register(Variant{ID: "local", Provider: NewOllamaProvider()}))
	assert.Error(t, r.Register(Variant{ID: "local", Provider: NewOllamaProvider()}))
	assert.Error(t, r.Register(Variant{ID: "", Provider: NewOllamaProvider()}))
	assert.Error(t, r.Register(Variant{ID: "nil"}))

	v, ok := r.Variant("local")
	require.True(t, ok)
	assert.Equal(t, "LocalOllama", v.Info().Name)
}

func TestRegistry_DefaultVariants(t *testing.T) {
	r := NewDefaultRegistry(RegistryConfig{Logger: zerolog.Nop()})

	var ids []string
	for _, v := range r.Variants() {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []string{"deepseek", "ollama", "siliconflow"}, ids)
}

func TestRegistry_TryStartUnknown(t *testing.T) {
	r := NewDefaultRegistry(RegistryConfig{Logger: zerolog.Nop()})
	_, err := r.TryStart(context.Background(), "missing", nil)
	assert.Error(t, err)
}

func TestRegistry_TryStartReusesRunningClient(t *testing.T) {
	r, created := newTestRegistry(t)

	first, err := r.TryStart(context.Background(), "ollama", fastConfig(NewOllamaProvider()))
	require.NoError(t, err)
	require.Eventually(t, first.IsRunning, 2*time.Second, 5*time.Millisecond)

	cfg := fastConfig(NewOllamaProvider())
	cfg.Model = "qwen2.5:7b"
	second, err := r.TryStart(context.Background(), "ollama", cfg)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, *created, 1)
	assert.Equal(t, "qwen2.5:7b", second.Config().Model)

	got, ok := r.Get("ollama")
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestRegistry_TryStartAfterStopCreatesNewClient(t *testing.T) {
	r, created := newTestRegistry(t)

	first, err := r.TryStart(context.Background(), "deepseek", fastConfig(NewOpenAIProvider()))
	require.NoError(t, err)

	stopped := r.Stop("deepseek")
	assert.Same(t, first, stopped)
	assert.True(t, stopped.ShouldStop())
	_, ok := r.Get("deepseek")
	assert.False(t, ok)

	second, err := r.TryStart(context.Background(), "deepseek", fastConfig(NewOpenAIProvider()))
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Len(t, *created, 2)

	select {
	case <-first.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stopped client did not exit")
	}
}

func TestRegistry_TryStartReplacesFinishedClient(t *testing.T) {
	attempts := 0
	r := NewDefaultRegistry(RegistryConfig{
		Logger: zerolog.Nop(),
		Connector: func(ctx context.Context, url string) (rpcsession.Session, error) {
			attempts++
			return nil, errors.New("refused")
		},
	})

	first, err := r.TryStart(context.Background(), "siliconflow", nil)
	require.NoError(t, err)
	select {
	case <-first.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not finish")
	}
	var connErr *TransportConnectError
	assert.ErrorAs(t, first.Err(), &connErr)

	second, err := r.TryStart(context.Background(), "siliconflow", nil)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	<-second.Done()
	assert.Equal(t, 2, attempts)
}

func TestRegistry_StopUnknown(t *testing.T) {
	r := NewDefaultRegistry(RegistryConfig{Logger: zerolog.Nop()})
	assert.Nil(t, r.Stop("deepseek"))
	assert.Empty(t, r.StopAll())
}
