package sender

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everlydev/synapsys/pkg/domain"
)

func newTestMessage(t *testing.T, sender, content string) domain.ApplicationMessage {
	t.Helper()
	msg, err := domain.NewApplicationMessage(sender, content, nil)
	require.NoError(t, err)
	return msg
}

func TestSelectPrefersLowerPriority(t *testing.T) {
	store := &countingStore{configs: map[string]domain.SenderConfig{"acme": validConfig("acme")}}
	registry := NewRegistry(store)
	registryStrategy := NewRegistryStrategy(registry, nil)
	fallback := NewDefaultStrategy("")

	strategies := SortStrategies([]Strategy{fallback, registryStrategy})

	selected, err := Select(strategies, "acme")
	require.NoError(t, err)
	assert.Same(t, registryStrategy, selected)

	selected, err = Select(strategies, "ghost")
	require.NoError(t, err)
	assert.Same(t, fallback, selected)
}

func TestRegistryStrategyCompletesFromRecord(t *testing.T) {
	store := &countingStore{configs: map[string]domain.SenderConfig{
		"acme": {
			SenderID:            "acme",
			ClientKey:           "k",
			ProviderID:          "gemini",
			Model:               "gemini-2.0-flash",
			FileSearchStoreName: "acme-docs",
		},
	}}
	registry := NewRegistry(store)
	strategy := NewRegistryStrategy(registry, NewCompositeAugmenter(FileSearchStoreAugmenter{}))

	msg := newTestMessage(t, "acme", "hello")
	msg.Context["tenant"] = "t1"

	req, err := strategy.Complete(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "acme", req.Sender)
	assert.Equal(t, "gemini", req.Provider)
	assert.Equal(t, "gemini-2.0-flash", req.ModelVersion)
	assert.Empty(t, req.SystemInstruction, "strategies never set the system instruction")
	assert.Equal(t, "t1", req.Context["tenant"])
	assert.Equal(t, "acme-docs", req.Context[domain.ContextKeyFileSearchStore])
	assert.NotContains(t, msg.Context, domain.ContextKeyFileSearchStore, "caller context is not mutated")
}

func TestDefaultStrategyCatchAll(t *testing.T) {
	strategy := NewDefaultStrategy("")

	assert.True(t, strategy.AppliesTo("anyone"))
	assert.True(t, strategy.AppliesTo(""))

	req, err := strategy.Complete(context.Background(), newTestMessage(t, "someone", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "gemini", req.Provider)
	assert.Empty(t, req.ModelVersion)
}

func TestFileSearchStoreAugmenterSkipsOtherProviders(t *testing.T) {
	augmenter := NewCompositeAugmenter(FileSearchStoreAugmenter{})
	cfg := domain.SenderConfig{ProviderID: "ollama", FileSearchStoreName: "docs"}

	out := augmenter.Augment(map[string]any{"a": 1}, cfg)
	assert.NotContains(t, out, domain.ContextKeyFileSearchStore)
}
