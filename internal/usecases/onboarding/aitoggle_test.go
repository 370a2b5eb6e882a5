package onboarding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCache is an in-memory cache.Cache without TTL expiry.
type fakeCache struct {
	values map[string]string
	err    error
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]string)}
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.values[key], nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if c.err != nil {
		return c.err
	}
	c.values[key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	delete(c.values, key)
	return nil
}

func (c *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	_, ok := c.values[key]
	return ok, nil
}

func (c *fakeCache) Close() error { return nil }

func TestAIToggleDefaultsEnabled(t *testing.T) {
	toggle := NewAIToggle(nil, discardLogger())
	assert.True(t, toggle.Enabled())

	// No store to reconcile against; the in-memory value stands.
	require.NoError(t, toggle.Reconcile(context.Background()))
	assert.True(t, toggle.Enabled())
}

func TestAIToggleReconcile(t *testing.T) {
	cache := newFakeCache()
	toggle := NewAIToggle(cache, discardLogger())
	ctx := context.Background()

	// Missing key means enabled.
	require.NoError(t, toggle.Reconcile(ctx))
	assert.True(t, toggle.Enabled())

	// Only an explicit "false" disables.
	cache.values[aiToggleKey] = "false"
	require.NoError(t, toggle.Reconcile(ctx))
	assert.False(t, toggle.Enabled())

	cache.values[aiToggleKey] = "off"
	require.NoError(t, toggle.Reconcile(ctx))
	assert.True(t, toggle.Enabled())

	// Deleting the key re-enables.
	cache.values[aiToggleKey] = "false"
	require.NoError(t, toggle.Reconcile(ctx))
	assert.False(t, toggle.Enabled())

	delete(cache.values, aiToggleKey)
	require.NoError(t, toggle.Reconcile(ctx))
	assert.True(t, toggle.Enabled())
}

func TestAIToggleReconcileKeepsValueOnStoreError(t *testing.T) {
	cache := newFakeCache()
	cache.values[aiToggleKey] = "false"
	toggle := NewAIToggle(cache, discardLogger())
	ctx := context.Background()

	require.NoError(t, toggle.Reconcile(ctx))
	require.False(t, toggle.Enabled())

	cache.err = errors.New("connection refused")
	assert.Error(t, toggle.Reconcile(ctx))
	// The last known value survives a store outage.
	assert.False(t, toggle.Enabled())
}

func TestDisabledToggleSkipsExtractor(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	user := seedUser(repo, &domain.User{
		ID:           "toggled",
		Phone:        &phone,
		ChatbotState: domain.StateAwaitingName,
	})

	called := false
	extractor := &fakeExtractor{fn: func(ctx context.Context, query, prev string) (*domain.ExtractionResult, error) {
		called = true
		return &domain.ExtractionResult{Name: strPtr("Modelo"), Confidence: 0.9}, nil
	}}

	cache := newFakeCache()
	cache.values[aiToggleKey] = "false"

	svc := newTestService(repo, extractor)
	svc.AIToggle = NewAIToggle(cache, discardLogger())
	require.NoError(t, svc.AIToggle.Reconcile(context.Background()))

	_, err := svc.HandleInbound(context.Background(), domain.InboundMessage{
		FromID:  phone,
		Text:    "Valentina",
		Channel: domain.ChannelWhatsApp,
	})
	require.NoError(t, err)

	assert.False(t, called)
	saved := repo.mustGet(user.ID)
	require.NotNil(t, saved.Name)
	assert.Equal(t, "Valentina", *saved.Name)
}
