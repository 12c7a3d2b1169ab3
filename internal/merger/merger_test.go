package merger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracardi/tracker-core/internal/domain"
)

func TestInvoke_NoMergeKeysReturnsNil(t *testing.T) {
	m := New(func(ctx context.Context, mergeBy map[string]any, excludeID string, limit int) ([]*domain.Profile, error) {
		t.Fatal("lookup should not be called without merge keys")
		return nil, nil
	}, 1000)

	profile := domain.NewProfile(time.Now())
	merged, err := m.Invoke(context.Background(), profile, nil, true)

	assert.NoError(t, err)
	assert.Nil(t, merged)
}

func TestInvoke_NoCandidatesReturnsNil(t *testing.T) {
	m := New(func(ctx context.Context, mergeBy map[string]any, excludeID string, limit int) ([]*domain.Profile, error) {
		return nil, nil
	}, 1000)

	profile := domain.NewProfile(time.Now())
	merged, err := m.Invoke(context.Background(), profile, map[string]any{"email": "a@b.com"}, true)

	assert.NoError(t, err)
	assert.Nil(t, merged)
}

func TestInvoke_MergesDuplicateTraits(t *testing.T) {
	profile := domain.NewProfile(time.Now())
	profile.Traits = map[string]any{"name": "new-name"}

	duplicate := domain.NewProfile(time.Now())
	duplicate.Traits = map[string]any{"name": "old-name", "phone": "555-1234"}

	m := New(func(ctx context.Context, mergeBy map[string]any, excludeID string, limit int) ([]*domain.Profile, error) {
		require.Equal(t, profile.ID, excludeID)
		return []*domain.Profile{duplicate}, nil
	}, 1000)

	merged, err := m.Invoke(context.Background(), profile, map[string]any{"email": "a@b.com"}, true)

	require.NoError(t, err)
	require.NotNil(t, merged)
	assert.Equal(t, "new-name", merged.Traits["name"]) // surviving profile wins
	assert.Equal(t, "555-1234", merged.Traits["phone"])
	assert.True(t, merged.Operation.Update)
	assert.Nil(t, merged.Operation.MergeKeys)
}

func TestInvoke_OverrideFalseTakesDuplicateValue(t *testing.T) {
	profile := domain.NewProfile(time.Now())
	profile.Traits = map[string]any{"name": "new-name"}

	duplicate := domain.NewProfile(time.Now())
	duplicate.Traits = map[string]any{"name": "old-name"}

	m := New(func(ctx context.Context, mergeBy map[string]any, excludeID string, limit int) ([]*domain.Profile, error) {
		return []*domain.Profile{duplicate}, nil
	}, 1000)

	merged, err := m.Invoke(context.Background(), profile, map[string]any{"email": "a@b.com"}, false)

	require.NoError(t, err)
	require.NotNil(t, merged)
	assert.Equal(t, "old-name", merged.Traits["name"])
}
