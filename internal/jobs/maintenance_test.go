package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/dandantas/agenda/internal/agenda"
	"github.com/dandantas/agenda/internal/model"
	"github.com/dandantas/agenda/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenance_Provider(t *testing.T) {
	m := NewMaintenance(agenda.New(agenda.Config{}, agenda.NewMemoryStore()), time.Hour)

	provider := m.Provider("1 day")
	assert.Equal(t, ProviderToken, provider.Token)
	assert.Equal(t, scheduler.ProviderTypeAgenda, provider.Type)
	assert.Same(t, m, provider.Instance)

	meta := scheduler.GetMetadata(provider.Store)
	assert.Equal(t, Namespace, meta.Namespace)
	require.Contains(t, meta.Every, "PurgeFinished")
	assert.Equal(t, "1 day", meta.Every["PurgeFinished"].Interval)
	assert.True(t, meta.Every["PurgeFinished"].SkipImmediate)
	require.Contains(t, meta.Define, "PurgeFinished")
}

func TestMaintenance_PurgeFinished(t *testing.T) {
	store := agenda.NewMemoryStore()
	client := agenda.New(agenda.Config{}, store)
	ctx := context.Background()

	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	old := now.Add(-48 * time.Hour)
	recent := now.Add(-10 * time.Minute)
	next := now.Add(time.Hour)

	seed := []*model.Job{
		{Name: "report", Type: model.JobTypeNormal, LastFinishedAt: &old},
		{Name: "report", Type: model.JobTypeNormal, LastFinishedAt: &recent},
		{Name: "report", Type: model.JobTypeNormal, LastFinishedAt: &old, NextRunAt: &next},
		{Name: "pending", Type: model.JobTypeNormal, NextRunAt: &next},
	}
	for _, job := range seed {
		_, err := store.Save(ctx, job)
		require.NoError(t, err)
	}

	m := NewMaintenance(client, 24*time.Hour)
	m.now = func() time.Time { return now }

	require.NoError(t, m.PurgeFinished(ctx, client.Create("agenda.purgeFinished", nil)))

	remaining, total, err := client.Jobs(ctx, model.JobQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	for _, job := range remaining {
		attrs := job.Attrs()
		if attrs.NextRunAt == nil {
			assert.True(t, attrs.LastFinishedAt.Equal(recent))
		}
	}
}
