package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/admissions-portal/internal/models"
	appErrors "github.com/noah-isme/admissions-portal/pkg/errors"
)

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	repo := NewCacheRepository(client, zap.NewNop())
	t.Cleanup(func() { _ = repo.Close() })
	return repo, srv
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	repo, srv := newCacheRepo(t)
	ctx := context.Background()

	types := []models.DocumentType{{Code: "BIRTH_CERTIFICATE", Label: "Birth Certificate"}}
	require.NoError(t, repo.Set(ctx, "admissions:document-types", types, time.Minute))
	require.True(t, srv.Exists("admissions:document-types"))

	var got []models.DocumentType
	require.NoError(t, repo.Get(ctx, "admissions:document-types", &got))
	require.Equal(t, "Birth Certificate", got[0].Label)

	srv.FastForward(2 * time.Minute)
	err := repo.Get(ctx, "admissions:document-types", &got)
	require.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDelete(t *testing.T) {
	repo, srv := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "admissions:document-types", []string{"a"}, time.Minute))
	require.NoError(t, repo.Delete(ctx, "admissions:document-types", "admissions:absent"))
	require.False(t, srv.Exists("admissions:document-types"))
	require.NoError(t, repo.Delete(ctx))
}

func TestCacheRepositoryReportsTransportErrors(t *testing.T) {
	repo, srv := newCacheRepo(t)
	srv.Close()

	var dest []string
	err := repo.Get(context.Background(), "admissions:document-types", &dest)
	require.Error(t, err)
	require.NotErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, zap.NewNop())
	var dest []string
	require.ErrorIs(t, repo.Get(context.Background(), "k", &dest), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Set(context.Background(), "k", dest, time.Minute))
	require.NoError(t, repo.Close())
}
