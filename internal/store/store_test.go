package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/rttop/internal/domain"
)

func openMemory(t *testing.T, policy domain.ScorePolicy) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := Open(ctx, ":memory:", policy, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ResetSchema(ctx))
	return s
}

func TestDriverFor(t *testing.T) {
	require.Equal(t, "sqlite", driverFor(":memory:"))
	require.Equal(t, "sqlite", driverFor("movies_rt.sqlite"))
	require.Equal(t, "sqlite", driverFor("file:movies.db?_pragma=foreign_keys(1)"))
	require.Equal(t, "libsql", driverFor("libsql://movies.turso.io"))
	require.Equal(t, "libsql", driverFor("http://127.0.0.1:8080"))
}

func TestResetSchema_SeedsRatingsAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t, domain.ScorePolicyZero)

	_, err := s.InsertMovie(ctx, domain.NewMovieRecord("Heat", "R", domain.KnownScore(88), domain.KnownScore(94)))
	require.NoError(t, err)

	require.NoError(t, s.ResetSchema(ctx))
	require.NoError(t, s.ResetSchema(ctx))

	names, err := s.Ratings(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"G", "PG", "PG-13", "R", "No Rating"}, names)

	n, err := s.CountMovies(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n, "重建后 movies 应为空")

	// movie_id 从 1 重新开始，依次递增。
	recs := []domain.MovieRecord{
		domain.NewMovieRecord("Up", "PG", domain.KnownScore(98), domain.KnownScore(90)),
		domain.NewMovieRecord("Alien", "R", domain.KnownScore(93), domain.KnownScore(94)),
		domain.NewMovieRecord("Babe", "G", domain.KnownScore(97), domain.KnownScore(69)),
	}
	for i, rec := range recs {
		id, err := s.InsertMovie(ctx, rec)
		require.NoError(t, err)
		require.EqualValues(t, i+1, id)
	}

	n, err = s.CountMovies(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	names, err = s.Ratings(ctx)
	require.NoError(t, err)
	require.Len(t, names, 5, "插入电影不改变分级表")
}

func TestMovies_FilterLimitAndOrder(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t, domain.ScorePolicyZero)

	recs := []domain.MovieRecord{
		domain.NewMovieRecord("A", "R", domain.KnownScore(90), domain.KnownScore(80)),
		domain.NewMovieRecord("B", "PG", domain.KnownScore(70), domain.KnownScore(60)),
		domain.NewMovieRecord("C", "R", domain.KnownScore(50), domain.KnownScore(40)),
		domain.NewMovieRecord("D", "R", domain.KnownScore(30), domain.KnownScore(20)),
		domain.NewMovieRecord("E", "no rating", domain.Score{}, domain.Score{}),
	}
	require.NoError(t, s.InsertMovies(ctx, recs))

	rows, err := s.Movies(ctx, Filter{Rating: domain.RatingR, Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "A", rows[0].Name)
	require.Equal(t, "C", rows[1].Name)
	require.Equal(t, domain.KnownScore(90), rows[0].Critic)
	require.Equal(t, domain.KnownScore(40), rows[1].Audience)

	rows, err = s.Movies(ctx, Filter{Rating: domain.RatingR})
	require.NoError(t, err)
	require.Len(t, rows, 3, "Limit<=0 表示不限")

	rows, err = s.Movies(ctx, Filter{Rating: domain.RatingG, Limit: 10})
	require.NoError(t, err)
	require.Empty(t, rows)

	// 零值策略：未知分数存为 0，读回为已知的 0。
	rows, err = s.Movies(ctx, Filter{Rating: domain.RatingUnrated, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, domain.KnownScore(0), rows[0].Critic)

	_, err = s.Movies(ctx, Filter{Rating: domain.RatingClass(9)})
	require.Error(t, err)
}

func TestMovies_LabelPolicy(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t, domain.ScorePolicyLabel)

	_, err := s.InsertMovie(ctx, domain.NewMovieRecord("no name", "no rating", domain.Score{}, domain.KnownScore(55)))
	require.NoError(t, err)

	var critic any
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT tomatometer FROM movies`).Scan(&critic))
	require.EqualValues(t, "no tomatometer", critic)

	rows, err := s.Movies(ctx, Filter{Rating: domain.RatingUnrated, Limit: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.False(t, rows[0].Critic.Valid, "文本分数读回应视为未知")
	require.Equal(t, domain.KnownScore(55), rows[0].Audience)
}

func TestOpen_FileDatabasePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "movies_rt.sqlite")

	s, err := Open(ctx, path, domain.ScorePolicyZero, nil)
	require.NoError(t, err)
	require.NoError(t, s.ResetSchema(ctx))
	_, err = s.InsertMovie(ctx, domain.NewMovieRecord("Heat", "R", domain.KnownScore(88), domain.KnownScore(94)))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, domain.ScorePolicyZero, nil)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.CountMovies(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "  ", domain.ScorePolicyZero, nil)
	require.Error(t, err)
}
