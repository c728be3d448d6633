package run

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/rttop/internal/domain"
	"github.com/John-Robertt/rttop/internal/infra/cache"
	"github.com/John-Robertt/rttop/internal/infra/httpx"
	"github.com/John-Robertt/rttop/internal/provider"
	"github.com/John-Robertt/rttop/internal/provider/rottentomatoes"
	"github.com/John-Robertt/rttop/internal/store"
)

const listingPage = `<html><body><table class="table">
<tr><th>Rank</th><th>Title</th></tr>
<tr><td>1.</td><td><a href="/m/movie_a">Movie A</a></td></tr>
<tr><td>2.</td><td><a href="/m/movie_b">Movie B</a></td></tr>
</table></body></html>`

const movieA = `<html><body>
<score-board class="scoreboard" rating="R" tomatometerscore="91" audiencescore="94">
<h1 class="scoreboard__title">movie a</h1>
</score-board></body></html>`

// movie_b 缺少观众分数。
const movieB = `<html><body>
<score-board class="scoreboard" rating="PG" tomatometerscore="75">
<h1 class="scoreboard__title">movie b</h1>
</score-board></body></html>`

type fixtureServer struct {
	*httptest.Server
	hits atomic.Int64
}

func newFixtureServer(t *testing.T, pages map[string]string) *fixtureServer {
	t.Helper()
	fs := &fixtureServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(fs.Close)
	return fs
}

type recordObserver struct {
	mu     sync.Mutex
	starts []string
	phases []string
	items  []domain.ItemResult
}

func (o *recordObserver) OnStart(g domain.Genre) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.starts = append(o.starts, g.Name)
}

func (o *recordObserver) OnPhaseDone(name string, _ map[string]any, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnItemDone(_ int, _ int, res domain.ItemResult, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, res)
}

func newScraper(t *testing.T, srv *fixtureServer, mem afero.Fs) (provider.Scraper, *cache.Store) {
	t.Helper()
	client, err := httpx.NewClient(httpx.Options{}, nil)
	require.NoError(t, err)
	pages := cache.Open(mem, "/cache.json", client, cache.WithWriteThrough(true))
	return provider.Scraper{
		Pages:    pages,
		Provider: rottentomatoes.Provider{BaseURL: srv.URL + "/top"},
	}, pages
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:", domain.ScorePolicyZero, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestExecute_FetchesPersistsAndReusesCache(t *testing.T) {
	srv := newFixtureServer(t, map[string]string{
		"/top/comedy": listingPage,
		"/m/movie_a":  movieA,
		"/m/movie_b":  movieB,
	})
	mem := afero.NewMemMapFs()
	genre := domain.Genre{Name: "comedy", URL: srv.URL + "/top/comedy"}
	ctx := context.Background()

	sc, _ := newScraper(t, srv, mem)
	st := openStore(t)
	obs := &recordObserver{}

	rr, err := Execute(ctx, sc, st, genre, obs)
	require.NoError(t, err)
	require.Equal(t, domain.ReportSummary{Movies: 2, Fetched: 2, Cached: 0, Fallbacks: 1}, rr.Summary)
	require.Equal(t, "Movie A", rr.Items[0].Title)
	require.Equal(t, "Movie B", rr.Items[1].Title)
	require.Equal(t, []domain.Fallback{domain.FallbackAudience}, rr.Items[1].Fallbacks)
	require.Nil(t, rr.Items[1].Audience)

	require.Equal(t, []string{"comedy"}, obs.starts)
	require.Equal(t, []string{"listing", "persist"}, obs.phases)
	require.Len(t, obs.items, 2)

	rows, err := st.Movies(ctx, store.Filter{Rating: domain.RatingR})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Movie A", rows[0].Name)
	require.Equal(t, domain.KnownScore(91), rows[0].Critic)

	require.EqualValues(t, 3, srv.hits.Load())

	// 第二次运行：同一缓存文件，全部命中，不再访问网络。
	sc2, pages2 := newScraper(t, srv, mem)
	require.Equal(t, 3, pages2.Len())
	rr2, err := Execute(ctx, sc2, st, genre, nil)
	require.NoError(t, err)
	require.Equal(t, 2, rr2.Summary.Cached)
	require.EqualValues(t, 3, srv.hits.Load())

	n, err := st.CountMovies(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestScrape_FetchErrorStopsRun(t *testing.T) {
	srv := newFixtureServer(t, map[string]string{
		"/top/comedy": listingPage,
		"/m/movie_a":  movieA,
	})
	sc, pages := newScraper(t, srv, afero.NewMemMapFs())
	genre := domain.Genre{Name: "comedy", URL: srv.URL + "/top/comedy"}

	recs, rr, err := Scrape(context.Background(), sc, genre, nil)
	require.Error(t, err)

	var pe *provider.Error
	require.True(t, errors.As(err, &pe))
	require.Equal(t, provider.PageMovie, pe.Page)
	var he *httpx.HTTPStatusError
	require.True(t, errors.As(err, &he))
	require.Equal(t, http.StatusNotFound, he.StatusCode)

	require.Len(t, recs, 1)
	require.Equal(t, 1, rr.Summary.Movies)
	require.False(t, pages.Has(srv.URL+"/m/movie_b"))
}

func TestScrape_ListingError(t *testing.T) {
	srv := newFixtureServer(t, map[string]string{
		"/top/comedy": `<html><body><p>moved</p></body></html>`,
	})
	sc, _ := newScraper(t, srv, afero.NewMemMapFs())
	obs := &recordObserver{}

	_, rr, err := Scrape(context.Background(), sc, domain.Genre{Name: "comedy", URL: srv.URL + "/top/comedy"}, obs)
	require.ErrorIs(t, err, rottentomatoes.ErrContainerMissing)
	require.Empty(t, rr.Items)
	require.Empty(t, obs.phases)
}

func TestScrape_CanceledContext(t *testing.T) {
	srv := newFixtureServer(t, map[string]string{
		"/top/comedy": listingPage,
	})
	sc, _ := newScraper(t, srv, afero.NewMemMapFs())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Scrape(ctx, sc, domain.Genre{Name: "comedy", URL: srv.URL + "/top/comedy"}, nil)
	require.ErrorIs(t, err, context.Canceled)
}

type failingSink struct {
	resetErr  error
	insertErr error
	inserted  int
}

func (s *failingSink) ResetSchema(context.Context) error { return s.resetErr }

func (s *failingSink) InsertMovies(_ context.Context, recs []domain.MovieRecord) error {
	s.inserted += len(recs)
	return s.insertErr
}

func TestPersist_Errors(t *testing.T) {
	boom := errors.New("boom")
	recs := []domain.MovieRecord{domain.NewMovieRecord("A", "R", domain.KnownScore(1), domain.KnownScore(2))}

	s := &failingSink{resetErr: boom}
	require.ErrorIs(t, Persist(context.Background(), s, recs), boom)
	require.Zero(t, s.inserted)

	s = &failingSink{insertErr: boom}
	require.ErrorIs(t, Persist(context.Background(), s, recs), boom)
	require.Equal(t, 1, s.inserted)
}
