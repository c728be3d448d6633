package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/John-Robertt/rttop/internal/domain"
)

// Store 是电影评分的关系型落地（ratings + movies 两张表）。
//
// 约束：
// - 所有 SQL 都走参数绑定
// - 本地文件 / :memory: 使用 modernc sqlite；libsql:// 与 http(s):// 使用 libsql 驱动
// - 单连接：:memory: 库在多连接下会各自独立
type Store struct {
	db     *sql.DB
	policy domain.ScorePolicy
	logger *zap.Logger
}

// Row 是从 movies 读回的一行；未知分数 Valid=false。
type Row struct {
	ID       int64
	Name     string
	Rating   domain.RatingClass
	Critic   domain.Score
	Audience domain.Score
}

// Filter 描述图表查询：按分级过滤，最多取 Limit 条（<=0 表示不限）。
type Filter struct {
	Rating domain.RatingClass
	Limit  int
}

func driverFor(dsn string) string {
	for _, p := range []string{"libsql://", "http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(dsn, p) {
			return "libsql"
		}
	}
	return "sqlite"
}

// Open 打开 dsn 指向的数据库并确认可连通。
func Open(ctx context.Context, dsn string, policy domain.ScorePolicy, logger *zap.Logger) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("数据库路径不能为空")
	}
	db, err := sql.Open(driverFor(dsn), dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("连接数据库失败：%w", err)
	}
	return New(db, policy, logger), nil
}

// New 包装一个已打开的 *sql.DB。
func New(db *sql.DB, policy domain.ScorePolicy, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !policy.Valid() {
		policy = domain.ScorePolicyZero
	}
	return &Store{db: db, policy: policy, logger: logger}
}

func (s *Store) Close() error { return s.db.Close() }

// ResetSchema 删除并重建两张表，再写入五个分级种子。幂等。
func (s *Store) ResetSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{dropMovies, dropRatings, createRatings, createMovies} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("重建表失败：%w", err)
		}
	}
	for _, r := range domain.AllRatings {
		if _, err := tx.ExecContext(ctx, insertRating, int(r), r.String()); err != nil {
			return fmt.Errorf("写入分级种子失败：%w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Debug("已重建表", zap.Int("ratings", len(domain.AllRatings)))
	return nil
}

// InsertMovie 追加一行并返回 movie_id。
func (s *Store) InsertMovie(ctx context.Context, rec domain.MovieRecord) (int64, error) {
	return insert(ctx, s.db, s.policy, rec)
}

// InsertMovies 在一个事务内按顺序写入全部记录（movie_id 即榜单名次顺序）。
func (s *Store) InsertMovies(ctx context.Context, recs []domain.MovieRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, rec := range recs {
		if _, err := insert(ctx, tx, s.policy, rec); err != nil {
			return fmt.Errorf("写入第 %d 条记录失败：%w", i+1, err)
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, policy domain.ScorePolicy, rec domain.MovieRecord) (int64, error) {
	rating := rec.Rating
	if !rating.Valid() {
		rating = domain.RatingUnrated
	}
	res, err := db.ExecContext(ctx, insertMovie,
		rec.Title,
		int(rating),
		policy.Column(rec.Critic, domain.CriticScoreLabel),
		policy.Column(rec.Audience, domain.AudienceScoreLabel),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Movies 按分级名称过滤并按写入顺序返回。
func (s *Store) Movies(ctx context.Context, f Filter) ([]Row, error) {
	if !f.Rating.Valid() {
		return nil, fmt.Errorf("非法分级：%d", f.Rating)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, selectMovies, f.Rating.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r        Row
			ratingID int64
			critic   sql.NullInt64
			audience sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Name, &ratingID, &critic, &audience); err != nil {
			return nil, err
		}
		r.Rating = domain.RatingClass(ratingID)
		r.Critic = nullScore(critic)
		r.Audience = nullScore(audience)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullScore(v sql.NullInt64) domain.Score {
	if !v.Valid {
		return domain.Score{}
	}
	return domain.KnownScore(int(v.Int64))
}

// Ratings 返回 ratings 表中的名称（按 id）。
func (s *Store) Ratings(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, selectRatings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) CountMovies(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, countMovies).Scan(&n)
	return n, err
}
