package store

// 两张表都在每次运行开始时删除重建；movies 依赖 ratings，所以先删 movies。
const (
	dropMovies  = `DROP TABLE IF EXISTS movies`
	dropRatings = `DROP TABLE IF EXISTS ratings`

	createRatings = `CREATE TABLE ratings (
	id          INTEGER NOT NULL UNIQUE PRIMARY KEY AUTOINCREMENT,
	rating_name TEXT    NOT NULL UNIQUE
)`

	createMovies = `CREATE TABLE movies (
	movie_id       INTEGER NOT NULL UNIQUE PRIMARY KEY AUTOINCREMENT,
	name           TEXT,
	rating_id      INTEGER,
	tomatometer    INTEGER,
	audience_score INTEGER,
	FOREIGN KEY (rating_id) REFERENCES ratings (id)
)`

	insertRating = `INSERT INTO ratings (id, rating_name) VALUES (?, ?)`

	insertMovie = `INSERT INTO movies (name, rating_id, tomatometer, audience_score) VALUES (?, ?, ?, ?)`

	// 标签策略下分数列可能是 TEXT，读回时一律视为未知（NULL）。
	selectMovies = `SELECT
	m.movie_id,
	COALESCE(m.name, ''),
	m.rating_id,
	CASE WHEN typeof(m.tomatometer) = 'integer' THEN m.tomatometer END,
	CASE WHEN typeof(m.audience_score) = 'integer' THEN m.audience_score END
FROM movies m
JOIN ratings r ON m.rating_id = r.id
WHERE r.rating_name = ?
ORDER BY m.movie_id
LIMIT ?`

	selectRatings = `SELECT rating_name FROM ratings ORDER BY id`

	countMovies = `SELECT COUNT(*) FROM movies`
)
