package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/work"
)

// SQLiteIndex stores chunk claims and an index of applied mutations.
// Claims are written synchronously; mutations go through a single writer
// goroutine and are dropped when it falls behind.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan work.MutationEntry
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropMutationTotal atomic.Uint64
	mutationTotal     atomic.Uint64
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	MutationTotal     uint64
	DropMutationTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Bursty: a single felled forest can enqueue thousands of rows.
		ch: make(chan work.MutationEntry, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS claims (
			actor TEXT NOT NULL,
			seq INTEGER NOT NULL,
			chunk TEXT NOT NULL,
			PRIMARY KEY (actor, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS mutations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			kind TEXT NOT NULL,
			world TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			from_block TEXT NOT NULL,
			to_block TEXT NOT NULL,
			drop_item TEXT,
			drop_count INTEGER NOT NULL DEFAULT 0,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_mutations_tick ON mutations(tick, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_mutations_actor_tick ON mutations(actor, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_mutations_pos_tick ON mutations(world, x, z, y, tick);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Load returns actor id -> chunk keys in claim order.
func (s *SQLiteIndex) Load() (map[string][]string, error) {
	rows, err := s.db.Query(`SELECT actor, chunk FROM claims ORDER BY actor, seq`)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	out := map[string][]string{}
	for rows.Next() {
		var actor, chunk string
		if err := rows.Scan(&actor, &chunk); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		out[actor] = append(out[actor], chunk)
	}
	return out, rows.Err()
}

// Save replaces the stored claims with claims.
func (s *SQLiteIndex) Save(claims map[string][]string) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM claims`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO claims(actor,seq,chunk) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	actors := make([]string, 0, len(claims))
	for a := range claims {
		actors = append(actors, a)
	}
	sort.Strings(actors)
	for _, a := range actors {
		for i, chunk := range claims[a] {
			if _, err := stmt.Exec(a, i, chunk); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// WriteMutation queues one applied mutation for indexing.
func (s *SQLiteIndex) WriteMutation(entry work.MutationEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- entry:
	default:
		// The zstd log stays the source of truth.
		s.dropMutationTotal.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		MutationTotal:     s.mutationTotal.Load(),
		DropMutationTotal: s.dropMutationTotal.Load(),
	}
}

// MutationCount reports indexed rows for actor, mostly for admin tooling.
func (s *SQLiteIndex) MutationCount(actor string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM mutations WHERE actor = ?`, actor).Scan(&n)
	return n, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insert, _ := s.db.Prepare(`INSERT INTO mutations(tick,seq,actor,kind,world,x,y,z,from_block,to_block,drop_item,drop_count,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insert != nil {
			_ = insert.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastTick uint64
		seq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for m := range s.ch {
		begin()
		if tx == nil || insert == nil {
			continue
		}
		if m.Tick != lastTick {
			lastTick = m.Tick
			seq = 0
		}
		cur := seq
		seq++
		raw, _ := json.Marshal(m)
		if _, err := tx.Stmt(insert).Exec(
			int64(m.Tick),
			cur,
			m.Actor,
			m.Kind,
			m.World,
			m.Pos[0], m.Pos[1], m.Pos[2],
			m.From,
			m.To,
			m.Drop,
			m.DropCount,
			string(raw),
		); err != nil {
			rollback()
			continue
		}
		opCount++
		s.mutationTotal.Add(1)

		// Commit eagerly once the queue is idle so readers see fresh rows.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}
	commit()
}
