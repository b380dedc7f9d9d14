package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/dyike/tradecortex/models"
	"github.com/dyike/tradecortex/pkg/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	role TEXT NOT NULL,
	decision_id TEXT NOT NULL DEFAULT '',
	source_id TEXT NOT NULL DEFAULT '',
	situation TEXT NOT NULL,
	recommendation TEXT NOT NULL,
	embedding TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_memories_role ON memories(role);
CREATE INDEX IF NOT EXISTS idx_memories_decision ON memories(decision_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_memories_role_source ON memories(role, source_id) WHERE source_id <> '';
`

// Match is one retrieved memory. Distance is cosine distance (0 = identical).
type Match struct {
	Recommendation string  `json:"recommendation"`
	Situation      string  `json:"situation"`
	Distance       float64 `json:"distance"`
}

// Store holds role-partitioned memory records with nearest-neighbour lookup.
// Reads run concurrently; writes are serialized per role.
type Store struct {
	db       *sql.DB
	embedder embedding.Embedder
	logger   *zap.Logger

	mu      sync.Mutex
	writers map[string]*sync.Mutex
}

// Open opens (or creates) the store at dbPath.
func Open(dbPath string, embedder embedding.Embedder, logger *zap.Logger) (*Store, error) {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}
	s, err := New(db, embedder, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB, embedder embedding.Embedder, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init memory schema: %w", err)
	}
	return &Store{
		db:       db,
		embedder: embedder,
		logger:   logger.With(zap.String("component", "memory_store")),
		writers:  make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) writer(role string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.writers[role]
	if !ok {
		w = &sync.Mutex{}
		s.writers[role] = w
	}
	return w
}

// Embed computes the embedding for a situation text.
func (s *Store) Embed(ctx context.Context, text string) ([]float64, error) {
	if s.embedder == nil {
		return nil, errors.New("memory store has no embedder")
	}
	vecs, err := s.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, &models.ServiceError{Op: "embedding", Err: errors.New("empty embedding")}
	}
	return vecs[0], nil
}

// Add writes rec. A record whose (role, source_id) already exists is ignored and reported as not inserted.
func (s *Store) Add(ctx context.Context, rec models.MemoryRecord) (bool, error) {
	if strings.TrimSpace(rec.Role) == "" {
		return false, errors.New("memory record role is required")
	}
	if strings.TrimSpace(rec.Recommendation) == "" {
		return false, errors.New("memory record recommendation is required")
	}
	if len(rec.Embedding) == 0 {
		vec, err := s.Embed(ctx, rec.Situation)
		if err != nil {
			return false, err
		}
		rec.Embedding = vec
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	vec, err := json.Marshal(rec.Embedding)
	if err != nil {
		return false, fmt.Errorf("encode embedding: %w", err)
	}

	w := s.writer(rec.Role)
	w.Lock()
	defer w.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO memories (id, role, decision_id, source_id, situation, recommendation, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Role, rec.DecisionID, rec.SourceID, rec.Situation, rec.Recommendation, string(vec), rec.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert memory: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		s.logger.Debug("duplicate memory ignored", zap.String("role", rec.Role), zap.String("source_id", rec.SourceID))
		return false, nil
	}
	s.logger.Debug("memory stored", zap.String("role", rec.Role), zap.String("decision_id", rec.DecisionID))
	return true, nil
}

// GetMemories embeds situation and returns up to n nearest records of role.
// A role without records returns an empty result without calling the embedder.
func (s *Store) GetMemories(ctx context.Context, role, situation string, n int) ([]Match, error) {
	count, err := s.Count(ctx, role)
	if err != nil {
		return nil, err
	}
	if count == 0 || n <= 0 {
		return nil, nil
	}
	vec, err := s.Embed(ctx, situation)
	if err != nil {
		return nil, err
	}
	return s.GetMemoriesByVector(ctx, role, vec, n)
}

// GetMemoriesByVector returns up to n records of role ordered by ascending cosine distance to vec.
func (s *Store) GetMemoriesByVector(ctx context.Context, role string, vec []float64, n int) ([]Match, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT situation, recommendation, embedding FROM memories WHERE role = ?`, role)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var situation, recommendation, raw string
		if err := rows.Scan(&situation, &recommendation, &raw); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		var emb []float64
		if err := json.Unmarshal([]byte(raw), &emb); err != nil {
			s.logger.Warn("skipping memory with malformed embedding", zap.String("role", role), zap.Error(err))
			continue
		}
		if len(emb) != len(vec) {
			s.logger.Warn("skipping memory with mismatched dimension",
				zap.String("role", role), zap.Int("want", len(vec)), zap.Int("got", len(emb)))
			continue
		}
		matches = append(matches, Match{
			Recommendation: recommendation,
			Situation:      situation,
			Distance:       1 - cosineSimilarity(vec, emb),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > n {
		matches = matches[:n]
	}
	return matches, nil
}

// Count returns the number of records stored for role.
func (s *Store) Count(ctx context.Context, role string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE role = ?`, role).Scan(&n); err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return n, nil
}

// DeleteByDecision removes every record derived from decisionID, across all roles.
func (s *Store) DeleteByDecision(ctx context.Context, decisionID string) (int64, error) {
	if strings.TrimSpace(decisionID) == "" {
		return 0, errors.New("decision id is required")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE decision_id = ?`, decisionID)
	if err != nil {
		return 0, fmt.Errorf("delete memories: %w", err)
	}
	n, _ := res.RowsAffected()
	s.logger.Info("memories deleted", zap.String("decision_id", decisionID), zap.Int64("count", n))
	return n, nil
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
