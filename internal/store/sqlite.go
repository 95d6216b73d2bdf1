package store

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/sigil-dev/sigil/internal/types"
	"github.com/sigil-dev/sigil/internal/validation"
)

// DefaultProvenThreshold is the effectiveness score at or above which a
// solution overwrites the pattern's canonical solution.
const DefaultProvenThreshold = 4

const (
	maxSignatureLength = 512
	maxContentLength   = 16384
)

// SQLiteStore is the SQLite-backed pattern store.
type SQLiteStore struct {
	db              *sql.DB
	provenThreshold int
}

// NewSQLiteStore opens (creating on first use) the local database at dbPath.
// It initializes WAL mode, applies pragmas, and runs migrations.
// A provenThreshold <= 0 selects DefaultProvenThreshold.
func NewSQLiteStore(dbPath string, provenThreshold int) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, storageErr("create database directory", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storageErr("open database", err)
	}

	// SQLite serializes writers; a single pooled connection avoids lock
	// contention and keeps :memory: databases on one connection.
	db.SetMaxOpenConns(1)

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, storageErr("enable pragmas", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, storageErr("run migrations", err)
	}

	if provenThreshold <= 0 {
		provenThreshold = DefaultProvenThreshold
	}

	return &SQLiteStore{db: db, provenThreshold: provenThreshold}, nil
}

// enablePragmas sets SQLite pragmas for performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// storageErr wraps a low-level database error so callers can detect the
// storage-unavailable condition with errors.Is.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStorageUnavailable, err))
}

// validationErr wraps accumulated field errors under ErrValidation.
func validationErr(c *validation.Collector) error {
	return fmt.Errorf("%w: %s", ErrValidation, c.Summary())
}

// DeriveSignature computes the deterministic fallback signature for an error
// captured without one: the MD5 hex digest of its description. The empty
// description hashes to a fixed value; that is an explicit fallback, not an
// error. MD5 here is a dedup key, not a security boundary.
func DeriveSignature(description string) string {
	sum := md5.Sum([]byte(description))
	return hex.EncodeToString(sum[:])
}

// AppendEvent assigns a fresh id, writes the row, and returns the id.
// Events are immutable once written.
func (s *SQLiteStore) AppendEvent(ctx context.Context, typ types.EventType, phase, content string, metadata json.RawMessage) (string, error) {
	id, err := s.appendEventExec(ctx, s.db, typ, phase, content, metadata)
	if err != nil {
		return "", err
	}
	return id, nil
}

// execer abstracts *sql.DB and *sql.Tx so event appends can participate in
// the capture transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) appendEventExec(ctx context.Context, ex execer, typ types.EventType, phase, content string, metadata json.RawMessage) (string, error) {
	var c validation.Collector
	if !typ.Valid() {
		c.Add(&validation.FieldError{Field: "type", Message: fmt.Sprintf("unknown event type %q", typ)})
	}
	c.Add(validation.Text("content", content, maxContentLength))
	c.Add(validation.Text("phase", phase, maxSignatureLength))
	if c.HasErrors() {
		return "", validationErr(&c)
	}

	if phase == "" {
		phase = types.PhaseUnknown
	}
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	} else if !json.Valid(metadata) {
		c.Add(&validation.FieldError{Field: "metadata", Message: "must be valid JSON"})
		return "", validationErr(&c)
	}

	id := ulid.Make().String()
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := ex.ExecContext(ctx, `
		INSERT INTO events (id, type, phase, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, string(typ), phase, content, string(metadata), now)
	if err != nil {
		return "", storageErr("insert event", err)
	}

	return id, nil
}

// RecentEvents returns up to limit events, most recent first. Display and
// summary use only; not authoritative for counts.
func (s *SQLiteStore) RecentEvents(ctx context.Context, limit int) ([]types.Event, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, phase, content, metadata, central_id, created_at
		FROM events
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, storageErr("query recent events", err)
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *ev)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate events", err)
	}

	return events, nil
}

func scanEvent(scanner interface{ Scan(...any) error }) (*types.Event, error) {
	var ev types.Event
	var typ, metadata, createdAt string
	var centralID sql.NullString

	if err := scanner.Scan(&ev.ID, &typ, &ev.Phase, &ev.Content, &metadata, &centralID, &createdAt); err != nil {
		return nil, err
	}

	ev.Type = types.EventType(typ)
	ev.Metadata = json.RawMessage(metadata)
	if centralID.Valid {
		ev.CentralID = &centralID.String
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		ev.CreatedAt = t
	}

	return &ev, nil
}

// CaptureError records an error occurrence: one error event appended to the
// log and the matching pattern created or its occurrence count incremented,
// in a single transaction. Returns the event id — the caller's receipt for
// this specific occurrence, not the pattern id.
func (s *SQLiteStore) CaptureError(ctx context.Context, p types.CaptureParams) (string, error) {
	if p.Severity == "" {
		p.Severity = types.SeverityMedium
	}

	var c validation.Collector
	c.Add(validation.Text("signature", p.Signature, maxSignatureLength))
	c.Add(validation.Text("category", p.Category, maxSignatureLength))
	c.Add(validation.Text("description", p.Description, maxContentLength))
	c.Add(validation.Text("severity", p.Severity, maxSignatureLength))
	if len(p.Context) > 0 && !json.Valid(p.Context) {
		c.Add(&validation.FieldError{Field: "context", Message: "must be valid JSON"})
	}
	if c.HasErrors() {
		return "", validationErr(&c)
	}

	sig := p.Signature
	if sig == "" {
		sig = DeriveSignature(p.Description)
	}

	meta, err := json.Marshal(types.ErrorMetadata{
		Severity:  p.Severity,
		Category:  p.Category,
		Signature: sig,
		Context:   p.Context,
	})
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	content := p.Description
	if content == "" {
		if p.Category != "" {
			content = fmt.Sprintf("Error: %s", p.Category)
		} else {
			content = fmt.Sprintf("Error: %s", sig)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", storageErr("begin transaction", err)
	}
	defer tx.Rollback()

	eventID, err := s.appendEventExec(ctx, tx, types.EventError, p.Phase, content, meta)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO patterns (id, signature, category, description, occurrence_count, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(signature) DO UPDATE SET
			occurrence_count = occurrence_count + 1,
			last_seen_at = excluded.last_seen_at,
			category = CASE WHEN excluded.category <> '' THEN excluded.category ELSE patterns.category END,
			description = CASE WHEN excluded.description <> '' THEN excluded.description ELSE patterns.description END
	`, ulid.Make().String(), sig, p.Category, p.Description, now, now)
	if err != nil {
		return "", storageErr("upsert pattern", err)
	}

	if err := tx.Commit(); err != nil {
		return "", storageErr("commit transaction", err)
	}

	return eventID, nil
}

// AddSolution records a remediation for a known signature. The solution event
// is always logged; the pattern's canonical solution is overwritten only when
// effectiveness clears the proven threshold, so a weaker candidate never
// degrades a known-good fix.
func (s *SQLiteStore) AddSolution(ctx context.Context, p types.SolutionParams) (string, error) {
	var c validation.Collector
	c.Add(validation.Required("signature", p.Signature))
	c.Add(validation.Text("signature", p.Signature, maxSignatureLength))
	c.Add(validation.Required("text", p.Text))
	c.Add(validation.Text("text", p.Text, maxContentLength))
	c.Add(validation.Text("code_snippet", p.CodeSnippet, maxContentLength))
	c.Add(validation.IntRange("effectiveness", p.Effectiveness, 0, 5))
	if c.HasErrors() {
		return "", validationErr(&c)
	}

	meta, err := json.Marshal(types.SolutionMetadata{
		Effectiveness:   p.Effectiveness,
		TargetSignature: p.Signature,
		CodeSnippet:     p.CodeSnippet,
	})
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", storageErr("begin transaction", err)
	}
	defer tx.Rollback()

	eventID, err := s.appendEventExec(ctx, tx, types.EventSolution, p.Phase, p.Text, meta)
	if err != nil {
		return "", err
	}

	if p.Effectiveness >= s.provenThreshold {
		_, err = tx.ExecContext(ctx, `
			UPDATE patterns SET solution = ? WHERE signature = ?
		`, p.Text, p.Signature)
		if err != nil {
			return "", storageErr("update pattern solution", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", storageErr("commit transaction", err)
	}

	return eventID, nil
}

// GetPattern retrieves a pattern by signature.
func (s *SQLiteStore) GetPattern(ctx context.Context, signature string) (*types.Pattern, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, signature, category, description, occurrence_count, solution,
		       first_seen_at, last_seen_at, central_pattern_id
		FROM patterns
		WHERE signature = ?
	`, signature)

	pattern, err := scanPattern(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan pattern: %w", err)
	}

	return pattern, nil
}

// ListPatterns returns all patterns, most frequently seen first.
func (s *SQLiteStore) ListPatterns(ctx context.Context) ([]types.Pattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, signature, category, description, occurrence_count, solution,
		       first_seen_at, last_seen_at, central_pattern_id
		FROM patterns
		ORDER BY occurrence_count DESC, last_seen_at DESC
	`)
	if err != nil {
		return nil, storageErr("query patterns", err)
	}
	defer rows.Close()

	return collectPatterns(rows)
}

// InsertPatternIfAbsent inserts a pre-authored pattern unless its signature
// already exists. Used by the seed loader; existing local knowledge always
// wins over seeds. Returns whether a row was inserted.
func (s *SQLiteStore) InsertPatternIfAbsent(ctx context.Context, p types.Pattern) (bool, error) {
	var c validation.Collector
	c.Add(validation.Required("signature", p.Signature))
	c.Add(validation.Text("signature", p.Signature, maxSignatureLength))
	c.Add(validation.Text("category", p.Category, maxSignatureLength))
	c.Add(validation.Text("description", p.Description, maxContentLength))
	if c.HasErrors() {
		return false, validationErr(&c)
	}

	id := p.ID
	if id == "" {
		id = ulid.Make().String()
	}
	now := time.Now().UTC()
	firstSeen := p.FirstSeenAt
	if firstSeen.IsZero() {
		firstSeen = now
	}
	lastSeen := p.LastSeenAt
	if lastSeen.IsZero() {
		lastSeen = now
	}

	var solution any
	if p.Solution != nil {
		solution = *p.Solution
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO patterns (id, signature, category, description, occurrence_count, solution, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, p.Signature, p.Category, p.Description, p.OccurrenceCount, solution,
		firstSeen.Format(time.RFC3339), lastSeen.Format(time.RFC3339))
	if err != nil {
		return false, storageErr("insert pattern", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("rows affected", err)
	}

	return n > 0, nil
}

func scanPattern(scanner interface{ Scan(...any) error }) (*types.Pattern, error) {
	var p types.Pattern
	var solution, centralID sql.NullString
	var firstSeen, lastSeen string

	err := scanner.Scan(&p.ID, &p.Signature, &p.Category, &p.Description,
		&p.OccurrenceCount, &solution, &firstSeen, &lastSeen, &centralID)
	if err != nil {
		return nil, err
	}

	if solution.Valid {
		p.Solution = &solution.String
	}
	if centralID.Valid {
		p.CentralPatternID = &centralID.String
	}
	if t, err := time.Parse(time.RFC3339, firstSeen); err == nil {
		p.FirstSeenAt = t
	}
	if t, err := time.Parse(time.RFC3339, lastSeen); err == nil {
		p.LastSeenAt = t
	}

	return &p, nil
}

func collectPatterns(rows *sql.Rows) ([]types.Pattern, error) {
	var patterns []types.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		patterns = append(patterns, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate patterns", err)
	}

	return patterns, nil
}

// UnsyncedPatterns returns patterns not yet acknowledged by the central
// authority, oldest first. The ordering is stable within one reconciliation
// pass: no pattern is skipped or duplicated across one call's results.
func (s *SQLiteStore) UnsyncedPatterns(ctx context.Context) ([]types.Pattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, signature, category, description, occurrence_count, solution,
		       first_seen_at, last_seen_at, central_pattern_id
		FROM patterns
		WHERE central_pattern_id IS NULL
		ORDER BY first_seen_at ASC, rowid ASC
	`)
	if err != nil {
		return nil, storageErr("query unsynced patterns", err)
	}
	defer rows.Close()

	return collectPatterns(rows)
}

// UnsyncedSolutions returns solution events not yet pushed, each joined with
// its owning pattern's central id (nil while the pattern itself is unsynced).
func (s *SQLiteStore) UnsyncedSolutions(ctx context.Context) ([]types.UnsyncedSolution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id,
		       COALESCE(json_extract(e.metadata, '$.target_signature'), ''),
		       e.content,
		       COALESCE(json_extract(e.metadata, '$.effectiveness'), 0),
		       COALESCE(json_extract(e.metadata, '$.code_snippet'), ''),
		       p.central_pattern_id
		FROM events e
		LEFT JOIN patterns p ON p.signature = json_extract(e.metadata, '$.target_signature')
		WHERE e.type = 'solution' AND e.central_id IS NULL
		ORDER BY e.created_at ASC, e.rowid ASC
	`)
	if err != nil {
		return nil, storageErr("query unsynced solutions", err)
	}
	defer rows.Close()

	var solutions []types.UnsyncedSolution
	for rows.Next() {
		var sol types.UnsyncedSolution
		var centralID sql.NullString
		if err := rows.Scan(&sol.EventID, &sol.TargetSignature, &sol.Text,
			&sol.Effectiveness, &sol.CodeSnippet, &centralID); err != nil {
			return nil, fmt.Errorf("scan solution: %w", err)
		}
		if centralID.Valid {
			sol.CentralPatternID = &centralID.String
		}
		solutions = append(solutions, sol)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate solutions", err)
	}

	return solutions, nil
}

// MarkPatternSynced records the central authority's identifier for a pattern.
// Idempotent: re-marking an already-synced pattern is a no-op, and the local
// record never transitions back to unsynced.
func (s *SQLiteStore) MarkPatternSynced(ctx context.Context, id, centralID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE patterns SET central_pattern_id = ?
		WHERE id = ? AND central_pattern_id IS NULL
	`, centralID, id)
	if err != nil {
		return storageErr("mark pattern synced", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("rows affected", err)
	}
	if n > 0 {
		return nil
	}

	var existing sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT central_pattern_id FROM patterns WHERE id = ?`, id).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return storageErr("check pattern sync state", err)
	}

	// Already synced; Unsynced → Synced is one-way.
	return nil
}

// MarkSolutionSynced records that a solution event was accepted by the
// central authority. The batch contract returns no per-item ids, so
// centralRef is the owning pattern's central id. Idempotent.
func (s *SQLiteStore) MarkSolutionSynced(ctx context.Context, eventID, centralRef string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE events SET central_id = ?
		WHERE id = ? AND type = 'solution' AND central_id IS NULL
	`, centralRef, eventID)
	if err != nil {
		return storageErr("mark solution synced", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("rows affected", err)
	}
	if n > 0 {
		return nil
	}

	var existing sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT central_id FROM events WHERE id = ? AND type = 'solution'`, eventID).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return storageErr("check solution sync state", err)
	}

	return nil
}

// CountEvents returns the number of events of the given type.
func (s *SQLiteStore) CountEvents(ctx context.Context, typ types.EventType) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE type = ?`, string(typ)).Scan(&count)
	if err != nil {
		return 0, storageErr("count events", err)
	}
	return count, nil
}

// CountEventsSince returns the number of events of any type created after
// the given instant.
func (s *SQLiteStore) CountEventsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE created_at > ?`,
		since.UTC().Format(time.RFC3339)).Scan(&count)
	if err != nil {
		return 0, storageErr("count events since", err)
	}
	return count, nil
}

// CountEventsOfTypeSince returns the number of events of one type created
// after the given instant.
func (s *SQLiteStore) CountEventsOfTypeSince(ctx context.Context, typ types.EventType, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE type = ? AND created_at > ?`,
		string(typ), since.UTC().Format(time.RFC3339)).Scan(&count)
	if err != nil {
		return 0, storageErr("count events of type since", err)
	}
	return count, nil
}

// AvgSolutionEffectiveness returns the mean effectiveness over all solution
// events carrying a numeric effectiveness, and whether any such event exists.
func (s *SQLiteStore) AvgSolutionEffectiveness(ctx context.Context) (float64, bool, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT AVG(json_extract(metadata, '$.effectiveness'))
		FROM events
		WHERE type = 'solution' AND json_extract(metadata, '$.effectiveness') IS NOT NULL
	`).Scan(&avg)
	if err != nil {
		return 0, false, storageErr("average effectiveness", err)
	}

	if !avg.Valid {
		return 0, false, nil
	}
	return avg.Float64, true, nil
}

// LastMilestone returns the most recent milestone event, or ErrNotFound when
// none has been recorded.
func (s *SQLiteStore) LastMilestone(ctx context.Context) (*types.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, phase, content, metadata, central_id, created_at
		FROM events
		WHERE type = 'milestone'
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`)

	ev, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}

	return ev, nil
}
