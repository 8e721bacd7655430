package ai

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS proposals (
	id             TEXT PRIMARY KEY,
	tier           INTEGER NOT NULL,
	type           TEXT NOT NULL,
	subsystem      TEXT NOT NULL,
	payload        TEXT NOT NULL,
	confidence     REAL NOT NULL,
	submitted_tick INTEGER NOT NULL,
	approved       INTEGER NOT NULL,
	reason         TEXT NOT NULL,
	warnings       TEXT NOT NULL,
	recorded_at    TEXT NOT NULL
);`

// AuditLog is the append-only proposal ledger. Every proposal the Chair
// reviews lands here with its verdict; rows are never updated or deleted.
type AuditLog struct {
	db *sql.DB
}

// OpenAuditLog opens (creating as needed) the ledger at path. Use ":memory:"
// for a scratch ledger in tests.
func OpenAuditLog(path string) (*AuditLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit ledger %s: %w", path, err)
	}
	if _, err := db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit ledger schema: %w", err)
	}
	return &AuditLog{db: db}, nil
}

// Close releases the underlying database.
func (a *AuditLog) Close() error {
	return a.db.Close()
}

// RecordProposal appends one reviewed proposal with its verdict.
func (a *AuditLog) RecordProposal(p Proposal, v Verdict) error {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("audit payload encode: %w", err)
	}
	approved := 0
	if v.Approved {
		approved = 1
	}
	_, err = a.db.Exec(
		`INSERT INTO proposals
		 (id, tier, type, subsystem, payload, confidence, submitted_tick, approved, reason, warnings, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Tier, p.Type.String(), p.Subsystem, string(payload), p.Confidence,
		int64(p.SubmittedTick), approved, v.Reason, strings.Join(v.Warnings, "\n"),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("audit append: %w", err)
	}
	return nil
}

// AuditEntry is one ledger row as read back for tooling.
type AuditEntry struct {
	ID            string
	Tier          int
	Type          string
	Subsystem     string
	Confidence    float64
	SubmittedTick uint64
	Approved      bool
	Reason        string
}

// Recent returns the newest entries, most recent first.
func (a *AuditLog) Recent(limit int) ([]AuditEntry, error) {
	rows, err := a.db.Query(
		`SELECT id, tier, type, subsystem, confidence, submitted_tick, approved, reason
		 FROM proposals ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit read: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var tick int64
		var approved int
		if err := rows.Scan(&e.ID, &e.Tier, &e.Type, &e.Subsystem, &e.Confidence, &tick, &approved, &e.Reason); err != nil {
			return nil, fmt.Errorf("audit scan: %w", err)
		}
		e.SubmittedTick = uint64(tick)
		e.Approved = approved == 1
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountBySubsystem reports how many proposals each subsystem has submitted.
func (a *AuditLog) CountBySubsystem() (map[string]int, error) {
	rows, err := a.db.Query(`SELECT subsystem, COUNT(*) FROM proposals GROUP BY subsystem`)
	if err != nil {
		return nil, fmt.Errorf("audit read: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var sub string
		var n int
		if err := rows.Scan(&sub, &n); err != nil {
			return nil, fmt.Errorf("audit scan: %w", err)
		}
		out[sub] = n
	}
	return out, rows.Err()
}
