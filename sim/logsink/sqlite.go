package logsink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/inference-sim/sir-sim/sim/trace"
)

// SQLiteStore persists one simulation's logs, parameters and peak statistics
// in a SQLite database. Several simulations can share a file; rows are keyed
// by sim_id.
type SQLiteStore struct {
	db    *sql.DB
	simID uuid.UUID
}

// OpenSQLiteStore opens (or creates) the database at dsn and runs migrations.
func OpenSQLiteStore(ctx context.Context, dsn string, simID uuid.UUID) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, simID: simID}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// SimulationID returns the id rows are written under.
func (s *SQLiteStore) SimulationID() uuid.UUID {
	return s.simID
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sim_parameters (
			sim_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			num_runs INTEGER NOT NULL,
			num_agents INTEGER NOT NULL,
			num_steps INTEGER NOT NULL,
			num_contacts INTEGER NOT NULL,
			infection_prob REAL NOT NULL,
			infection_duration REAL NOT NULL,
			recovery_prob REAL NOT NULL,
			group_size_mean REAL NOT NULL,
			min_group_size INTEGER NOT NULL,
			max_group_size INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS agent_state_logs (
			sim_id TEXT NOT NULL,
			run_id INTEGER NOT NULL,
			step INTEGER NOT NULL,
			agent_id INTEGER NOT NULL,
			state TEXT NOT NULL,
			group_id INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_state_logs_run ON agent_state_logs(sim_id, run_id, step)`,
		`CREATE TABLE IF NOT EXISTS infection_logs (
			sim_id TEXT NOT NULL,
			run_id INTEGER NOT NULL,
			step INTEGER NOT NULL,
			infector_agent_id INTEGER NOT NULL,
			infector_group_id INTEGER NOT NULL,
			infected_agent_id INTEGER NOT NULL,
			infected_group_id INTEGER NOT NULL,
			lapsed_infection_time INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_infection_logs_run ON infection_logs(sim_id, run_id, step)`,
		`CREATE TABLE IF NOT EXISTS sim_peak_stats (
			sim_id TEXT NOT NULL,
			run_id INTEGER NOT NULL,
			num_peak_infected INTEGER NOT NULL,
			peak_infected_step INTEGER NOT NULL,
			num_peak_recovered INTEGER NOT NULL,
			peak_recovered_step INTEGER NOT NULL,
			num_peak_susceptible INTEGER NOT NULL,
			peak_susceptible_step INTEGER NOT NULL,
			PRIMARY KEY (sim_id, run_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("sqlite: migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// insertSQL builds `INSERT INTO table (sim_id, cols...) VALUES (?, ...)`.
func insertSQL(table string, columns []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)+1), ", ")
	return fmt.Sprintf("INSERT INTO %s (sim_id, %s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders)
}

// Write inserts both streams in one transaction.
func (s *SQLiteStore) Write(ctx context.Context, states []trace.AgentStateRecord, infections []trace.InfectionEventRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if len(states) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertSQL("agent_state_logs", stateColumns))
		if err != nil {
			return fmt.Errorf("sqlite: prepare state insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range states {
			if _, err := stmt.ExecContext(ctx, append([]any{s.simID.String()}, stateValues(r)...)...); err != nil {
				return fmt.Errorf("sqlite: insert state run=%d step=%d agent=%d: %w", r.RunID, r.Step, r.AgentID, err)
			}
		}
	}
	if len(infections) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertSQL("infection_logs", infectionColumns))
		if err != nil {
			return fmt.Errorf("sqlite: prepare infection insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range infections {
			if _, err := stmt.ExecContext(ctx, append([]any{s.simID.String()}, infectionValues(r)...)...); err != nil {
				return fmt.Errorf("sqlite: insert infection run=%d step=%d: %w", r.RunID, r.Step, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// SaveParameters records the batch configuration under the simulation id.
func (s *SQLiteStore) SaveParameters(ctx context.Context, p trace.Parameters) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sim_parameters (sim_id, seed, num_runs, num_agents, num_steps, num_contacts,
			infection_prob, infection_duration, recovery_prob, group_size_mean, min_group_size, max_group_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.simID.String(), p.Seed, p.NumRuns, p.NumAgents, p.NumSteps, p.NumContacts,
		p.InfectionProb, p.InfectionDuration, p.RecoveryProb, p.GroupSizeMean, p.MinGroupSize, p.MaxGroupSize)
	if err != nil {
		return fmt.Errorf("sqlite: insert parameters: %w", err)
	}
	return nil
}

// SavePeakStats records per-run peaks in one transaction.
func (s *SQLiteStore) SavePeakStats(ctx context.Context, peaks []trace.PeakStats) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range peaks {
		if _, err := tx.ExecContext(ctx, insertSQL("sim_peak_stats", peakColumns),
			append([]any{s.simID.String()}, peakValues(p)...)...); err != nil {
			return fmt.Errorf("sqlite: insert peak stats run=%d: %w", p.RunID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// LoadLog reads this simulation's records back in insertion order.
func (s *SQLiteStore) LoadLog(ctx context.Context) (*trace.Log, error) {
	l := trace.NewLog()

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, step, agent_id, state, group_id FROM agent_state_logs WHERE sim_id = ? ORDER BY rowid`,
		s.simID.String())
	if err != nil {
		return nil, fmt.Errorf("sqlite: query states: %w", err)
	}
	for rows.Next() {
		var r trace.AgentStateRecord
		if err := rows.Scan(&r.RunID, &r.Step, &r.AgentID, &r.State, &r.GroupID); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("sqlite: scan state: %w", err)
		}
		l.States = append(l.States, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate states: %w", err)
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT run_id, step, infector_agent_id, infector_group_id, infected_agent_id, infected_group_id, lapsed_infection_time
		FROM infection_logs WHERE sim_id = ? ORDER BY rowid`,
		s.simID.String())
	if err != nil {
		return nil, fmt.Errorf("sqlite: query infections: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r trace.InfectionEventRecord
		if err := rows.Scan(&r.RunID, &r.Step, &r.InfectorAgentID, &r.InfectorGroupID,
			&r.InfectedAgentID, &r.InfectedGroupID, &r.LapsedInfectionTime); err != nil {
			return nil, fmt.Errorf("sqlite: scan infection: %w", err)
		}
		l.Infections = append(l.Infections, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate infections: %w", err)
	}
	return l, nil
}

// LoadPeakStats reads this simulation's peak statistics ordered by run.
func (s *SQLiteStore) LoadPeakStats(ctx context.Context) ([]trace.PeakStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, num_peak_infected, peak_infected_step, num_peak_recovered, peak_recovered_step,
			num_peak_susceptible, peak_susceptible_step
		FROM sim_peak_stats WHERE sim_id = ? ORDER BY run_id`,
		s.simID.String())
	if err != nil {
		return nil, fmt.Errorf("sqlite: query peak stats: %w", err)
	}
	defer rows.Close()

	var peaks []trace.PeakStats
	for rows.Next() {
		var p trace.PeakStats
		if err := rows.Scan(&p.RunID, &p.PeakInfected, &p.PeakInfectedStep, &p.PeakRecovered,
			&p.PeakRecoveredStep, &p.PeakSusceptible, &p.PeakSusceptibleStep); err != nil {
			return nil, fmt.Errorf("sqlite: scan peak stats: %w", err)
		}
		peaks = append(peaks, p)
	}
	return peaks, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
