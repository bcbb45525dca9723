package logsink

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inference-sim/sir-sim/sim/trace"
)

// copyTimeout bounds one COPY so a hung server cannot stall the flush loop.
const copyTimeout = 30 * time.Second

// PostgresStore persists logs using the COPY protocol, one transaction per
// flush. Schema matches SQLiteStore.
type PostgresStore struct {
	pool  *pgxpool.Pool
	simID uuid.UUID
}

// OpenPostgresStore connects to dsn, pings the server and runs migrations.
func OpenPostgresStore(ctx context.Context, dsn string, simID uuid.UUID) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	s := &PostgresStore{pool: pool, simID: simID}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// SimulationID returns the id rows are written under.
func (s *PostgresStore) SimulationID() uuid.UUID {
	return s.simID
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sim_parameters (
			sim_id UUID PRIMARY KEY,
			seed BIGINT NOT NULL,
			num_runs INTEGER NOT NULL,
			num_agents INTEGER NOT NULL,
			num_steps INTEGER NOT NULL,
			num_contacts INTEGER NOT NULL,
			infection_prob DOUBLE PRECISION NOT NULL,
			infection_duration DOUBLE PRECISION NOT NULL,
			recovery_prob DOUBLE PRECISION NOT NULL,
			group_size_mean DOUBLE PRECISION NOT NULL,
			min_group_size INTEGER NOT NULL,
			max_group_size INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS agent_state_logs (
			id BIGSERIAL PRIMARY KEY,
			sim_id UUID NOT NULL,
			run_id INTEGER NOT NULL,
			step INTEGER NOT NULL,
			agent_id INTEGER NOT NULL,
			state CHAR(1) NOT NULL,
			group_id INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_state_logs_run ON agent_state_logs(sim_id, run_id, step)`,
		`CREATE TABLE IF NOT EXISTS infection_logs (
			id BIGSERIAL PRIMARY KEY,
			sim_id UUID NOT NULL,
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
			sim_id UUID NOT NULL,
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
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("postgres: migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// copyRows prefixes each row with the simulation id for COPY.
func copyRows[T any](simID uuid.UUID, records []T, values func(T) []any) [][]any {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = append([]any{simID}, values(r)...)
	}
	return rows
}

// Write copies both streams inside one transaction.
func (s *PostgresStore) Write(ctx context.Context, states []trace.AgentStateRecord, infections []trace.InfectionEventRecord) error {
	copyCtx, cancel := context.WithTimeout(ctx, copyTimeout)
	defer cancel()

	tx, err := s.pool.Begin(copyCtx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(copyCtx) }()

	if len(states) > 0 {
		if _, err := tx.CopyFrom(copyCtx,
			pgx.Identifier{"agent_state_logs"},
			append([]string{"sim_id"}, stateColumns...),
			pgx.CopyFromRows(copyRows(s.simID, states, stateValues)),
		); err != nil {
			return fmt.Errorf("postgres: copy states: %w", err)
		}
	}
	if len(infections) > 0 {
		if _, err := tx.CopyFrom(copyCtx,
			pgx.Identifier{"infection_logs"},
			append([]string{"sim_id"}, infectionColumns...),
			pgx.CopyFromRows(copyRows(s.simID, infections, infectionValues)),
		); err != nil {
			return fmt.Errorf("postgres: copy infections: %w", err)
		}
	}

	if err := tx.Commit(copyCtx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// SaveParameters records the batch configuration under the simulation id.
func (s *PostgresStore) SaveParameters(ctx context.Context, p trace.Parameters) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sim_parameters (sim_id, seed, num_runs, num_agents, num_steps, num_contacts,
			infection_prob, infection_duration, recovery_prob, group_size_mean, min_group_size, max_group_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.simID, p.Seed, p.NumRuns, p.NumAgents, p.NumSteps, p.NumContacts,
		p.InfectionProb, p.InfectionDuration, p.RecoveryProb, p.GroupSizeMean, p.MinGroupSize, p.MaxGroupSize)
	if err != nil {
		return fmt.Errorf("postgres: insert parameters: %w", err)
	}
	return nil
}

// SavePeakStats copies per-run peaks.
func (s *PostgresStore) SavePeakStats(ctx context.Context, peaks []trace.PeakStats) error {
	if len(peaks) == 0 {
		return nil
	}
	copyCtx, cancel := context.WithTimeout(ctx, copyTimeout)
	defer cancel()
	if _, err := s.pool.CopyFrom(copyCtx,
		pgx.Identifier{"sim_peak_stats"},
		append([]string{"sim_id"}, peakColumns...),
		pgx.CopyFromRows(copyRows(s.simID, peaks, peakValues)),
	); err != nil {
		return fmt.Errorf("postgres: copy peak stats: %w", err)
	}
	return nil
}

// LoadLog reads this simulation's records back in insertion order.
func (s *PostgresStore) LoadLog(ctx context.Context) (*trace.Log, error) {
	l := trace.NewLog()

	rows, err := s.pool.Query(ctx,
		`SELECT run_id, step, agent_id, state, group_id FROM agent_state_logs WHERE sim_id = $1 ORDER BY id`,
		s.simID)
	if err != nil {
		return nil, fmt.Errorf("postgres: query states: %w", err)
	}
	states, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (trace.AgentStateRecord, error) {
		var r trace.AgentStateRecord
		err := row.Scan(&r.RunID, &r.Step, &r.AgentID, &r.State, &r.GroupID)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan states: %w", err)
	}
	l.States = append(l.States, states...)

	rows, err = s.pool.Query(ctx,
		`SELECT run_id, step, infector_agent_id, infector_group_id, infected_agent_id, infected_group_id, lapsed_infection_time
		FROM infection_logs WHERE sim_id = $1 ORDER BY id`,
		s.simID)
	if err != nil {
		return nil, fmt.Errorf("postgres: query infections: %w", err)
	}
	infections, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (trace.InfectionEventRecord, error) {
		var r trace.InfectionEventRecord
		err := row.Scan(&r.RunID, &r.Step, &r.InfectorAgentID, &r.InfectorGroupID,
			&r.InfectedAgentID, &r.InfectedGroupID, &r.LapsedInfectionTime)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan infections: %w", err)
	}
	l.Infections = append(l.Infections, infections...)
	return l, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
