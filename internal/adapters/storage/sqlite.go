package storage

// sqlite.go: diario local de ciclos, señales e intentos de trade.
//
// Estrategia:
//   - `cycles`: una fila por snapshot aplicado (seq, fuente, conteos). Siempre se escribe.
//   - `signals`: UNA fila por señal (UPSERT). AVOID no se persiste.
//     Un ciclo stale no toca `signals`: son las mismas del ciclo anterior.
//   - Cache en memoria: evita writes si la señal no cambió (recomendación,
//     arbitraje o edge con variación >= 0.5 puntos).
//   - `trade_attempts`: estado actual de cada intento (UPSERT por id).
//   - `trade_events`: cada transición, append-only.
//   - Prune automático al arrancar: cycles > 30d, signals no vistas en 14d.
//
// Los instantes se guardan como unix millis para que los rangos sean comparaciones enteras.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/alejandrodnm/blackedge/internal/domain"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS cycles (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    seq         INTEGER NOT NULL,
    source      TEXT    NOT NULL,
    fetched_at  INTEGER NOT NULL,
    total       INTEGER NOT NULL DEFAULT 0,
    actionable  INTEGER NOT NULL DEFAULT 0,
    arbitrage   INTEGER NOT NULL DEFAULT 0,
    best_edge   REAL    NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS signals (
    id              TEXT PRIMARY KEY,
    market          TEXT,
    question        TEXT,
    platform_url    TEXT,
    recommendation  TEXT    NOT NULL,
    quoted_prob     REAL    NOT NULL DEFAULT 0,
    model_prob      REAL    NOT NULL DEFAULT 0,
    edge_pct        REAL    NOT NULL DEFAULT 0,
    volume_24h      REAL    NOT NULL DEFAULT 0,
    liquidity       REAL    NOT NULL DEFAULT 0,
    spread          REAL    NOT NULL DEFAULT 0,
    kelly           REAL    NOT NULL DEFAULT 0,
    strength        REAL    NOT NULL DEFAULT 0,
    trend           TEXT,
    risk_tier       TEXT,
    is_arbitrage    INTEGER NOT NULL DEFAULT 0,
    arbitrage_note  TEXT,
    first_seen      INTEGER NOT NULL,
    last_seen       INTEGER NOT NULL,
    peak_edge       REAL    NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS trade_attempts (
    id          TEXT PRIMARY KEY,
    market_id   TEXT    NOT NULL,
    outcome     TEXT    NOT NULL,
    amount      TEXT    NOT NULL,
    state       TEXT    NOT NULL,
    tx_hash     TEXT,
    error_kind  TEXT,
    error_msg   TEXT,
    started_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trade_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    attempt_id  TEXT    NOT NULL,
    state       TEXT    NOT NULL,
    error_kind  TEXT,
    at          INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cycles_at     ON cycles(fetched_at DESC);
CREATE INDEX IF NOT EXISTS idx_signals_last  ON signals(last_seen DESC);
CREATE INDEX IF NOT EXISTS idx_signals_edge  ON signals(edge_pct DESC);
CREATE INDEX IF NOT EXISTS idx_trades_upd    ON trade_attempts(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_events_att    ON trade_events(attempt_id);
`

const (
	retentionCycles  = 30 * 24 * time.Hour
	retentionSignals = 14 * 24 * time.Hour
	edgeChangePts    = 0.5 // puntos porcentuales de edge → reescribir
)

// cachedState es el último estado guardado de una señal.
type cachedState struct {
	recommendation string
	edge           float64
	isArbitrage    bool
}

// SQLiteStorage implementa ports.Storage y ports.TradeJournal usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db    *sql.DB
	cache map[string]cachedState // signal ID → estado guardado
	mu    sync.Mutex
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema, limpia datos antiguos y precarga la cache.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{
		db:    db,
		cache: make(map[string]cachedState),
	}
	s.pruneOld(context.Background())
	s.warmCache(context.Background())
	return s, nil
}

// SaveSnapshot persiste el resumen del ciclo y hace upsert de las señales que cambiaron.
func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil {
		return nil
	}

	fetchedAt := snap.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	ranked := domain.Rank(snap.Signals)

	// 1. Resumen del ciclo
	actionable, arbs, bestEdge := cycleSummary(ranked)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles (seq, source, fetched_at, total, actionable, arbitrage, best_edge)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.Seq, string(snap.Source), fetchedAt.UnixMilli(), len(ranked), actionable, arbs, bestEdge,
	); err != nil {
		return fmt.Errorf("storage.SaveSnapshot: insert cycle: %w", err)
	}

	if snap.Source == domain.SourceStale {
		return nil
	}

	// 2. Upsert de señales que cambiaron
	toWrite := s.filterChanged(ranked)
	if len(toWrite) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO signals
			(id, market, question, platform_url, recommendation, quoted_prob, model_prob,
			 edge_pct, volume_24h, liquidity, spread, kelly, strength, trend, risk_tier,
			 is_arbitrage, arbitrage_note, first_seen, last_seen, peak_edge)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			market         = excluded.market,
			question       = excluded.question,
			platform_url   = excluded.platform_url,
			recommendation = excluded.recommendation,
			quoted_prob    = excluded.quoted_prob,
			model_prob     = excluded.model_prob,
			edge_pct       = excluded.edge_pct,
			volume_24h     = excluded.volume_24h,
			liquidity      = excluded.liquidity,
			spread         = excluded.spread,
			kelly          = excluded.kelly,
			strength       = excluded.strength,
			trend          = excluded.trend,
			risk_tier      = excluded.risk_tier,
			is_arbitrage   = excluded.is_arbitrage,
			arbitrage_note = excluded.arbitrage_note,
			last_seen      = excluded.last_seen,
			peak_edge      = MAX(peak_edge, excluded.edge_pct)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: prepare: %w", err)
	}
	defer stmt.Close()

	seen := fetchedAt.UnixMilli()
	for _, sc := range toWrite {
		sig := sc.Signal
		if _, err := stmt.ExecContext(ctx,
			sig.ID,
			sig.Market,
			sig.Question,
			sig.PlatformURL,
			sc.Recommendation.String(),
			sig.QuotedProbability,
			sig.ModelProbability,
			sig.EdgePct,
			sig.Volume24h,
			sig.Liquidity,
			sig.Spread,
			sig.KellyFraction,
			sig.SignalStrength,
			string(sig.Trend),
			string(sig.RiskTier),
			boolToInt(sig.IsArbitrage),
			sig.ArbitrageNote,
			seen, // first_seen: ignorado en ON CONFLICT
			seen,
			sig.EdgePct,
		); err != nil {
			return fmt.Errorf("storage.SaveSnapshot: upsert %s: %w", sig.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveSnapshot: commit: %w", err)
	}

	s.mu.Lock()
	for _, sc := range toWrite {
		s.cache[sc.Signal.ID] = stateOf(sc)
	}
	s.mu.Unlock()
	return nil
}

// GetHistory devuelve las señales cuyo last_seen está en el rango dado, mejor edge primero.
func (s *SQLiteStorage) GetHistory(ctx context.Context, from, to time.Time) ([]domain.MarketSignal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, market, question, platform_url, quoted_prob, model_prob, edge_pct,
		       volume_24h, liquidity, spread, kelly, strength, trend, risk_tier,
		       is_arbitrage, arbitrage_note
		FROM signals
		WHERE last_seen BETWEEN ? AND ?
		ORDER BY edge_pct DESC, id ASC
	`, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("storage.GetHistory: query: %w", err)
	}
	defer rows.Close()

	var out []domain.MarketSignal
	for rows.Next() {
		var sig domain.MarketSignal
		var market, question, url, trend, risk, note sql.NullString
		var isArb int

		if err := rows.Scan(
			&sig.ID, &market, &question, &url,
			&sig.QuotedProbability, &sig.ModelProbability, &sig.EdgePct,
			&sig.Volume24h, &sig.Liquidity, &sig.Spread, &sig.KellyFraction, &sig.SignalStrength,
			&trend, &risk, &isArb, &note,
		); err != nil {
			return nil, fmt.Errorf("storage.GetHistory: scan row: %w", err)
		}

		sig.Market = market.String
		sig.Question = question.String
		sig.PlatformURL = url.String
		sig.Trend = domain.ParseTrend(trend.String)
		sig.RiskTier = domain.ParseRiskTier(risk.String)
		sig.IsArbitrage = isArb == 1
		sig.ArbitrageNote = note.String
		out = append(out, sig)
	}
	return out, rows.Err()
}

// CycleSummary es el resumen persistido de un ciclo.
type CycleSummary struct {
	Seq        uint64
	Source     domain.Source
	FetchedAt  time.Time
	Total      int
	Actionable int
	Arbitrage  int
	BestEdge   float64
}

// LastCycle devuelve el último ciclo guardado. ok=false si la tabla está vacía.
func (s *SQLiteStorage) LastCycle(ctx context.Context) (CycleSummary, bool, error) {
	var c CycleSummary
	var source string
	var fetched int64
	err := s.db.QueryRowContext(ctx, `
		SELECT seq, source, fetched_at, total, actionable, arbitrage, best_edge
		FROM cycles ORDER BY id DESC LIMIT 1
	`).Scan(&c.Seq, &source, &fetched, &c.Total, &c.Actionable, &c.Arbitrage, &c.BestEdge)
	if errors.Is(err, sql.ErrNoRows) {
		return CycleSummary{}, false, nil
	}
	if err != nil {
		return CycleSummary{}, false, fmt.Errorf("storage.LastCycle: %w", err)
	}
	c.Source = domain.Source(source)
	c.FetchedAt = time.UnixMilli(fetched).UTC()
	return c, true, nil
}

// RecordTrade guarda el estado actual del intento y añade la transición al log.
func (s *SQLiteStorage) RecordTrade(ctx context.Context, ex domain.TradeExecution) error {
	var kind, msg string
	if ex.Err != nil {
		kind = string(ex.Err.Kind)
		msg = ex.Err.Message
	}
	updated := ex.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	started := ex.StartedAt
	if started.IsZero() {
		started = updated
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.RecordTrade: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trade_attempts
			(id, market_id, outcome, amount, state, tx_hash, error_kind, error_msg, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state      = excluded.state,
			tx_hash    = excluded.tx_hash,
			error_kind = excluded.error_kind,
			error_msg  = excluded.error_msg,
			updated_at = excluded.updated_at
	`,
		ex.ID, ex.Request.MarketID, string(ex.Request.Outcome), ex.Request.Amount.String(),
		string(ex.State), ex.TxHash, kind, msg, started.UnixMilli(), updated.UnixMilli(),
	); err != nil {
		return fmt.Errorf("storage.RecordTrade: upsert %s: %w", ex.ID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO trade_events (attempt_id, state, error_kind, at) VALUES (?, ?, ?, ?)`,
		ex.ID, string(ex.State), kind, updated.UnixMilli(),
	); err != nil {
		return fmt.Errorf("storage.RecordTrade: insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.RecordTrade: commit: %w", err)
	}
	return nil
}

// RecentTrades devuelve los últimos intentos, el más reciente primero.
func (s *SQLiteStorage) RecentTrades(ctx context.Context, limit int) ([]domain.TradeExecution, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, market_id, outcome, amount, state, tx_hash, error_kind, error_msg, started_at, updated_at
		FROM trade_attempts
		ORDER BY updated_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentTrades: query: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeExecution
	for rows.Next() {
		var ex domain.TradeExecution
		var outcome, amount, state string
		var txHash, kind, msg sql.NullString
		var started, updated int64

		if err := rows.Scan(&ex.ID, &ex.Request.MarketID, &outcome, &amount, &state,
			&txHash, &kind, &msg, &started, &updated); err != nil {
			return nil, fmt.Errorf("storage.RecentTrades: scan row: %w", err)
		}

		ex.Request.Outcome = domain.Outcome(outcome)
		ex.Request.Amount, _ = decimal.NewFromString(amount)
		ex.State = domain.TradeState(state)
		ex.TxHash = txHash.String
		if kind.String != "" {
			ex.Err = domain.NewTradeError(domain.ErrorKind(kind.String), msg.String, nil)
		}
		ex.StartedAt = time.UnixMilli(started).UTC()
		ex.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, ex)
	}
	return out, rows.Err()
}

// TradeEvents devuelve la secuencia de estados registrada para un intento.
func (s *SQLiteStorage) TradeEvents(ctx context.Context, attemptID string) ([]domain.TradeState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state FROM trade_events WHERE attempt_id = ? ORDER BY id ASC`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("storage.TradeEvents: query: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeState
	for rows.Next() {
		var st string
		if err := rows.Scan(&st); err != nil {
			return nil, fmt.Errorf("storage.TradeEvents: scan row: %w", err)
		}
		out = append(out, domain.TradeState(st))
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// filterChanged devuelve las señales no-AVOID que cambiaron respecto a la caché.
// La caché se actualiza solo tras el commit.
func (s *SQLiteStorage) filterChanged(ranked []domain.ScoredSignal) []domain.ScoredSignal {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toWrite []domain.ScoredSignal
	for _, sc := range ranked {
		if sc.Recommendation == domain.RecAvoid {
			continue
		}
		if prev, ok := s.cache[sc.Signal.ID]; ok {
			cur := stateOf(sc)
			unchanged := prev.recommendation == cur.recommendation &&
				prev.isArbitrage == cur.isArbitrage &&
				math.Abs(prev.edge-cur.edge) < edgeChangePts
			if unchanged {
				continue
			}
		}
		toWrite = append(toWrite, sc)
	}
	return toWrite
}

func stateOf(sc domain.ScoredSignal) cachedState {
	return cachedState{
		recommendation: sc.Recommendation.String(),
		edge:           sc.Signal.EdgePct,
		isArbitrage:    sc.Signal.IsArbitrage,
	}
}

// pruneOld elimina datos antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	now := time.Now()
	s.db.ExecContext(ctx, `DELETE FROM cycles WHERE fetched_at < ?`, now.Add(-retentionCycles).UnixMilli())
	s.db.ExecContext(ctx, `DELETE FROM signals WHERE last_seen < ?`, now.Add(-retentionSignals).UnixMilli())
}

// warmCache precarga la caché desde la DB al arrancar.
func (s *SQLiteStorage) warmCache(ctx context.Context) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recommendation, edge_pct, is_arbitrage FROM signals`,
	)
	if err != nil {
		return
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var id, rec string
		var edge float64
		var isArb int
		if rows.Scan(&id, &rec, &edge, &isArb) == nil {
			s.cache[id] = cachedState{recommendation: rec, edge: edge, isArbitrage: isArb == 1}
		}
	}
}

// cycleSummary cuenta señales accionables (ARBITRAGE, STRONG_BUY, BUY) y el mejor edge.
func cycleSummary(ranked []domain.ScoredSignal) (actionable, arbs int, bestEdge float64) {
	for _, sc := range ranked {
		switch sc.Recommendation {
		case domain.RecArbitrage:
			arbs++
			actionable++
		case domain.RecStrongBuy, domain.RecBuy:
			actionable++
		}
		if sc.Signal.EdgePct > bestEdge {
			bestEdge = sc.Signal.EdgePct
		}
	}
	return
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
