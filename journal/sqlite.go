package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordFill(r FillRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO fills
		(order_id, session_id, time, tick, symbol, side, quantity, price, filled_qty, fill_price,
		 executed, reason, score, realized_pnl, pnl_pct, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.OrderID, r.SessionID, r.Time.UTC(), r.Tick, r.Symbol, r.Side, r.Quantity, r.Price,
		r.FilledQty, r.FillPrice, r.Executed, r.Reason, r.Score, r.RealizedPnL, r.PnLPct, r.Error,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(session_id, time, tick, cash, equity, exposure, day_pnl_pct, positions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Time.UTC(), e.Tick, e.Cash, e.Equity, e.Exposure, e.DayPnLPct, e.Positions,
	)
	return err
}

func (j *SQLite) RecordSession(s SessionRecord) error {
	reasons, err := json.Marshal(s.ExitReasons)
	if err != nil {
		return err
	}
	_, err = j.db.Exec(`
		INSERT OR REPLACE INTO sessions
		(session_id, start_time, end_time, ticks, buys, sells, wins, losses, realized_pnl,
		 realized_pnl_pct, avg_pnl_pct, final_equity, open_positions, exit_reasons)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.Start.UTC(), s.End.UTC(), s.Ticks, s.Buys, s.Sells, s.Wins, s.Losses,
		s.RealizedPnL, s.RealizedPnLPct, s.AvgPnLPct, s.FinalEquity, s.OpenPositions, string(reasons),
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
