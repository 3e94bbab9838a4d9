package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const fillColumns = `order_id, session_id, time, tick, symbol, side, quantity, price, filled_qty,
	fill_price, executed, reason, score, realized_pnl, pnl_pct, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanFill(s scanner) (FillRecord, error) {
	var rec FillRecord
	err := s.Scan(
		&rec.OrderID,
		&rec.SessionID,
		&rec.Time,
		&rec.Tick,
		&rec.Symbol,
		&rec.Side,
		&rec.Quantity,
		&rec.Price,
		&rec.FilledQty,
		&rec.FillPrice,
		&rec.Executed,
		&rec.Reason,
		&rec.Score,
		&rec.RealizedPnL,
		&rec.PnLPct,
		&rec.Error,
	)
	return rec, err
}

func collectFills(rows *sql.Rows) ([]FillRecord, error) {
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		rec, err := scanFill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetFill returns a single fill by order id.
func (j *SQLite) GetFill(orderID string) (FillRecord, error) {
	row := j.db.QueryRow(`SELECT `+fillColumns+` FROM fills WHERE order_id = ?`, orderID)
	rec, err := scanFill(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FillRecord{}, fmt.Errorf("fill %q not found", orderID)
		}
		return FillRecord{}, err
	}
	return rec, nil
}

// ListFills returns every fill ordered by time.
func (j *SQLite) ListFills() ([]FillRecord, error) {
	rows, err := j.db.Query(`SELECT ` + fillColumns + ` FROM fills ORDER BY time ASC, tick ASC, order_id ASC`)
	if err != nil {
		return nil, err
	}
	return collectFills(rows)
}

// ListFillsBySymbol returns the fills for one symbol ordered by time.
func (j *SQLite) ListFillsBySymbol(symbol string) ([]FillRecord, error) {
	rows, err := j.db.Query(`SELECT `+fillColumns+` FROM fills WHERE symbol = ?
		ORDER BY time ASC, tick ASC, order_id ASC`, symbol)
	if err != nil {
		return nil, err
	}
	return collectFills(rows)
}

// ListFillsBySession returns one session's fills in tick order.
func (j *SQLite) ListFillsBySession(sessionID string) ([]FillRecord, error) {
	rows, err := j.db.Query(`SELECT `+fillColumns+` FROM fills WHERE session_id = ?
		ORDER BY tick ASC, order_id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	return collectFills(rows)
}

// ListEquityBetween returns equity snapshots whose time is within [start, end).
func (j *SQLite) ListEquityBetween(start, end time.Time) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT session_id, time, tick, cash, equity, exposure, day_pnl_pct, positions
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time ASC, tick ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(
			&e.SessionID,
			&e.Time,
			&e.Tick,
			&e.Cash,
			&e.Equity,
			&e.Exposure,
			&e.DayPnLPct,
			&e.Positions,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const sessionColumns = `session_id, start_time, end_time, ticks, buys, sells, wins, losses,
	realized_pnl, realized_pnl_pct, avg_pnl_pct, final_equity, open_positions, exit_reasons`

func scanSession(s scanner) (SessionRecord, error) {
	var (
		rec     SessionRecord
		reasons string
	)
	if err := s.Scan(
		&rec.SessionID,
		&rec.Start,
		&rec.End,
		&rec.Ticks,
		&rec.Buys,
		&rec.Sells,
		&rec.Wins,
		&rec.Losses,
		&rec.RealizedPnL,
		&rec.RealizedPnLPct,
		&rec.AvgPnLPct,
		&rec.FinalEquity,
		&rec.OpenPositions,
		&reasons,
	); err != nil {
		return SessionRecord{}, err
	}
	if reasons != "" && reasons != "null" {
		if err := json.Unmarshal([]byte(reasons), &rec.ExitReasons); err != nil {
			return SessionRecord{}, fmt.Errorf("session %s exit reasons: %w", rec.SessionID, err)
		}
	}
	return rec, nil
}

// GetSession returns one session summary.
func (j *SQLite) GetSession(sessionID string) (SessionRecord, error) {
	row := j.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	rec, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionRecord{}, fmt.Errorf("session %q not found", sessionID)
		}
		return SessionRecord{}, err
	}
	return rec, nil
}

// ListSessions returns every session, newest first.
func (j *SQLite) ListSessions() ([]SessionRecord, error) {
	rows, err := j.db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY start_time DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
