package journal

const Schema = `
CREATE TABLE IF NOT EXISTS fills (
	order_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	tick INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	price REAL NOT NULL,
	filled_qty INTEGER NOT NULL,
	fill_price REAL NOT NULL,
	executed INTEGER NOT NULL,
	reason TEXT NOT NULL,
	score REAL NOT NULL,
	realized_pnl REAL NOT NULL,
	pnl_pct REAL NOT NULL,
	error TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_symbol ON fills(symbol, time);

CREATE TABLE IF NOT EXISTS equity (
	session_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	tick INTEGER NOT NULL,
	cash REAL NOT NULL,
	equity REAL NOT NULL,
	exposure REAL NOT NULL,
	day_pnl_pct REAL NOT NULL,
	positions INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);

CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	ticks INTEGER NOT NULL,
	buys INTEGER NOT NULL,
	sells INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	realized_pnl REAL NOT NULL,
	realized_pnl_pct REAL NOT NULL,
	avg_pnl_pct REAL NOT NULL,
	final_equity REAL NOT NULL,
	open_positions INTEGER NOT NULL,
	exit_reasons TEXT NOT NULL
);
`
