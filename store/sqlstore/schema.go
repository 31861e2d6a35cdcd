package sqlstore

// Money and time columns are TEXT in SQLite: TEXT affinity keeps decimal
// strings exact and the fixed-width time layout sorts correctly.
// AUTOINCREMENT stops SQLite from reusing the id of a deleted newest
// entry; entry ids must only grow for the chain order to hold.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	type TEXT NOT NULL CHECK (type IN ('CASH', 'PARTY_ACCOUNT', 'CUSTOMER_ACCOUNT')),
	phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	balance TEXT NOT NULL DEFAULT '0',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	dr_amount TEXT NOT NULL,
	cr_amount TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL,
	reference_type TEXT NOT NULL,
	reference_id TEXT NOT NULL,
	opening_balance TEXT NOT NULL,
	closing_balance TEXT NOT NULL,
	created_at TEXT NOT NULL,
	idempotency_key TEXT UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_entries_account_id
	ON ledger_entries(account_id, id);
CREATE INDEX IF NOT EXISTS idx_entries_reference
	ON ledger_entries(reference_type, reference_id);
CREATE INDEX IF NOT EXISTS idx_entries_created
	ON ledger_entries(created_at, id);

CREATE TABLE IF NOT EXISTS journals (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	debit_account_id INTEGER NOT NULL REFERENCES accounts(id),
	credit_account_id INTEGER NOT NULL REFERENCES accounts(id),
	amount TEXT NOT NULL,
	description TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sales (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	date TEXT NOT NULL,
	weight TEXT NOT NULL,
	rate TEXT NOT NULL,
	total_amount TEXT NOT NULL,
	pre_balance TEXT NOT NULL DEFAULT '0',
	payment TEXT NOT NULL DEFAULT '0',
	balance TEXT NOT NULL DEFAULT '0',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sales_account_date
	ON sales(account_id, date);

CREATE TABLE IF NOT EXISTS purchases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	date TEXT NOT NULL,
	weight TEXT NOT NULL,
	rate TEXT NOT NULL,
	total_amount TEXT NOT NULL,
	pre_balance TEXT NOT NULL DEFAULT '0',
	payment TEXT NOT NULL DEFAULT '0',
	balance TEXT NOT NULL DEFAULT '0',
	vehicle_number TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_purchases_account_date
	ON purchases(account_id, date);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL CHECK (type IN ('CASH', 'PARTY_ACCOUNT', 'CUSTOMER_ACCOUNT')),
	phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	balance NUMERIC(18, 2) NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id BIGSERIAL PRIMARY KEY,
	account_id BIGINT NOT NULL REFERENCES accounts(id),
	dr_amount NUMERIC(18, 2) NOT NULL,
	cr_amount NUMERIC(18, 2) NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL,
	reference_type TEXT NOT NULL,
	reference_id TEXT NOT NULL,
	opening_balance NUMERIC(18, 2) NOT NULL,
	closing_balance NUMERIC(18, 2) NOT NULL,
	created_at TEXT NOT NULL,
	idempotency_key TEXT UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_entries_account_id
	ON ledger_entries(account_id, id);
CREATE INDEX IF NOT EXISTS idx_entries_reference
	ON ledger_entries(reference_type, reference_id);
CREATE INDEX IF NOT EXISTS idx_entries_created
	ON ledger_entries(created_at, id);

CREATE TABLE IF NOT EXISTS journals (
	id BIGSERIAL PRIMARY KEY,
	debit_account_id BIGINT NOT NULL REFERENCES accounts(id),
	credit_account_id BIGINT NOT NULL REFERENCES accounts(id),
	amount NUMERIC(18, 2) NOT NULL,
	description TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sales (
	id BIGSERIAL PRIMARY KEY,
	account_id BIGINT NOT NULL REFERENCES accounts(id),
	date TEXT NOT NULL,
	weight NUMERIC NOT NULL,
	rate NUMERIC NOT NULL,
	total_amount NUMERIC(18, 2) NOT NULL,
	pre_balance NUMERIC(18, 2) NOT NULL DEFAULT 0,
	payment NUMERIC(18, 2) NOT NULL DEFAULT 0,
	balance NUMERIC(18, 2) NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sales_account_date
	ON sales(account_id, date);

CREATE TABLE IF NOT EXISTS purchases (
	id BIGSERIAL PRIMARY KEY,
	account_id BIGINT NOT NULL REFERENCES accounts(id),
	date TEXT NOT NULL,
	weight NUMERIC NOT NULL,
	rate NUMERIC NOT NULL,
	total_amount NUMERIC(18, 2) NOT NULL,
	pre_balance NUMERIC(18, 2) NOT NULL DEFAULT 0,
	payment NUMERIC(18, 2) NOT NULL DEFAULT 0,
	balance NUMERIC(18, 2) NOT NULL DEFAULT 0,
	vehicle_number TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_purchases_account_date
	ON purchases(account_id, date);
`
