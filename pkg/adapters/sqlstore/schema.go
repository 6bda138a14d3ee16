package sqlstore

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS policies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		premium REAL NOT NULL,
		benefits TEXT NOT NULL,
		coverage_limit REAL NOT NULL,
		is_custom INTEGER DEFAULT 0,
		is_active INTEGER DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS user_health_insurance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		policy_id INTEGER NOT NULL REFERENCES policies(id),
		start_date TEXT DEFAULT CURRENT_TIMESTAMP,
		end_date TEXT,
		status TEXT DEFAULT 'active'
	)`,
	`CREATE TABLE IF NOT EXISTS user_vehicle_insurance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		policy_id INTEGER NOT NULL REFERENCES policies(id),
		number_plate TEXT NOT NULL,
		vehicle_type TEXT NOT NULL,
		brand_model TEXT,
		age INTEGER,
		kms_driven INTEGER,
		wheels INTEGER,
		start_date TEXT DEFAULT CURRENT_TIMESTAMP,
		end_date TEXT,
		status TEXT DEFAULT 'active'
	)`,
	`CREATE TABLE IF NOT EXISTS claims (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		claim_number TEXT UNIQUE,
		user_id INTEGER NOT NULL REFERENCES users(id),
		insurance_type TEXT NOT NULL,
		insurance_ref_id INTEGER NOT NULL,
		claim_reason TEXT,
		document_text TEXT,
		document_info TEXT,
		document_digest TEXT,
		claim_amount REAL,
		reimbursement REAL,
		status TEXT DEFAULT 'initiated',
		created_at TEXT DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS issued_policies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		phone TEXT,
		email TEXT,
		insurance_type TEXT NOT NULL,
		plan TEXT NOT NULL,
		premium REAL NOT NULL,
		coverage REAL NOT NULL,
		benefits TEXT,
		issued_at TEXT DEFAULT CURRENT_TIMESTAMP
	)`,
}

type seedPolicy struct {
	name     string
	kind     string
	premium  float64
	benefits string
	coverage float64
	active   bool
}

var seedPolicies = []seedPolicy{
	{"Health Basic", "health", 5000, "Covers hospitalization up to ₹2,00,000", 200000, true},
	{"Health Premium", "health", 12000, "Covers hospitalization up to ₹5,00,000 + maternity benefits", 500000, true},
	{"Vehicle Standard", "vehicle", 8000, "Covers accidental damage + third-party liability", 300000, true},
	{"Vehicle Comprehensive", "vehicle", 15000, "Covers damage, theft, fire + personal accident cover", 700000, true},
	{"Health Inactive", "health", 8000, "Old inactive policy", 100000, false},
}
