package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/qualitax/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

// DSN appends the pragmas every pooled connection needs. Bulk uploads
// commit their batches on parallel connections, and without a busy
// timeout the second write transaction fails immediately with
// SQLITE_BUSY instead of queueing behind the first.
func DSN(databasePath string) string {
	return databasePath + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", DSN(databasePath))
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateUserTable()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		nombre TEXT NOT NULL DEFAULT '',
		apellido TEXT NOT NULL DEFAULT '',
		rut TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'corredor',
		activo BOOLEAN DEFAULT TRUE,
		password TEXT NOT NULL,
		auth_provider TEXT DEFAULT 'local',
		is_email_verified BOOLEAN DEFAULT FALSE,
		email_verification_token TEXT,
		email_verification_token_expires_at TIMESTAMP,
		password_reset_token TEXT,
		password_reset_token_expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		user_agent TEXT,
		client_ip TEXT,
		is_blocked BOOLEAN DEFAULT FALSE,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS qualifications (
		id TEXT PRIMARY KEY,
		broker_id TEXT NOT NULL,
		instrumento TEXT NOT NULL,
		mercado TEXT NOT NULL,
		periodo TEXT NOT NULL,
		tipo_calificacion TEXT NOT NULL,
		f8 REAL NOT NULL DEFAULT 0, f9 REAL NOT NULL DEFAULT 0,
		f10 REAL NOT NULL DEFAULT 0, f11 REAL NOT NULL DEFAULT 0,
		f12 REAL NOT NULL DEFAULT 0, f13 REAL NOT NULL DEFAULT 0,
		f14 REAL NOT NULL DEFAULT 0, f15 REAL NOT NULL DEFAULT 0,
		f16 REAL NOT NULL DEFAULT 0, f17 REAL NOT NULL DEFAULT 0,
		f18 REAL NOT NULL DEFAULT 0, f19 REAL NOT NULL DEFAULT 0,
		monto REAL NOT NULL DEFAULT 0,
		es_oficial BOOLEAN DEFAULT FALSE,
		deleted BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_qualifications_broker ON qualifications(broker_id, deleted);

	CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		actor_uid TEXT NOT NULL,
		actor_email TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		resource TEXT NOT NULL,
		resource_id TEXT NOT NULL DEFAULT '',
		details TEXT NOT NULL DEFAULT '',
		before_state TEXT NOT NULL DEFAULT '',
		after_state TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// migrateUserTable adds columns introduced after the first release to an
// existing users table. Fresh installs get the full schema from CREATE
// TABLE directly.
func migrateUserTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='users'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for 'users' table", "error", err)
		} else {
			stdlog.Printf("Error checking for 'users' table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(users)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for 'users'", "error", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info for 'users'", "error", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for 'users'", "error", err)
		}
		return
	}

	addColumn := func(name, ddl string) {
		if columnExists[name] {
			return
		}
		if _, err := DB.Exec("ALTER TABLE users ADD COLUMN " + ddl); err != nil {
			logger.L.Error("Error adding column to 'users' table", "column", name, "error", err)
		} else {
			logger.L.Info("Added column to 'users' table", "column", name)
		}
	}

	addColumn("nombre", "nombre TEXT NOT NULL DEFAULT ''")
	addColumn("apellido", "apellido TEXT NOT NULL DEFAULT ''")
	addColumn("rut", "rut TEXT NOT NULL DEFAULT ''")
	addColumn("role", "role TEXT NOT NULL DEFAULT 'corredor'")
	addColumn("activo", "activo BOOLEAN DEFAULT TRUE")
	addColumn("auth_provider", "auth_provider TEXT DEFAULT 'local'")
	addColumn("is_email_verified", "is_email_verified BOOLEAN DEFAULT FALSE")
	addColumn("email_verification_token", "email_verification_token TEXT")
	addColumn("email_verification_token_expires_at", "email_verification_token_expires_at TIMESTAMP")
	addColumn("password_reset_token", "password_reset_token TEXT")
	addColumn("password_reset_token_expires_at", "password_reset_token_expires_at TIMESTAMP")
}
