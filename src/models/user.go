package models

import (
	"database/sql"
	"errors"
	"time"
)

// Role separates the two account types. A corredor owns and may mutate only
// its own qualification records; an administrador manages accounts and audit
// logs and is explicitly denied access to qualification data.
const (
	RoleCorredor      = "corredor"
	RoleAdministrador = "administrador"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID              int64     `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	Nombre          string    `json:"nombre"`
	Apellido        string    `json:"apellido"`
	RUT             string    `json:"rut"`
	Role            string    `json:"role"`
	Activo          bool      `json:"activo"`
	Password        string    `json:"-"`
	AuthProvider    string    `json:"-"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Session struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	UserAgent    string    `json:"user_agent"`
	ClientIP     string    `json:"client_ip"`
	IsBlocked    bool      `json:"is_blocked"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

const userColumns = `id, username, email, nombre, apellido, rut, role, activo, password, auth_provider, is_email_verified, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Nombre, &u.Apellido, &u.RUT,
		&u.Role, &u.Activo, &u.Password, &u.AuthProvider, &u.IsEmailVerified,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts the user and sets its generated id.
func (u *User) CreateUser(db *sql.DB) error {
	if u.Role == "" {
		u.Role = RoleCorredor
	}
	if u.AuthProvider == "" {
		u.AuthProvider = "local"
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Activo = true

	res, err := db.Exec(`INSERT INTO users (username, email, nombre, apellido, rut, role, activo, password, auth_provider, is_email_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.Nombre, u.Apellido, u.RUT, u.Role, u.Activo,
		u.Password, u.AuthProvider, u.IsEmailVerified, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

func GetUserByID(db *sql.DB, id int64) (*User, error) {
	return scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func GetUserByUsername(db *sql.DB, username string) (*User, error) {
	return scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

func GetUserByEmail(db *sql.DB, email string) (*User, error) {
	return scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// ListUsers returns all accounts, active and deactivated, newest first.
func ListUsers(db *sql.DB) ([]User, error) {
	rows, err := db.Query(`SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUserRole changes the role of an account. Role is immutable through
// ordinary flows; only the administrator-gated endpoint calls this.
func UpdateUserRole(db *sql.DB, userID int64, role string) error {
	res, err := db.Exec(`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, role, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeactivateUser soft-deactivates an account (activo=0); accounts are never
// hard-deleted.
func DeactivateUser(db *sql.DB, userID int64) error {
	res, err := db.Exec(`UPDATE users SET activo = 0, updated_at = ? WHERE id = ?`, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func SetVerificationToken(db *sql.DB, userID int64, token string, expiresAt time.Time) error {
	_, err := db.Exec(`UPDATE users SET email_verification_token = ?, email_verification_token_expires_at = ? WHERE id = ?`,
		token, expiresAt, userID)
	return err
}

// MarkEmailVerified flips the verification flag for the user holding a
// still-valid token and clears the token.
func MarkEmailVerified(db *sql.DB, token string) (*User, error) {
	u, err := scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users
		WHERE email_verification_token = ? AND email_verification_token_expires_at > ?`,
		token, time.Now().UTC()))
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`UPDATE users SET is_email_verified = 1, email_verification_token = NULL, email_verification_token_expires_at = NULL WHERE id = ?`, u.ID)
	if err != nil {
		return nil, err
	}
	u.IsEmailVerified = true
	return u, nil
}

func SetPasswordResetToken(db *sql.DB, userID int64, token string, expiresAt time.Time) error {
	_, err := db.Exec(`UPDATE users SET password_reset_token = ?, password_reset_token_expires_at = ? WHERE id = ?`,
		token, expiresAt, userID)
	return err
}

// ResetPassword replaces the password hash for the user holding a
// still-valid reset token and clears the token.
func ResetPassword(db *sql.DB, token, newHash string) (*User, error) {
	u, err := scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users
		WHERE password_reset_token = ? AND password_reset_token_expires_at > ?`,
		token, time.Now().UTC()))
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`UPDATE users SET password = ?, password_reset_token = NULL, password_reset_token_expires_at = NULL, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), u.ID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func CreateSession(db *sql.DB, session *Session) error {
	session.CreatedAt = time.Now().UTC()
	_, err := db.Exec(`INSERT INTO sessions (user_id, token, refresh_token, user_agent, client_ip, is_blocked, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.UserID, session.Token, session.RefreshToken, session.UserAgent,
		session.ClientIP, session.IsBlocked, session.ExpiresAt, session.CreatedAt)
	return err
}

func GetSessionByToken(db *sql.DB, token string) (*Session, error) {
	var s Session
	err := db.QueryRow(`SELECT id, user_id, token, refresh_token, user_agent, client_ip, is_blocked, expires_at, created_at
		FROM sessions WHERE token = ? AND is_blocked = 0`, token).
		Scan(&s.ID, &s.UserID, &s.Token, &s.RefreshToken, &s.UserAgent, &s.ClientIP,
			&s.IsBlocked, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("session not found")
		}
		return nil, err
	}
	return &s, nil
}

func GetSessionByRefreshToken(db *sql.DB, refreshToken string) (*Session, error) {
	var s Session
	err := db.QueryRow(`SELECT id, user_id, token, refresh_token, user_agent, client_ip, is_blocked, expires_at, created_at
		FROM sessions WHERE refresh_token = ?`, refreshToken).
		Scan(&s.ID, &s.UserID, &s.Token, &s.RefreshToken, &s.UserAgent, &s.ClientIP,
			&s.IsBlocked, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("session not found")
		}
		return nil, err
	}
	return &s, nil
}

func DeleteSessionByToken(db *sql.DB, token string) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	return err
}
