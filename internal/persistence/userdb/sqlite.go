package userdb

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrUserExists     = errors.New("username already registered")
	ErrBadCredentials = errors.New("incorrect username or password")
)

// Store keeps registered users in sqlite and mints HMAC-signed session
// tokens. Placement itself never requires an account; tokens only gate
// the optional authenticated surfaces.
type Store struct {
	db       *sql.DB
	secret   []byte
	tokenTTL time.Duration
}

func Open(path string, secret []byte, tokenTTL time.Duration) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("empty token secret")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	schema := `CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		salt TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	if tokenTTL <= 0 {
		tokenTTL = 30 * time.Minute
	}
	return &Store{db: db, secret: secret, tokenTTL: tokenTTL}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Register creates a user and returns a fresh session token.
func (s *Store) Register(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", fmt.Errorf("username and password required")
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := hashPassword(salt, password)

	_, err := s.db.Exec(
		`INSERT INTO users (username, salt, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		username, hex.EncodeToString(salt), hash, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return "", ErrUserExists
		}
		return "", err
	}
	return s.mintToken(username), nil
}

// Login verifies credentials and returns a fresh session token.
func (s *Store) Login(username, password string) (string, error) {
	var saltHex, storedHash string
	err := s.db.QueryRow(
		`SELECT salt, password_hash FROM users WHERE username = ?`, strings.TrimSpace(username),
	).Scan(&saltHex, &storedHash)
	if err == sql.ErrNoRows {
		return "", ErrBadCredentials
	}
	if err != nil {
		return "", err
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", err
	}
	if subtle.ConstantTimeCompare([]byte(hashPassword(salt, password)), []byte(storedHash)) != 1 {
		return "", ErrBadCredentials
	}
	return s.mintToken(username), nil
}

// VerifyToken checks the signature and expiry of a session token and
// returns the username it was minted for.
func (s *Store) VerifyToken(token string) (string, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", false
	}
	nameRaw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", false
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || time.Now().Unix() > exp {
		return "", false
	}
	want := s.sign(parts[0] + "." + parts[1])
	if subtle.ConstantTimeCompare([]byte(want), []byte(parts[2])) != 1 {
		return "", false
	}
	return string(nameRaw), true
}

func (s *Store) mintToken(username string) string {
	name := base64.RawURLEncoding.EncodeToString([]byte(username))
	exp := strconv.FormatInt(time.Now().Add(s.tokenTTL).Unix(), 10)
	payload := name + "." + exp
	return payload + "." + s.sign(payload)
}

func (s *Store) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func hashPassword(salt []byte, password string) string {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(password))
	return hex.EncodeToString(h.Sum(nil))
}
