package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type SQLiteUserStore struct {
	db *sql.DB
}

func NewSQLiteUserStore(db *sql.DB) *SQLiteUserStore {
	return &SQLiteUserStore{db: db}
}

func (s *SQLiteUserStore) CreateUser(ctx context.Context, in UserCreateInput) (*UserWithoutSecrets, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.GetUserByUsername(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("checking if user exists: %w", err)
	}
	if existing != nil {
		return nil, ErrConflictedUser
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &UserWithoutSecrets{
		ID:       uuid.New().String(),
		Username: in.Username,
		Name:     in.Name,
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, name, password) VALUES (@id, @username, @name, @password)`,
		sql.Named("id", user.ID), sql.Named("username", user.Username),
		sql.Named("name", user.Name), sql.Named("password", string(hashed)))
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return user, nil
}

func (s *SQLiteUserStore) GetUserByID(ctx context.Context, id string) (*UserWithoutSecrets, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, name, COALESCE(avatar_url, '') FROM users WHERE id = @id`,
		sql.Named("id", id))
	return scanUser(row)
}

func (s *SQLiteUserStore) GetUserByUsername(ctx context.Context, username string) (*UserWithoutSecrets, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, name, COALESCE(avatar_url, '') FROM users WHERE username = @username`,
		sql.Named("username", username))
	return scanUser(row)
}

func scanUser(row *sql.Row) (*UserWithoutSecrets, error) {
	var user UserWithoutSecrets
	if err := row.Scan(&user.ID, &user.Username, &user.Name, &user.AvatarURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteUserStore) ComparePassword(ctx context.Context, username, password string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT password FROM users WHERE username = @username`,
		sql.Named("username", username))

	var hashed string
	if err := row.Scan(&hashed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("scanning password: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}
