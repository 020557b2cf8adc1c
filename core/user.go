package core

import (
	"context"
	"errors"
)

type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Password  string `json:"password"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type UserWithoutSecrets struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

var (
	ErrConflictedUser = errors.New("user already exists")
)

type UserCreateInput struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Name     string `json:"name" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=8"`
}

func (in *UserCreateInput) Validate() error {
	return validate.Struct(in)
}

type UserStore interface {
	// CreateUser hashes the password and inserts the user. It returns
	// ErrConflictedUser when the username is taken.
	CreateUser(ctx context.Context, in UserCreateInput) (*UserWithoutSecrets, error)

	// GetUserByID returns nil, nil when the user does not exist.
	GetUserByID(ctx context.Context, id string) (*UserWithoutSecrets, error)

	GetUserByUsername(ctx context.Context, username string) (*UserWithoutSecrets, error)

	// ComparePassword reports whether the password matches the user's hash.
	ComparePassword(ctx context.Context, username, password string) (bool, error)
}
