package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrDuplicateEmail は既に登録済みのメールアドレスで登録を試みたことを表す。
var ErrDuplicateEmail = errors.New("メールアドレスが既に登録されている")

// User はusersテーブルの1行。
type User struct {
	// ID はユーザーの一意識別子。
	ID int64
	// Email はメールアドレス。
	Email string
	// PasswordHash はbcryptでハッシュ化されたパスワード。
	PasswordHash string
	// FirstName は名。
	FirstName string
	// LastName は姓。
	LastName string
}

// Store はユーザーの永続化を担当する。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewStore は新しいユーザーストアを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateUser は新しいユーザーを登録する。
// メールアドレスが登録済みの場合はErrDuplicateEmailを返す。
func (s *Store) CreateUser(ctx context.Context, email, passwordHash, firstName, lastName string) (User, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, first_name, last_name) VALUES (?, ?, ?, ?)`,
		email, passwordHash, firstName, lastName,
	)
	if err != nil {
		// UNIQUE制約違反はメールアドレスの重複として扱う
		if _, lookupErr := s.GetUserByEmail(ctx, email); lookupErr == nil {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("ユーザーの登録に失敗: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("登録したユーザーIDの取得に失敗: %w", err)
	}

	return User{
		ID:        id,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
	}, nil
}

// GetUserByEmail はメールアドレスでユーザーを検索する。
// 見つからない場合はsql.ErrNoRowsを返す。
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, first_name, last_name FROM users WHERE email = ?`,
		email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// GetUserByID はIDでユーザーを検索する。
// 見つからない場合はsql.ErrNoRowsを返す。
func (s *Store) GetUserByID(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, first_name, last_name FROM users WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// UpdateProfile はユーザーの氏名を更新する。
func (s *Store) UpdateProfile(ctx context.Context, id int64, firstName, lastName string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET first_name = ?, last_name = ?, updated_at = datetime('now') WHERE id = ?`,
		firstName, lastName, id,
	)
	if err != nil {
		return fmt.Errorf("プロフィールの更新に失敗: %w", err)
	}
	return nil
}
