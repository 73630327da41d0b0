package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/kansha/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, telegram_id, username, first_name, last_name, created_at
		 FROM users WHERE id = $1`,
		id,
	))
}

// GetOrCreateByTelegramID はtelegram_idでユーザーを取得し、存在しなければ作成する。
// 表示属性（username等）がTelegram側で変わっていれば追従して更新する。
func (r *PostgresUserRepo) GetOrCreateByTelegramID(ctx context.Context, telegramID int64, username, firstName, lastName string) (*model.User, error) {
	user, err := r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, telegram_id, username, first_name, last_name, created_at
		 FROM users WHERE telegram_id = $1`,
		telegramID,
	))
	if err != nil {
		return nil, err
	}

	if user == nil {
		user = &model.User{
			ID:         uuid.New().String(),
			TelegramID: telegramID,
			Username:   username,
			FirstName:  firstName,
			LastName:   lastName,
			CreatedAt:  time.Now().UTC(),
		}

		_, err := r.db.ExecContext(ctx,
			`INSERT INTO users (id, telegram_id, username, first_name, last_name, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (telegram_id) DO NOTHING`,
			user.ID, user.TelegramID, user.Username, user.FirstName, user.LastName, user.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
		}

		// 同時作成に負けた場合は既存行を読み直す
		existing, err := r.scanOne(r.db.QueryRowContext(ctx,
			`SELECT id, telegram_id, username, first_name, last_name, created_at
			 FROM users WHERE telegram_id = $1`,
			telegramID,
		))
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
		return user, nil
	}

	if user.Username != username || user.FirstName != firstName || user.LastName != lastName {
		user.Username = username
		user.FirstName = firstName
		user.LastName = lastName

		_, err := r.db.ExecContext(ctx,
			`UPDATE users SET username = $2, first_name = $3, last_name = $4 WHERE id = $1`,
			user.ID, username, firstName, lastName,
		)
		if err != nil {
			return nil, fmt.Errorf("ユーザー表示属性の更新に失敗しました: %w", err)
		}
	}

	return user, nil
}

func (r *PostgresUserRepo) scanOne(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var username, firstName, lastName sql.NullString

	err := row.Scan(&user.ID, &user.TelegramID, &username, &firstName, &lastName, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	user.Username = username.String
	user.FirstName = firstName.String
	user.LastName = lastName.String

	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
