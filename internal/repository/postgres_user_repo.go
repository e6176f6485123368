package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/launchboard/internal/model"
)

// PostgreSQLの一意制約違反コード。
const pqUniqueViolation = "23505"

// usersテーブルの一意制約名（migrations/000001_create_users.up.sql）。
const (
	constraintGoogleID   = "users_google_id_key"
	constraintEthAddress = "users_eth_address_key"
	constraintEmail      = "users_email_key"
)

const userColumns = `id, google_id, eth_address, name, email, description, title, avatar,
	banner_image, banner, created_at, updated_at`

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
	// uuid形式でないIDはクエリ時に型エラーとなるため、存在しない扱いにする
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByAnchor はアンカーカラムの完全一致でユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByAnchor(ctx context.Context, provider, providerID string) (*model.User, error) {
	column, err := anchorColumn(provider)
	if err != nil {
		return nil, err
	}
	if provider == model.ProviderEthereum {
		providerID = strings.ToLower(providerID)
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = $1`,
		providerID,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by %s: %w", column, err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	if !user.HasAnchor() {
		return fmt.Errorf("failed to insert user: no identity anchor")
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	user.EthAddress = strings.ToLower(user.EthAddress)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, google_id, eth_address, name, email, description, title, avatar,
		                    banner_image, banner, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		user.ID, nullString(user.GoogleID), nullString(user.EthAddress), user.Name, user.Email,
		user.Description, user.Title, user.Avatar,
		nullString(user.BannerImage), nullString(user.Banner), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", classifyUniqueViolation(err))
	}

	return nil
}

// DeleteByID は指定IDのユーザーを削除する。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// anchorColumn はプロバイダー名に対応するアンカーカラム名を返す。
func anchorColumn(provider string) (string, error) {
	switch provider {
	case model.ProviderGoogle:
		return "google_id", nil
	case model.ProviderEthereum:
		return "eth_address", nil
	default:
		return "", fmt.Errorf("unknown identity provider: %q", provider)
	}
}

// classifyUniqueViolation は一意制約違反を制約名に応じたセンチネルエラーに変換する。
// それ以外のエラーはそのまま返す。
func classifyUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pqUniqueViolation {
		return err
	}

	switch pqErr.Constraint {
	case constraintGoogleID, constraintEthAddress:
		return fmt.Errorf("%w: %s", ErrDuplicateAnchor, pqErr.Constraint)
	case constraintEmail:
		return fmt.Errorf("%w: %s", ErrDuplicateEmail, pqErr.Constraint)
	default:
		return err
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser は1行をUserに変換する。行が無い場合はnil,nilを返す。
func scanUser(row rowScanner) (*model.User, error) {
	var user model.User
	var googleID, ethAddress, bannerImg, banner sql.NullString
	err := row.Scan(
		&user.ID, &googleID, &ethAddress, &user.Name, &user.Email,
		&user.Description, &user.Title, &user.Avatar,
		&bannerImg, &banner, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user.GoogleID = googleID.String
	user.EthAddress = ethAddress.String
	user.BannerImage = bannerImg.String
	user.Banner = banner.String
	return &user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
