package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/hitoshi/sponsorlink/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// userWithTenantQuery はユーザーと所属テナントを1クエリで取得するSELECTを組み立てる。
// 団体は最初に参加したactiveな所属、企業は主担当者レコードから導出する。
func userWithTenantQuery() sq.SelectBuilder {
	return psql.Select(
		"u.id", "u.email", "u.name", "u.password_hash", "u.user_type", "u.status",
		"u.email_verified", "u.deleted_at", "u.created_at", "u.updated_at",
		"om.organization_id", "cc.company_id", "cc.id",
	).
		From("users u").
		LeftJoin(`LATERAL (
			SELECT m.organization_id FROM organization_members m
			WHERE m.user_id = u.id AND m.status = 'active'
			ORDER BY m.joined_at ASC, m.id ASC
			LIMIT 1
		) om ON TRUE`).
		LeftJoin(`LATERAL (
			SELECT c.id, c.company_id FROM company_contacts c
			WHERE c.user_id = u.id AND c.is_primary = TRUE
			ORDER BY c.created_at ASC, c.id ASC
			LIMIT 1
		) cc ON TRUE`).
		Where(sq.Eq{"u.deleted_at": nil})
}

func (r *PostgresUserRepo) findOne(ctx context.Context, where sq.Eq) (*model.User, error) {
	query, args, err := userWithTenantQuery().Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	user := &model.User{}
	var (
		deletedAt sql.NullTime
		orgID     sql.NullString
		companyID sql.NullString
		contactID sql.NullString
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.UserType, &user.Status,
		&user.EmailVerified, &deletedAt, &user.CreatedAt, &user.UpdatedAt,
		&orgID, &companyID, &contactID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user.DeletedAt = nullTimePtr(deletedAt)
	user.OrganizationID = orgID.String
	user.CompanyID = companyID.String
	user.ContactID = contactID.String
	return user, nil
}

// FindByID は指定IDのユーザーを所属情報付きで取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if !isUUID(id) {
		return nil, nil
	}
	user, err := r.findOne(ctx, sq.Eq{"u.id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを所属情報付きで取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := r.findOne(ctx, sq.Eq{"u.email": email})
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
