package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/hitoshi/sponsorlink/internal/model"
)

// PostgresProposalRepo はPostgreSQLを使用した協賛申請リポジトリ。
type PostgresProposalRepo struct {
	db *sql.DB
}

// NewPostgresProposalRepo はPostgresProposalRepoを生成する。
func NewPostgresProposalRepo(db *sql.DB) *PostgresProposalRepo {
	return &PostgresProposalRepo{db: db}
}

var proposalColumns = []string{
	"id", "organization_id", "company_id", "plan_id", "message", "status",
	"submitted_by_user_id", "submitted_at", "reviewed_at", "reviewed_by_user_id",
}

// Create は申請を保存する。参照先の団体・企業が存在しない場合はErrReferenceNotFoundを返す。
func (r *PostgresProposalRepo) Create(ctx context.Context, p *model.Proposal) error {
	if !isUUID(p.OrganizationID) || !isUUID(p.CompanyID) {
		return fmt.Errorf("failed to create proposal: %w", ErrReferenceNotFound)
	}

	query, args, err := psql.Insert("proposals").
		Columns(proposalColumns...).
		Values(
			p.ID, p.OrganizationID, p.CompanyID, p.PlanID, p.Message, string(p.Status),
			p.SubmittedByUserID, p.SubmittedAt, p.ReviewedAt, p.ReviewedByUserID,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build proposal insert: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("failed to create proposal: %w", ErrReferenceNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to create proposal: %w", err)
	}
	return nil
}

// FindByID は指定IDの申請を取得する。見つからない場合はnilを返す。
func (r *PostgresProposalRepo) FindByID(ctx context.Context, id string) (*model.Proposal, error) {
	if !isUUID(id) {
		return nil, nil
	}

	query, args, err := psql.Select(proposalColumns...).
		From("proposals").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build proposal query: %w", err)
	}

	p, err := scanProposal(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find proposal: %w", err)
	}
	return p, nil
}

// ListByOrganizationID は団体の申請一覧を申請日時の降順で返す。
func (r *PostgresProposalRepo) ListByOrganizationID(ctx context.Context, organizationID string) ([]*model.Proposal, error) {
	return r.list(ctx, "organization_id", organizationID)
}

// ListByCompanyID は企業宛ての申請一覧を申請日時の降順で返す。
func (r *PostgresProposalRepo) ListByCompanyID(ctx context.Context, companyID string) ([]*model.Proposal, error) {
	return r.list(ctx, "company_id", companyID)
}

func (r *PostgresProposalRepo) list(ctx context.Context, column, tenantID string) ([]*model.Proposal, error) {
	if !isUUID(tenantID) {
		return []*model.Proposal{}, nil
	}

	query, args, err := psql.Select(proposalColumns...).
		From("proposals").
		Where(sq.Eq{column: tenantID}).
		OrderBy("submitted_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build proposal list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	proposals := []*model.Proposal{}
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate proposals: %w", err)
	}
	return proposals, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (*model.Proposal, error) {
	p := &model.Proposal{}
	var (
		status     string
		planID     sql.NullString
		reviewedAt sql.NullTime
		reviewedBy sql.NullString
	)
	if err := row.Scan(
		&p.ID, &p.OrganizationID, &p.CompanyID, &planID, &p.Message, &status,
		&p.SubmittedByUserID, &p.SubmittedAt, &reviewedAt, &reviewedBy,
	); err != nil {
		return nil, err
	}
	p.Status = model.ProposalStatus(status)
	p.PlanID = nullStringPtr(planID)
	p.ReviewedAt = nullTimePtr(reviewedAt)
	p.ReviewedByUserID = nullStringPtr(reviewedBy)
	return p, nil
}

// compile-time interface check
var _ ProposalRepository = (*PostgresProposalRepo)(nil)
