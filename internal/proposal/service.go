// Package proposal は協賛申請の提出と参照のドメインロジックを提供する。
package proposal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/sponsorlink/internal/authz"
	"github.com/hitoshi/sponsorlink/internal/metrics"
	"github.com/hitoshi/sponsorlink/internal/model"
	"github.com/hitoshi/sponsorlink/internal/repository"
)

// SubmitParams は申請提出のパラメータ。
type SubmitParams struct {
	OrganizationID    string
	CompanyID         string
	PlanID            *string
	Message           string
	SubmittedByUserID string
}

// Service は協賛申請のサービス層。
type Service struct {
	repo    repository.ProposalRepository
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.ProposalRepository,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		repo:    repo,
		metrics: collector,
		now:     time.Now,
	}
}

// Submit は申請を検証して保存する。
// 検証は organizationId → companyId → message → submittedByUserId → planId の順に行い、
// 最初に不備のあった項目のValidationErrorを返す。planIdは空なら未指定として扱う。
// 同一の団体・企業の組での重複申請は検査しない。
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*model.Proposal, error) {
	if params.OrganizationID == "" {
		return nil, model.NewValidationError("organizationId", "組織IDが指定されていません")
	}
	if params.CompanyID == "" {
		return nil, model.NewValidationError("companyId", "企業IDが指定されていません")
	}
	// 本文は前後の空白のみ除去し、それ以外は入力のまま保存する
	message := strings.TrimSpace(params.Message)
	if message == "" {
		return nil, model.NewValidationError("message", "メッセージが指定されていません")
	}
	if params.SubmittedByUserID == "" {
		return nil, model.NewValidationError("submittedByUserId", "提出者IDが指定されていません")
	}

	planID := params.PlanID
	if planID != nil && *planID == "" {
		planID = nil
	}
	if planID != nil {
		if _, err := uuid.Parse(*planID); err != nil {
			return nil, model.NewValidationError("planId", "プランIDが不正です")
		}
	}

	p := &model.Proposal{
		ID:                uuid.New().String(),
		OrganizationID:    params.OrganizationID,
		CompanyID:         params.CompanyID,
		PlanID:            planID,
		Message:           message,
		Status:            model.ProposalStatusSubmitted,
		SubmittedByUserID: params.SubmittedByUserID,
		SubmittedAt:       s.now(),
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrReferenceNotFound) {
			return nil, model.NewNotFoundError("企業", p.CompanyID)
		}
		return nil, fmt.Errorf("申請の保存に失敗しました: %w", err)
	}

	s.metrics.RecordProposalSubmitted()
	slog.Info("proposal submitted",
		slog.String("proposal_id", p.ID),
		slog.String("organization_id", p.OrganizationID),
		slog.String("company_id", p.CompanyID),
		slog.String("user_id", p.SubmittedByUserID),
	)

	return p, nil
}

// ListByOrganization は団体の申請一覧を申請日時の降順で返す。
func (s *Service) ListByOrganization(ctx context.Context, organizationID string) ([]*model.Proposal, error) {
	if organizationID == "" {
		return nil, model.NewValidationError("organizationId", "組織IDが指定されていません")
	}
	proposals, err := s.repo.ListByOrganizationID(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("申請一覧の取得に失敗しました: %w", err)
	}
	return proposals, nil
}

// ListByCompany は企業宛ての申請一覧を申請日時の降順で返す。
func (s *Service) ListByCompany(ctx context.Context, companyID string) ([]*model.Proposal, error) {
	if companyID == "" {
		return nil, model.NewValidationError("companyId", "企業IDが指定されていません")
	}
	proposals, err := s.repo.ListByCompanyID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("申請一覧の取得に失敗しました: %w", err)
	}
	return proposals, nil
}

// FindByID は指定IDの申請を返す。見つからない場合はnilを返す。
func (s *Service) FindByID(ctx context.Context, id string) (*model.Proposal, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("申請の取得に失敗しました: %w", err)
	}
	return p, nil
}

// SubmitFor は団体ユーザーとして申請を提出する。
// 提出者は主体から決まり、申請元の団体は主体の所属団体と一致しなければならない。
func (s *Service) SubmitFor(ctx context.Context, principal *model.Principal, params SubmitParams) (*model.Proposal, error) {
	if err := authz.RequireOrganization(principal); err != nil {
		return nil, err
	}
	if err := authz.Authorize(principal, params.OrganizationID, ""); err != nil {
		return nil, err
	}
	params.SubmittedByUserID = principal.ID
	return s.Submit(ctx, params)
}

// ListForOrganization は主体の所属団体の申請一覧を返す。
func (s *Service) ListForOrganization(ctx context.Context, principal *model.Principal, organizationID string) ([]*model.Proposal, error) {
	if err := authz.RequireOrganization(principal); err != nil {
		return nil, err
	}
	if err := authz.Authorize(principal, organizationID, ""); err != nil {
		return nil, err
	}
	return s.ListByOrganization(ctx, organizationID)
}

// ListForCompany は主体の所属企業宛ての申請一覧を返す。
func (s *Service) ListForCompany(ctx context.Context, principal *model.Principal, companyID string) ([]*model.Proposal, error) {
	if err := authz.RequireCompany(principal); err != nil {
		return nil, err
	}
	if err := authz.Authorize(principal, "", companyID); err != nil {
		return nil, err
	}
	return s.ListByCompany(ctx, companyID)
}

// GetFor は当事者である主体に対して申請を返す。
// 見つからない場合はNotFoundを返す。
func (s *Service) GetFor(ctx context.Context, principal *model.Principal, id string) (*model.Proposal, error) {
	if principal == nil {
		return nil, model.NewAuthenticationRequiredError()
	}
	p, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, model.NewProposalNotFoundError(id)
	}
	if err := authz.AuthorizeProposal(principal, p); err != nil {
		return nil, err
	}
	return p, nil
}
