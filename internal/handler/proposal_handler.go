package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sponsorlink/internal/middleware"
	"github.com/hitoshi/sponsorlink/internal/model"
	"github.com/hitoshi/sponsorlink/internal/proposal"
)

// ProposalServiceInterface は協賛申請ハンドラーが必要とするサービスインターフェース。
type ProposalServiceInterface interface {
	SubmitFor(ctx context.Context, principal *model.Principal, params proposal.SubmitParams) (*model.Proposal, error)
	ListForOrganization(ctx context.Context, principal *model.Principal, organizationID string) ([]*model.Proposal, error)
	ListForCompany(ctx context.Context, principal *model.Principal, companyID string) ([]*model.Proposal, error)
	GetFor(ctx context.Context, principal *model.Principal, id string) (*model.Proposal, error)
}

// ProposalHandler は協賛申請のHTTPハンドラー。
type ProposalHandler struct {
	service ProposalServiceInterface
}

// NewProposalHandler はProposalHandlerを生成する。
func NewProposalHandler(service ProposalServiceInterface) *ProposalHandler {
	return &ProposalHandler{service: service}
}

// submitProposalRequest は申請リクエストのボディ。宛先の企業IDはパスで指定する。
type submitProposalRequest struct {
	OrganizationID string  `json:"organizationId"`
	PlanID         *string `json:"planId"`
	Message        string  `json:"message" validate:"max=5000"`
}

// Submit は団体から企業への協賛申請を作成する。
// POST /api/companies/{companyId}/proposals
func (h *ProposalHandler) Submit(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyId")

	var req submitProposalRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, "submit_proposal", err)
		return
	}

	p, err := h.service.SubmitFor(r.Context(), middleware.PrincipalFromContext(r.Context()), proposal.SubmitParams{
		OrganizationID: req.OrganizationID,
		CompanyID:      companyID,
		PlanID:         req.PlanID,
		Message:        req.Message,
	})
	if err != nil {
		handleServiceError(w, r, "submit_proposal", err,
			slog.String("organization_id", req.OrganizationID),
			slog.String("company_id", companyID),
		)
		return
	}

	writeJSON(w, http.StatusCreated, toProposalResponse(p))
}

// ListByCompany は企業宛ての申請一覧を返す。
// GET /api/companies/{companyId}/proposals
func (h *ProposalHandler) ListByCompany(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyId")

	ps, err := h.service.ListForCompany(r.Context(), middleware.PrincipalFromContext(r.Context()), companyID)
	if err != nil {
		handleServiceError(w, r, "list_company_proposals", err, slog.String("company_id", companyID))
		return
	}

	writeJSON(w, http.StatusOK, toProposalResponses(ps))
}

// ListByOrganization は団体の申請一覧を返す。
// GET /api/organizations/{organizationId}/proposals
func (h *ProposalHandler) ListByOrganization(w http.ResponseWriter, r *http.Request) {
	organizationID := chi.URLParam(r, "organizationId")

	ps, err := h.service.ListForOrganization(r.Context(), middleware.PrincipalFromContext(r.Context()), organizationID)
	if err != nil {
		handleServiceError(w, r, "list_organization_proposals", err, slog.String("organization_id", organizationID))
		return
	}

	writeJSON(w, http.StatusOK, toProposalResponses(ps))
}

// Get は申請の詳細を返す。申請元の団体と申請先の企業のみ参照できる。
// GET /api/proposals/{id}
func (h *ProposalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.service.GetFor(r.Context(), middleware.PrincipalFromContext(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, "get_proposal", err, slog.String("proposal_id", id))
		return
	}

	writeJSON(w, http.StatusOK, toProposalResponse(p))
}
