package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/sponsorlink/internal/model"
	"github.com/hitoshi/sponsorlink/internal/proposal"
)

// --- モック定義 ---

type mockProposalService struct {
	submitForFn           func(ctx context.Context, p *model.Principal, params proposal.SubmitParams) (*model.Proposal, error)
	listForOrganizationFn func(ctx context.Context, p *model.Principal, organizationID string) ([]*model.Proposal, error)
	listForCompanyFn      func(ctx context.Context, p *model.Principal, companyID string) ([]*model.Proposal, error)
	getForFn              func(ctx context.Context, p *model.Principal, id string) (*model.Proposal, error)
}

func (m *mockProposalService) SubmitFor(ctx context.Context, p *model.Principal, params proposal.SubmitParams) (*model.Proposal, error) {
	if m.submitForFn != nil {
		return m.submitForFn(ctx, p, params)
	}
	return nil, errors.New("not implemented")
}

func (m *mockProposalService) ListForOrganization(ctx context.Context, p *model.Principal, organizationID string) ([]*model.Proposal, error) {
	if m.listForOrganizationFn != nil {
		return m.listForOrganizationFn(ctx, p, organizationID)
	}
	return []*model.Proposal{}, nil
}

func (m *mockProposalService) ListForCompany(ctx context.Context, p *model.Principal, companyID string) ([]*model.Proposal, error) {
	if m.listForCompanyFn != nil {
		return m.listForCompanyFn(ctx, p, companyID)
	}
	return []*model.Proposal{}, nil
}

func (m *mockProposalService) GetFor(ctx context.Context, p *model.Principal, id string) (*model.Proposal, error) {
	if m.getForFn != nil {
		return m.getForFn(ctx, p, id)
	}
	return nil, model.NewProposalNotFoundError(id)
}

var testSubmittedAt = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

func sampleProposal(id string) *model.Proposal {
	return &model.Proposal{
		ID:                id,
		OrganizationID:    "org-1",
		CompanyID:         "company-1",
		Message:           "Let's collaborate",
		Status:            model.ProposalStatusSubmitted,
		SubmittedByUserID: "user-org",
		SubmittedAt:       testSubmittedAt,
	}
}

// --- POST /api/companies/{companyId}/proposals ---

func TestProposalHandler_Submit_Success(t *testing.T) {
	svc := &mockProposalService{
		submitForFn: func(ctx context.Context, p *model.Principal, params proposal.SubmitParams) (*model.Proposal, error) {
			if p != orgPrincipal {
				t.Errorf("principal = %+v, want orgPrincipal", p)
			}
			if params.CompanyID != "company-1" {
				t.Errorf("CompanyID = %q, want company-1 (from path)", params.CompanyID)
			}
			if params.OrganizationID != "org-1" {
				t.Errorf("OrganizationID = %q, want org-1", params.OrganizationID)
			}
			if params.PlanID == nil || *params.PlanID != "plan-gold" {
				t.Errorf("PlanID = %v, want plan-gold", params.PlanID)
			}
			if params.Message != "Let's collaborate" {
				t.Errorf("Message = %q", params.Message)
			}
			return sampleProposal("proposal-1"), nil
		},
	}
	h := NewProposalHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/companies/company-1/proposals",
		jsonBody(`{"organizationId":"org-1","planId":"plan-gold","message":"Let's collaborate"}`))
	req = withChiURLParam(withPrincipal(req, orgPrincipal), "companyId", "company-1")
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusCreated, w.Body.String())
	}
	var body proposalResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Status != "submitted" || body.StatusLabel != "申請済み" {
		t.Errorf("status = %q/%q, want submitted/申請済み", body.Status, body.StatusLabel)
	}
	if !body.SubmittedAt.Equal(testSubmittedAt) {
		t.Errorf("submittedAt = %v, want %v", body.SubmittedAt, testSubmittedAt)
	}
	if body.ReviewedAt != nil || body.ReviewedByUserID != nil {
		t.Errorf("review fields should be null: %+v", body)
	}
}

func TestProposalHandler_Submit_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{"未ログイン", `{"organizationId":"org-1","message":"x"}`, model.NewAuthenticationRequiredError(), http.StatusUnauthorized, model.ErrCodeAuthenticationRequired},
		{"他団体として申請", `{"organizationId":"org-2","message":"x"}`, model.NewAuthorizationFailedError("この組織のデータにアクセスする権限がありません"), http.StatusForbidden, model.ErrCodeAuthorizationFailed},
		{"メッセージなし", `{"organizationId":"org-1","message":"  "}`, model.NewValidationError("message", "メッセージが指定されていません"), http.StatusBadRequest, model.ErrCodeValidation},
		{"企業が存在しない", `{"organizationId":"org-1","message":"x"}`, model.NewNotFoundError("企業", "company-1"), http.StatusNotFound, model.ErrCodeNotFound},
		{"ストレージ障害", `{"organizationId":"org-1","message":"x"}`, errors.New("pq: deadlock detected"), http.StatusInternalServerError, model.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockProposalService{
				submitForFn: func(ctx context.Context, p *model.Principal, params proposal.SubmitParams) (*model.Proposal, error) {
					return nil, tt.serviceErr
				},
			}
			h := NewProposalHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/companies/company-1/proposals", jsonBody(tt.body))
			req = withChiURLParam(withPrincipal(req, orgPrincipal), "companyId", "company-1")
			w := httptest.NewRecorder()

			h.Submit(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := parseAPIErrorResponse(t, w)
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if strings.Contains(body.Message, "deadlock") {
				t.Errorf("storage error leaked: %q", body.Message)
			}
		})
	}
}

func TestProposalHandler_Submit_MessageTooLong(t *testing.T) {
	h := NewProposalHandler(&mockProposalService{
		submitForFn: func(ctx context.Context, p *model.Principal, params proposal.SubmitParams) (*model.Proposal, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	})

	body, _ := json.Marshal(map[string]string{
		"organizationId": "org-1",
		"message":        strings.Repeat("あ", 5001),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/companies/company-1/proposals", strings.NewReader(string(body)))
	req = withChiURLParam(withPrincipal(req, orgPrincipal), "companyId", "company-1")
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := parseAPIErrorResponse(t, w).Field; got != "message" {
		t.Errorf("field = %q, want message", got)
	}
}

// --- 一覧・詳細 ---

func TestProposalHandler_ListByCompany(t *testing.T) {
	svc := &mockProposalService{
		listForCompanyFn: func(ctx context.Context, p *model.Principal, companyID string) ([]*model.Proposal, error) {
			if companyID != "company-1" {
				t.Errorf("companyID = %q, want company-1", companyID)
			}
			return []*model.Proposal{sampleProposal("p-2"), sampleProposal("p-1")}, nil
		},
	}
	h := NewProposalHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/companies/company-1/proposals", nil)
	req = withChiURLParam(withPrincipal(req, companyPrincipal), "companyId", "company-1")
	w := httptest.NewRecorder()

	h.ListByCompany(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body []proposalResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(body) != 2 || body[0].ID != "p-2" {
		t.Errorf("body = %+v, want [p-2 p-1]", body)
	}
}

func TestProposalHandler_ListByOrganization_EmptyIsArray(t *testing.T) {
	h := NewProposalHandler(&mockProposalService{})

	req := httptest.NewRequest(http.MethodGet, "/api/organizations/org-1/proposals", nil)
	req = withChiURLParam(withPrincipal(req, orgPrincipal), "organizationId", "org-1")
	w := httptest.NewRecorder()

	h.ListByOrganization(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

func TestProposalHandler_Get(t *testing.T) {
	svc := &mockProposalService{
		getForFn: func(ctx context.Context, p *model.Principal, id string) (*model.Proposal, error) {
			if id == "proposal-1" {
				return sampleProposal(id), nil
			}
			return nil, model.NewProposalNotFoundError(id)
		},
	}
	h := NewProposalHandler(svc)

	req := withChiURLParam(withPrincipal(httptest.NewRequest(http.MethodGet, "/api/proposals/proposal-1", nil), orgPrincipal), "id", "proposal-1")
	w := httptest.NewRecorder()
	h.Get(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	req = withChiURLParam(withPrincipal(httptest.NewRequest(http.MethodGet, "/api/proposals/missing", nil), orgPrincipal), "id", "missing")
	w = httptest.NewRecorder()
	h.Get(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
