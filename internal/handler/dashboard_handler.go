package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sponsorlink/internal/middleware"
	"github.com/hitoshi/sponsorlink/internal/model"
)

// DashboardProposalLister は団体ダッシュボードが必要とする申請一覧の取得インターフェース。
type DashboardProposalLister interface {
	ListForOrganization(ctx context.Context, principal *model.Principal, organizationID string) ([]*model.Proposal, error)
}

// DashboardRoomLister は団体ダッシュボードが必要とするルーム一覧の取得インターフェース。
type DashboardRoomLister interface {
	ListRoomsFor(ctx context.Context, p *model.Principal, organizationID, companyID string) ([]*model.ChatRoom, error)
}

// DashboardHandler は団体ダッシュボードのHTTPハンドラー。
type DashboardHandler struct {
	proposals DashboardProposalLister
	rooms     DashboardRoomLister
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(proposals DashboardProposalLister, rooms DashboardRoomLister) *DashboardHandler {
	return &DashboardHandler{proposals: proposals, rooms: rooms}
}

// dashboardResponse は団体ダッシュボードのAPIレスポンス。
type dashboardResponse struct {
	Proposals   []proposalResponse `json:"proposals"`
	ChatRooms   []chatRoomResponse `json:"chatRooms"`
	UnreadCount int                `json:"unreadCount"`
}

// Organization は団体の申請一覧、ルーム一覧、団体側の未読数合計を返す。
// GET /api/organizations/{organizationId}/dashboard
func (h *DashboardHandler) Organization(w http.ResponseWriter, r *http.Request) {
	organizationID := chi.URLParam(r, "organizationId")
	p := middleware.PrincipalFromContext(r.Context())

	proposals, err := h.proposals.ListForOrganization(r.Context(), p, organizationID)
	if err != nil {
		handleServiceError(w, r, "dashboard_proposals", err, slog.String("organization_id", organizationID))
		return
	}

	rooms, err := h.rooms.ListRoomsFor(r.Context(), p, organizationID, "")
	if err != nil {
		handleServiceError(w, r, "dashboard_rooms", err, slog.String("organization_id", organizationID))
		return
	}

	unread := 0
	for _, room := range rooms {
		unread += room.OrganizationUnreadCount
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		Proposals:   toProposalResponses(proposals),
		ChatRooms:   toChatRoomResponses(rooms),
		UnreadCount: unread,
	})
}
