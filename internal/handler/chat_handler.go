package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sponsorlink/internal/middleware"
	"github.com/hitoshi/sponsorlink/internal/model"
)

// ChatServiceInterface はチャットハンドラーが必要とするサービスインターフェース。
type ChatServiceInterface interface {
	OpenRoomFor(ctx context.Context, p *model.Principal, organizationID, companyID string, proposalID *string) (*model.ChatRoom, error)
	ListRoomsFor(ctx context.Context, p *model.Principal, organizationID, companyID string) ([]*model.ChatRoom, error)
	GetRoomFor(ctx context.Context, p *model.Principal, roomID string) (*model.ChatRoom, error)
	ListMessagesFor(ctx context.Context, p *model.Principal, roomID string) ([]model.ChatMessage, error)
	SendMessageFor(ctx context.Context, p *model.Principal, roomID string, senderType model.SenderType, message string) (*model.ChatMessage, error)
	MarkReadFor(ctx context.Context, p *model.Principal, messageID string) (*model.ChatMessage, error)
}

// ChatHandler はチャットルームとメッセージのHTTPハンドラー。
type ChatHandler struct {
	service ChatServiceInterface
}

// NewChatHandler はChatHandlerを生成する。
func NewChatHandler(service ChatServiceInterface) *ChatHandler {
	return &ChatHandler{service: service}
}

// openRoomRequest はルーム取得・作成リクエストのボディ。
// 自分の側のIDは省略でき、主体の所属で補われる。
type openRoomRequest struct {
	OrganizationID string  `json:"organizationId"`
	CompanyID      string  `json:"companyId"`
	ProposalID     *string `json:"proposalId"`
}

// sendMessageRequest はメッセージ送信リクエストのボディ。
// senderTypeは省略可能で、指定する場合は主体の種別と一致しなければならない。
type sendMessageRequest struct {
	SenderType string `json:"senderType" validate:"omitempty,oneof=user company"`
	Message    string `json:"message" validate:"max=5000"`
}

// ListRooms は主体の所属テナントのルーム一覧を返す。
// GET /api/chat/rooms?organizationId=...|companyId=...
func (h *ChatHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	organizationID := q.Get("organizationId")
	companyID := q.Get("companyId")

	rooms, err := h.service.ListRoomsFor(r.Context(), middleware.PrincipalFromContext(r.Context()), organizationID, companyID)
	if err != nil {
		handleServiceError(w, r, "list_rooms", err,
			slog.String("organization_id", organizationID),
			slog.String("company_id", companyID),
		)
		return
	}

	writeJSON(w, http.StatusOK, toChatRoomResponses(rooms))
}

// OpenRoom は団体と企業のルームを取得し、なければ作成する。
// POST /api/chat/rooms
func (h *ChatHandler) OpenRoom(w http.ResponseWriter, r *http.Request) {
	var req openRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, "open_room", err)
		return
	}

	room, err := h.service.OpenRoomFor(r.Context(), middleware.PrincipalFromContext(r.Context()),
		req.OrganizationID, req.CompanyID, req.ProposalID)
	if err != nil {
		handleServiceError(w, r, "open_room", err,
			slog.String("organization_id", req.OrganizationID),
			slog.String("company_id", req.CompanyID),
		)
		return
	}

	writeJSON(w, http.StatusOK, toChatRoomResponse(room))
}

// GetRoom はルームを全メッセージ付きで返す。
// GET /api/chat/rooms/{id}
func (h *ChatHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	room, err := h.service.GetRoomFor(r.Context(), middleware.PrincipalFromContext(r.Context()), roomID)
	if err != nil {
		handleServiceError(w, r, "get_room", err, slog.String("chat_room_id", roomID))
		return
	}

	writeJSON(w, http.StatusOK, toChatRoomResponse(room))
}

// ListMessages はルームの全メッセージを時系列昇順で返す。
// GET /api/chat/rooms/{id}/messages
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	msgs, err := h.service.ListMessagesFor(r.Context(), middleware.PrincipalFromContext(r.Context()), roomID)
	if err != nil {
		handleServiceError(w, r, "list_messages", err, slog.String("chat_room_id", roomID))
		return
	}

	writeJSON(w, http.StatusOK, toChatMessageResponses(msgs))
}

// SendMessage はルームにメッセージを送信する。
// POST /api/chat/rooms/{id}/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, "send_message", err, slog.String("chat_room_id", roomID))
		return
	}

	msg, err := h.service.SendMessageFor(r.Context(), middleware.PrincipalFromContext(r.Context()),
		roomID, model.SenderType(req.SenderType), req.Message)
	if err != nil {
		handleServiceError(w, r, "send_message", err, slog.String("chat_room_id", roomID))
		return
	}

	writeJSON(w, http.StatusCreated, toChatMessageResponse(msg))
}

// MarkRead は受け取ったメッセージを既読にする。既読済みの場合もそのまま成功する。
// POST /api/chat/messages/{id}/read
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")

	msg, err := h.service.MarkReadFor(r.Context(), middleware.PrincipalFromContext(r.Context()), messageID)
	if err != nil {
		handleServiceError(w, r, "mark_read", err, slog.String("message_id", messageID))
		return
	}

	writeJSON(w, http.StatusOK, toChatMessageResponse(msg))
}
