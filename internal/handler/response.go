package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/sponsorlink/internal/middleware"
	"github.com/hitoshi/sponsorlink/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限サイズ。
const maxRequestBodyBytes = 1 << 20

// validate はリクエストDTOの形式検証に使う。フィールド名はjsonタグ名で報告する。
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON はリクエストボディをdstにデコードし、validateタグで形式を検証する。
// 失敗した場合はValidationErrorを返す。
func decodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return model.NewValidationError("", "リクエストボディが空です")
		}
		return model.NewValidationError("", "リクエストボディの解析に失敗しました")
	}
	return validateRequest(dst)
}

// validateRequest は構造体のvalidateタグを検証し、最初の違反をValidationErrorとして返す。
func validateRequest(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("failed to validate request: %w", err)
	}
	fe := fieldErrs[0]
	return model.NewValidationError(fe.Field(), validationMessage(fe))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return "メールアドレスの形式が正しくありません"
	case "max":
		return fmt.Sprintf("%sは%s文字以内で入力してください", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%sが不正です", fe.Field())
	default:
		return fmt.Sprintf("%sの形式が正しくありません", fe.Field())
	}
}

// writeJSON はstatusCodeとともにvをJSONで書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// APIError以外はopと関連IDを付けてログに記録し、内部エラーとして返す。
func handleServiceError(w http.ResponseWriter, r *http.Request, op string, err error, attrs ...slog.Attr) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, middleware.StatusCodeFor(apiErr), apiErr)
		return
	}

	args := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("op", op),
		slog.String("user_id", middleware.UserIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	}
	for _, a := range attrs {
		args = append(args, a)
	}
	slog.Error("internal server error", args...)
	middleware.WriteInternalServerError(w)
}

// --- レスポンス型 ---

// principalResponse は認証済み主体のAPIレスポンス。
type principalResponse struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	Role           string  `json:"role"`
	OrganizationID *string `json:"organizationId"`
	CompanyID      *string `json:"companyId"`
}

// proposalResponse は協賛申請のAPIレスポンス。
type proposalResponse struct {
	ID                string     `json:"id"`
	OrganizationID    string     `json:"organizationId"`
	CompanyID         string     `json:"companyId"`
	PlanID            *string    `json:"planId"`
	Message           string     `json:"message"`
	Status            string     `json:"status"`
	StatusLabel       string     `json:"statusLabel"`
	SubmittedByUserID string     `json:"submittedByUserId"`
	SubmittedAt       time.Time  `json:"submittedAt"`
	ReviewedAt        *time.Time `json:"reviewedAt"`
	ReviewedByUserID  *string    `json:"reviewedByUserId"`
}

// chatMessageResponse はチャットメッセージのAPIレスポンス。
type chatMessageResponse struct {
	ID              string     `json:"id"`
	ChatRoomID      string     `json:"chatRoomId"`
	SenderType      string     `json:"senderType"`
	SenderUserID    *string    `json:"senderUserId"`
	SenderContactID *string    `json:"senderContactId"`
	Message         string     `json:"message"`
	Read            bool       `json:"read"`
	ReadAt          *time.Time `json:"readAt"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// chatRoomResponse はチャットルームのAPIレスポンス。
type chatRoomResponse struct {
	ID                      string                `json:"id"`
	OrganizationID          string                `json:"organizationId"`
	CompanyID               string                `json:"companyId"`
	ProposalID              *string               `json:"proposalId"`
	LastMessageAt           *time.Time            `json:"lastMessageAt"`
	OrganizationUnreadCount int                   `json:"organizationUnreadCount"`
	CompanyUnreadCount      int                   `json:"companyUnreadCount"`
	CreatedAt               time.Time             `json:"createdAt"`
	UpdatedAt               time.Time             `json:"updatedAt"`
	Messages                []chatMessageResponse `json:"messages"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toPrincipalResponse(p *model.Principal) *principalResponse {
	if p == nil {
		return nil
	}
	return &principalResponse{
		ID:             p.ID,
		Email:          p.Email,
		Name:           p.Name,
		Role:           string(p.Role),
		OrganizationID: nullable(p.OrganizationID),
		CompanyID:      nullable(p.CompanyID),
	}
}

func toProposalResponse(p *model.Proposal) proposalResponse {
	return proposalResponse{
		ID:                p.ID,
		OrganizationID:    p.OrganizationID,
		CompanyID:         p.CompanyID,
		PlanID:            p.PlanID,
		Message:           p.Message,
		Status:            string(p.Status),
		StatusLabel:       p.Status.Label(),
		SubmittedByUserID: p.SubmittedByUserID,
		SubmittedAt:       p.SubmittedAt,
		ReviewedAt:        p.ReviewedAt,
		ReviewedByUserID:  p.ReviewedByUserID,
	}
}

func toProposalResponses(ps []*model.Proposal) []proposalResponse {
	out := make([]proposalResponse, len(ps))
	for i, p := range ps {
		out[i] = toProposalResponse(p)
	}
	return out
}

func toChatMessageResponse(m *model.ChatMessage) chatMessageResponse {
	return chatMessageResponse{
		ID:              m.ID,
		ChatRoomID:      m.ChatRoomID,
		SenderType:      string(m.SenderType),
		SenderUserID:    m.SenderUserID,
		SenderContactID: m.SenderContactID,
		Message:         m.Message,
		Read:            m.Read,
		ReadAt:          m.ReadAt,
		CreatedAt:       m.CreatedAt,
	}
}

func toChatMessageResponses(ms []model.ChatMessage) []chatMessageResponse {
	out := make([]chatMessageResponse, len(ms))
	for i := range ms {
		out[i] = toChatMessageResponse(&ms[i])
	}
	return out
}

func toChatRoomResponse(r *model.ChatRoom) chatRoomResponse {
	return chatRoomResponse{
		ID:                      r.ID,
		OrganizationID:          r.OrganizationID,
		CompanyID:               r.CompanyID,
		ProposalID:              r.ProposalID,
		LastMessageAt:           r.LastMessageAt,
		OrganizationUnreadCount: r.OrganizationUnreadCount,
		CompanyUnreadCount:      r.CompanyUnreadCount,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
		Messages:                toChatMessageResponses(r.Messages),
	}
}

func toChatRoomResponses(rs []*model.ChatRoom) []chatRoomResponse {
	out := make([]chatRoomResponse, len(rs))
	for i, r := range rs {
		out[i] = toChatRoomResponse(r)
	}
	return out
}
