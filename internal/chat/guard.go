package chat

import (
	"context"
	"fmt"

	"github.com/hitoshi/sponsorlink/internal/authz"
	"github.com/hitoshi/sponsorlink/internal/model"
)

// 主体（ログイン中のユーザー）を受け取り、認可判定を行ってから各操作を実行する。

// OpenRoomFor は主体が当事者となるルームを取得または作成する。
// 主体側のテナントIDが未指定の場合は主体の所属で補う。
func (s *Service) OpenRoomFor(ctx context.Context, p *model.Principal, organizationID, companyID string, proposalID *string) (*model.ChatRoom, error) {
	if err := requireTenant(p); err != nil {
		return nil, err
	}
	if p.IsOrganization() && organizationID == "" {
		organizationID = p.OrganizationID
	}
	if p.IsCompany() && companyID == "" {
		companyID = p.CompanyID
	}
	if err := authz.Authorize(p, organizationID, companyID); err != nil {
		return nil, err
	}
	return s.FindOrCreateRoom(ctx, organizationID, companyID, proposalID)
}

// ListRoomsFor は主体の所属テナントのルーム一覧を返す。
// organizationIDとcompanyIDのどちらも未指定の場合はValidationErrorを返す。
func (s *Service) ListRoomsFor(ctx context.Context, p *model.Principal, organizationID, companyID string) ([]*model.ChatRoom, error) {
	if p == nil {
		return nil, model.NewAuthenticationRequiredError()
	}
	if organizationID == "" && companyID == "" {
		return nil, model.NewValidationError("organizationId", "組織IDまたは企業IDが指定されていません")
	}
	if err := authz.AuthorizeScope(p, organizationID, companyID); err != nil {
		return nil, err
	}
	if organizationID != "" {
		return s.ListRoomsByOrganization(ctx, organizationID)
	}
	return s.ListRoomsByCompany(ctx, companyID)
}

// GetRoomFor は主体が当事者であるルームを全メッセージ付きで返す。
func (s *Service) GetRoomFor(ctx context.Context, p *model.Principal, roomID string) (*model.ChatRoom, error) {
	if p == nil {
		return nil, model.NewAuthenticationRequiredError()
	}
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := authz.AuthorizeRoom(p, room); err != nil {
		return nil, err
	}
	return room, nil
}

// ListMessagesFor は主体が当事者であるルームの全メッセージを返す。
func (s *Service) ListMessagesFor(ctx context.Context, p *model.Principal, roomID string) ([]model.ChatMessage, error) {
	room, err := s.GetRoomFor(ctx, p, roomID)
	if err != nil {
		return nil, err
	}
	return room.Messages, nil
}

// SendMessageFor は主体としてメッセージを送信する。
// 送信者種別と送信者IDは主体から決まる。senderTypeが指定され主体と一致しない場合は拒否する。
func (s *Service) SendMessageFor(ctx context.Context, p *model.Principal, roomID string, senderType model.SenderType, message string) (*model.ChatMessage, error) {
	if err := requireTenant(p); err != nil {
		return nil, err
	}
	if err := s.authorizeRoomID(ctx, p, roomID); err != nil {
		return nil, err
	}

	own := model.SenderTypeForRole(p.Role)
	if senderType != "" && senderType != own {
		return nil, model.NewAuthorizationFailedError("他の立場としてメッセージを送信することはできません")
	}

	params := SendParams{
		ChatRoomID: roomID,
		SenderType: own,
		Message:    message,
	}
	switch own {
	case model.SenderTypeUser:
		params.SenderUserID = &p.ID
	case model.SenderTypeCompany:
		if p.ContactID == "" {
			return nil, model.NewAuthorizationFailedError("企業の担当者として登録されていません")
		}
		contactID := p.ContactID
		params.SenderContactID = &contactID
	}
	return s.SendMessage(ctx, params)
}

// MarkReadFor は主体が受け取ったメッセージを既読にする。
// 主体はメッセージが属するルームの当事者でなければならない。
func (s *Service) MarkReadFor(ctx context.Context, p *model.Principal, messageID string) (*model.ChatMessage, error) {
	if err := requireTenant(p); err != nil {
		return nil, err
	}
	if messageID == "" {
		return nil, model.NewValidationError("messageId", "メッセージIDが指定されていません")
	}

	msg, err := s.repo.FindMessageByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("メッセージの取得に失敗しました: %w", err)
	}
	if msg == nil {
		return nil, model.NewChatMessageNotFoundError(messageID)
	}
	if err := s.authorizeRoomID(ctx, p, msg.ChatRoomID); err != nil {
		return nil, err
	}

	return s.MarkRead(ctx, messageID, p.Role)
}

// authorizeRoomID は主体がルームの当事者であることを確認する。メッセージ履歴は読み込まない。
func (s *Service) authorizeRoomID(ctx context.Context, p *model.Principal, roomID string) error {
	if roomID == "" {
		return model.NewValidationError("chatRoomId", "チャットルームIDが指定されていません")
	}
	room, err := s.repo.FindRoomSummaryByID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("チャットルームの取得に失敗しました: %w", err)
	}
	if room == nil {
		return model.NewChatRoomNotFoundError(roomID)
	}
	return authz.AuthorizeRoom(p, room)
}

// requireTenant は主体がロールに対応する所属テナントを持つことを要求する。
func requireTenant(p *model.Principal) error {
	if p == nil {
		return model.NewAuthenticationRequiredError()
	}
	if p.IsCompany() {
		return authz.RequireCompany(p)
	}
	return authz.RequireOrganization(p)
}
