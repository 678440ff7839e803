// Package chat は団体と企業の間のチャットルームとメッセージのドメインロジックを提供する。
//
// ルームは(団体, 企業)の組につき1件で、最初の必要時に作成される。
// メッセージの追記と既読化は、ルームの未読数と最終メッセージ日時の更新と同一トランザクションで行う。
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/sponsorlink/internal/metrics"
	"github.com/hitoshi/sponsorlink/internal/model"
	"github.com/hitoshi/sponsorlink/internal/repository"
)

// SendParams はメッセージ送信のパラメータ。
// SenderUserIDとSenderContactIDはSenderTypeに対応する方のみ使用される。
type SendParams struct {
	ChatRoomID      string
	SenderType      model.SenderType
	SenderUserID    *string
	SenderContactID *string
	Message         string
}

// Service はチャットのサービス層。
type Service struct {
	repo    repository.ChatRepository
	metrics metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.ChatRepository,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		repo:    repo,
		metrics: collector,
	}
}

// FindOrCreateRoom は団体と企業の組のルームを返す。存在しなければ未読数0で作成する。
// 既存ルームの申請IDは変更しない。
func (s *Service) FindOrCreateRoom(ctx context.Context, organizationID, companyID string, proposalID *string) (*model.ChatRoom, error) {
	if organizationID == "" {
		return nil, model.NewValidationError("organizationId", "組織IDが指定されていません")
	}
	if companyID == "" {
		return nil, model.NewValidationError("companyId", "企業IDが指定されていません")
	}
	if proposalID != nil && *proposalID == "" {
		proposalID = nil
	}

	room, created, err := s.repo.FindOrCreateRoom(ctx, organizationID, companyID, proposalID)
	if err != nil {
		return nil, fmt.Errorf("チャットルームの取得または作成に失敗しました: %w", err)
	}
	if room == nil {
		return nil, model.NewNotFoundError("団体または企業", organizationID+"/"+companyID)
	}

	if created {
		s.metrics.RecordRoomCreated()
		slog.Info("chat room created",
			slog.String("chat_room_id", room.ID),
			slog.String("organization_id", organizationID),
			slog.String("company_id", companyID),
		)
	}
	return room, nil
}

// GetRoom はルームを全メッセージ（時系列昇順）付きで返す。
func (s *Service) GetRoom(ctx context.Context, roomID string) (*model.ChatRoom, error) {
	if roomID == "" {
		return nil, model.NewValidationError("chatRoomId", "チャットルームIDが指定されていません")
	}
	room, err := s.repo.FindRoomByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("チャットルームの取得に失敗しました: %w", err)
	}
	if room == nil {
		return nil, model.NewChatRoomNotFoundError(roomID)
	}
	return room, nil
}

// ListRoomsByOrganization は団体のルーム一覧を最終メッセージ日時の降順で返す。
// 各ルームのMessagesには最新メッセージ1件のみを含む。
func (s *Service) ListRoomsByOrganization(ctx context.Context, organizationID string) ([]*model.ChatRoom, error) {
	if organizationID == "" {
		return nil, model.NewValidationError("organizationId", "組織IDが指定されていません")
	}
	rooms, err := s.repo.ListRoomsByOrganizationID(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("チャットルーム一覧の取得に失敗しました: %w", err)
	}
	return rooms, nil
}

// ListRoomsByCompany は企業のルーム一覧を最終メッセージ日時の降順で返す。
// 各ルームのMessagesには最新メッセージ1件のみを含む。
func (s *Service) ListRoomsByCompany(ctx context.Context, companyID string) ([]*model.ChatRoom, error) {
	if companyID == "" {
		return nil, model.NewValidationError("companyId", "企業IDが指定されていません")
	}
	rooms, err := s.repo.ListRoomsByCompanyID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("チャットルーム一覧の取得に失敗しました: %w", err)
	}
	return rooms, nil
}

// SendMessage はメッセージを追記する。
// 検証は chatRoomId → message → senderType の順に行う。
// 追記と同時に受信側の未読数が1増え、ルームの最終メッセージ日時が更新される。
func (s *Service) SendMessage(ctx context.Context, params SendParams) (*model.ChatMessage, error) {
	if params.ChatRoomID == "" {
		return nil, model.NewValidationError("chatRoomId", "チャットルームIDが指定されていません")
	}
	message := strings.TrimSpace(params.Message)
	if message == "" {
		return nil, model.NewValidationError("message", "メッセージが指定されていません")
	}
	if params.SenderType == "" {
		return nil, model.NewValidationError("senderType", "送信者タイプが指定されていません")
	}
	if !params.SenderType.IsValid() {
		return nil, model.NewValidationError("senderType", "送信者タイプが不正です")
	}

	create := repository.CreateMessageParams{
		ChatRoomID: params.ChatRoomID,
		SenderType: params.SenderType,
		Message:    message,
	}
	switch params.SenderType {
	case model.SenderTypeUser:
		if params.SenderUserID == nil || *params.SenderUserID == "" {
			return nil, model.NewValidationError("senderUserId", "送信者IDが指定されていません")
		}
		create.SenderUserID = params.SenderUserID
	case model.SenderTypeCompany:
		if params.SenderContactID == nil || *params.SenderContactID == "" {
			return nil, model.NewValidationError("senderContactId", "送信者IDが指定されていません")
		}
		create.SenderContactID = params.SenderContactID
	}

	msg, err := s.repo.CreateMessage(ctx, create)
	if err != nil {
		return nil, fmt.Errorf("メッセージの送信に失敗しました: %w", err)
	}
	if msg == nil {
		return nil, model.NewChatRoomNotFoundError(params.ChatRoomID)
	}

	s.metrics.RecordMessageSent(string(msg.SenderType))
	slog.Info("chat message sent",
		slog.String("chat_room_id", msg.ChatRoomID),
		slog.String("message_id", msg.ID),
		slog.String("sender_type", string(msg.SenderType)),
	)
	return msg, nil
}

// ListMessages はルームの全メッセージを時系列昇順で返す。
func (s *Service) ListMessages(ctx context.Context, roomID string) ([]model.ChatMessage, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return room.Messages, nil
}

// MarkRead はreader側が受け取ったメッセージを既読にする。
// 未読から既読に変わった場合のみreader側の未読数を1減らす（0未満にはならない）。
// 既読済みのメッセージに対する呼び出しはカウンタを変更せずに成功する。
// 自分の側が送信したメッセージは既読にできない。
func (s *Service) MarkRead(ctx context.Context, messageID string, reader model.UserType) (*model.ChatMessage, error) {
	if messageID == "" {
		return nil, model.NewValidationError("messageId", "メッセージIDが指定されていません")
	}
	if reader != model.UserTypeOrganization && reader != model.UserTypeCompany {
		return nil, model.NewValidationError("reader", "既読にするユーザー種別が不正です")
	}

	msg, err := s.repo.FindMessageByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("メッセージの取得に失敗しました: %w", err)
	}
	if msg == nil {
		return nil, model.NewChatMessageNotFoundError(messageID)
	}
	if msg.SenderType == model.SenderTypeForRole(reader) {
		return nil, model.NewValidationError("messageId", "自分が送信したメッセージは既読にできません")
	}

	return s.markRead(ctx, messageID, reader)
}

func (s *Service) markRead(ctx context.Context, messageID string, reader model.UserType) (*model.ChatMessage, error) {
	result, err := s.repo.MarkMessageRead(ctx, messageID, reader)
	if err != nil {
		return nil, fmt.Errorf("メッセージの既読化に失敗しました: %w", err)
	}
	if result == nil {
		return nil, model.NewChatMessageNotFoundError(messageID)
	}
	if result.Changed {
		s.metrics.RecordMessageRead()
	}
	return result.Message, nil
}
