// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/sponsorlink/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを所属情報付きで取得する。見つからない場合はnilを返す。
	// 論理削除済みユーザーは見つからない扱いとする。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを所属情報付きで取得する。見つからない場合はnilを返す。
	// 論理削除済みユーザーは見つからない扱いとする。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。トークンが重複した場合はErrDuplicateを返す。
	Create(ctx context.Context, session *model.Session) error
	// FindByToken はトークンでセッションを取得する。見つからない場合はnilを返す。
	// 期限切れの判定は呼び出し側で行う。
	FindByToken(ctx context.Context, token string) (*model.Session, error)
	// DeleteByToken は指定トークンのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByToken(ctx context.Context, token string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired はbefore時点で期限切れの全セッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ProposalRepository は協賛申請の永続化インターフェース。
type ProposalRepository interface {
	// Create は申請を保存する。IDと申請日時は呼び出し側で設定済みであること。
	// 参照先の団体・企業が存在しない場合はErrReferenceNotFoundを返す。
	// PlanIDの形式は呼び出し側で検証済みであること。
	Create(ctx context.Context, proposal *model.Proposal) error
	// FindByID は指定IDの申請を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Proposal, error)
	// ListByOrganizationID は団体の申請一覧をsubmitted_at降順で返す。
	ListByOrganizationID(ctx context.Context, organizationID string) ([]*model.Proposal, error)
	// ListByCompanyID は企業宛ての申請一覧をsubmitted_at降順で返す。
	ListByCompanyID(ctx context.Context, companyID string) ([]*model.Proposal, error)
}

// CreateMessageParams はメッセージ追記のパラメータ。
type CreateMessageParams struct {
	ChatRoomID      string
	SenderType      model.SenderType
	SenderUserID    *string
	SenderContactID *string
	Message         string
}

// MarkReadResult は既読化の結果。
type MarkReadResult struct {
	Message *model.ChatMessage
	// Changed は今回の呼び出しで未読から既読に変わったかどうか。
	// falseの場合カウンタは変更されていない。
	Changed bool
}

// ChatRepository はチャットルームとメッセージの永続化インターフェース。
// カウンタの増減はすべてストア側の式で行い、読み取り→書き込みの往復を行わない。
type ChatRepository interface {
	// FindOrCreateRoom は(organizationID, companyID)のルームを返す。存在しなければ作成する。
	// 既存ルームのproposal_idは変更しない。並行呼び出しでも1件しか作成されない。
	FindOrCreateRoom(ctx context.Context, organizationID, companyID string, proposalID *string) (*model.ChatRoom, bool, error)

	// FindRoomByID はルームを全メッセージ（created_at, seq 昇順）付きで取得する。見つからない場合はnilを返す。
	FindRoomByID(ctx context.Context, id string) (*model.ChatRoom, error)

	// FindRoomSummaryByID はメッセージを読み込まずにルームのみを取得する。見つからない場合はnilを返す。
	// 返すルームのMessagesはnil。
	FindRoomSummaryByID(ctx context.Context, id string) (*model.ChatRoom, error)

	// ListRoomsByOrganizationID は団体のルーム一覧をlast_message_at降順で、最新メッセージ1件付きで返す。
	ListRoomsByOrganizationID(ctx context.Context, organizationID string) ([]*model.ChatRoom, error)

	// ListRoomsByCompanyID は企業のルーム一覧をlast_message_at降順で、最新メッセージ1件付きで返す。
	ListRoomsByCompanyID(ctx context.Context, companyID string) ([]*model.ChatRoom, error)

	// CreateMessage はメッセージを追記し、同一トランザクションでルームのlast_message_atと
	// 相手側の未読数を更新する。ルームが存在しない場合はnilを返す。
	CreateMessage(ctx context.Context, params CreateMessageParams) (*model.ChatMessage, error)

	// FindMessageByID は指定IDのメッセージを取得する。見つからない場合はnilを返す。
	FindMessageByID(ctx context.Context, id string) (*model.ChatMessage, error)

	// MarkMessageRead はメッセージを既読にし、未読から既読に変わった場合のみ
	// readerSide側の未読数を0を下限として1減らす。メッセージが存在しない場合はnilを返す。
	MarkMessageRead(ctx context.Context, messageID string, readerSide model.UserType) (*MarkReadResult, error)
}
