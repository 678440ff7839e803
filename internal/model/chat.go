package model

import "time"

// SenderType はチャットメッセージの送信者種別を表す。
type SenderType string

const (
	// SenderTypeUser は団体側ユーザーからの送信。
	SenderTypeUser SenderType = "user"
	// SenderTypeCompany は企業担当者からの送信。
	SenderTypeCompany SenderType = "company"
)

// IsValid は定義済みの送信者種別かどうかを返す。
func (t SenderType) IsValid() bool {
	return t == SenderTypeUser || t == SenderTypeCompany
}

// SenderTypeForRole はユーザー種別に対応する送信者種別を返す。
func SenderTypeForRole(role UserType) SenderType {
	if role == UserTypeCompany {
		return SenderTypeCompany
	}
	return SenderTypeUser
}

// ChatRoom は1つの団体と1つの企業の間の会話スレッドを表す。
// (OrganizationID, CompanyID) の組につき最大1件。
type ChatRoom struct {
	ID                      string
	OrganizationID          string
	CompanyID               string
	ProposalID              *string
	LastMessageAt           *time.Time
	OrganizationUnreadCount int
	CompanyUnreadCount      int
	CreatedAt               time.Time
	UpdatedAt               time.Time

	// Messages は取得方法により全履歴（昇順）または最新1件のプレビューを保持する。
	Messages []ChatMessage
}

// ChatMessage はルーム内の1件のメッセージを表す。追記専用。
// SenderUserIDとSenderContactIDはSenderTypeに応じてどちらか一方のみ設定される。
type ChatMessage struct {
	ID              string
	Seq             int64 // 同一CreatedAt間の挿入順
	ChatRoomID      string
	SenderType      SenderType
	SenderUserID    *string
	SenderContactID *string
	Message         string
	Read            bool
	ReadAt          *time.Time
	CreatedAt       time.Time
}
