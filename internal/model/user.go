// Package model はドメインモデルを定義する。
package model

import "time"

// UserType はユーザーの種別を表す。
type UserType string

const (
	// UserTypeOrganization は学生団体に所属するユーザー。
	UserTypeOrganization UserType = "organization"
	// UserTypeCompany は企業の担当者ユーザー。
	UserTypeCompany UserType = "company"
)

// UserStatus はアカウントの状態を表す。
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusPending   UserStatus = "pending"
	UserStatusInvited   UserStatus = "invited"
	UserStatusSuspended UserStatus = "suspended"
)

// User はサービス利用ユーザーを表す。
// OrganizationID/CompanyID/ContactIDは所属情報から導出された値で、
// 該当する所属がない場合は空文字列になる。
type User struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  string
	UserType      UserType
	Status        UserStatus
	EmailVerified bool
	DeletedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	OrganizationID string
	CompanyID      string
	ContactID      string
}

// IsActive はアカウントが有効（active かつ未削除）かどうかを返す。
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive && u.DeletedAt == nil
}

// Session はユーザーのログインセッションを表す。
// Tokenは256bit以上のエントロピーを持つ推測不能な値。
type Session struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired はnow時点でセッションが期限切れかどうかを返す。
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Principal はセッションから解決された認証済みの主体を表す。
// ロールに対応するテナントID（OrganizationIDまたはCompanyID）のみが設定され、両方が設定されることはない。
type Principal struct {
	ID             string
	Email          string
	Name           string
	Role           UserType
	OrganizationID string
	CompanyID      string
	ContactID      string // 企業ユーザーの主担当者レコードID
}

// IsOrganization は団体ユーザーかどうかを返す。
func (p *Principal) IsOrganization() bool {
	return p != nil && p.Role == UserTypeOrganization
}

// IsCompany は企業ユーザーかどうかを返す。
func (p *Principal) IsCompany() bool {
	return p != nil && p.Role == UserTypeCompany
}

// NewPrincipal はユーザーからPrincipalを導出する。
// ロールと一致しないテナントIDは破棄する。
func NewPrincipal(u *User) *Principal {
	p := &Principal{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.UserType,
	}
	switch u.UserType {
	case UserTypeOrganization:
		p.OrganizationID = u.OrganizationID
	case UserTypeCompany:
		p.CompanyID = u.CompanyID
		if u.CompanyID != "" {
			p.ContactID = u.ContactID
		}
	}
	return p
}
