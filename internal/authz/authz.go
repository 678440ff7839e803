// Package authz はテナント境界の認可判定を提供する。
//
// 全ての状態変更操作と、テナントで絞り込んだ一覧・ルーム単位の参照の前に呼び出す。
package authz

import (
	"github.com/hitoshi/sponsorlink/internal/model"
)

// 認可エラーのメッセージ
const (
	msgOrganizationMismatch = "この組織のデータにアクセスする権限がありません"
	msgCompanyMismatch      = "この企業のデータにアクセスする権限がありません"
	msgOrganizationOnly     = "団体ユーザーのみ実行できる操作です"
	msgCompanyOnly          = "企業ユーザーのみ実行できる操作です"
	msgNotParticipant       = "このチャットルームにアクセスする権限がありません"
)

// Authorize は主体がリソースの所有テナントにアクセスできるかを判定する。
// 空のresourceOrgID/resourceCompanyIDは判定対象外とする。
// ロールに対応するテナントIDを持たない主体は、そのロールの判定対象IDが指定されていれば拒否する。
func Authorize(p *model.Principal, resourceOrgID, resourceCompanyID string) error {
	if p == nil {
		return model.NewAuthenticationRequiredError()
	}
	switch p.Role {
	case model.UserTypeOrganization:
		if resourceOrgID != "" && p.OrganizationID != resourceOrgID {
			return model.NewAuthorizationFailedError(msgOrganizationMismatch)
		}
	case model.UserTypeCompany:
		if resourceCompanyID != "" && p.CompanyID != resourceCompanyID {
			return model.NewAuthorizationFailedError(msgCompanyMismatch)
		}
	default:
		return model.NewAuthorizationFailedError("")
	}
	return nil
}

// AuthorizeScope はテナントIDで絞り込む一覧取得に対する認可を行う。
// Authorizeと異なり、指定されたIDは主体自身の同種のテナントIDと一致しなければならない
// （団体ユーザーが企業IDで絞り込むことはできない）。
func AuthorizeScope(p *model.Principal, organizationID, companyID string) error {
	if p == nil {
		return model.NewAuthenticationRequiredError()
	}
	if organizationID != "" && (!p.IsOrganization() || p.OrganizationID != organizationID) {
		return model.NewAuthorizationFailedError(msgOrganizationMismatch)
	}
	if companyID != "" && (!p.IsCompany() || p.CompanyID != companyID) {
		return model.NewAuthorizationFailedError(msgCompanyMismatch)
	}
	return nil
}

// RequireOrganization は主体が団体に所属する団体ユーザーであることを要求する。
func RequireOrganization(p *model.Principal) error {
	if p == nil {
		return model.NewAuthenticationRequiredError()
	}
	if !p.IsOrganization() || p.OrganizationID == "" {
		return model.NewAuthorizationFailedError(msgOrganizationOnly)
	}
	return nil
}

// RequireCompany は主体が企業に所属する企業ユーザーであることを要求する。
func RequireCompany(p *model.Principal) error {
	if p == nil {
		return model.NewAuthenticationRequiredError()
	}
	if !p.IsCompany() || p.CompanyID == "" {
		return model.NewAuthorizationFailedError(msgCompanyOnly)
	}
	return nil
}

// AuthorizeRoom は主体がルームの当事者（団体側または企業側）であることを要求する。
func AuthorizeRoom(p *model.Principal, room *model.ChatRoom) error {
	if p == nil {
		return model.NewAuthenticationRequiredError()
	}
	switch {
	case p.IsOrganization() && p.OrganizationID != "" && room.OrganizationID == p.OrganizationID:
		return nil
	case p.IsCompany() && p.CompanyID != "" && room.CompanyID == p.CompanyID:
		return nil
	}
	return model.NewAuthorizationFailedError(msgNotParticipant)
}

// AuthorizeProposal は主体が申請の当事者（申請元の団体または申請先の企業）であることを要求する。
func AuthorizeProposal(p *model.Principal, proposal *model.Proposal) error {
	if p == nil {
		return model.NewAuthenticationRequiredError()
	}
	switch {
	case p.IsOrganization() && p.OrganizationID != "" && proposal.OrganizationID == p.OrganizationID:
		return nil
	case p.IsCompany() && p.CompanyID != "" && proposal.CompanyID == p.CompanyID:
		return nil
	}
	return model.NewAuthorizationFailedError("")
}
