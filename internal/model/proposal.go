package model

import "time"

// ProposalStatus は協賛申請の審査状態を表す。
type ProposalStatus string

const (
	// ProposalStatusSubmitted は申請直後の状態。申請はこの状態でのみ作成される。
	ProposalStatusSubmitted ProposalStatus = "submitted"
	// ProposalStatusUnderReview は企業側で審査中の状態。
	ProposalStatusUnderReview ProposalStatus = "under_review"
	// ProposalStatusApproved は承認済みの状態。終端状態。
	ProposalStatusApproved ProposalStatus = "approved"
	// ProposalStatusRejected は却下された状態。終端状態。
	ProposalStatusRejected ProposalStatus = "rejected"
)

var proposalStatusLabels = map[ProposalStatus]string{
	ProposalStatusSubmitted:   "申請済み",
	ProposalStatusUnderReview: "審査中",
	ProposalStatusApproved:    "承認済み",
	ProposalStatusRejected:    "却下",
}

// Label は画面表示用の日本語ラベルを返す。
func (s ProposalStatus) Label() string {
	return proposalStatusLabels[s]
}

// IsValid は定義済みの状態かどうかを返す。
func (s ProposalStatus) IsValid() bool {
	_, ok := proposalStatusLabels[s]
	return ok
}

// IsTerminal はそれ以上遷移しない状態かどうかを返す。
func (s ProposalStatus) IsTerminal() bool {
	return s == ProposalStatusApproved || s == ProposalStatusRejected
}

// ParseProposalStatus は保存値または日本語ラベルから状態を復元する。
func ParseProposalStatus(v string) (ProposalStatus, bool) {
	s := ProposalStatus(v)
	if s.IsValid() {
		return s, true
	}
	for status, label := range proposalStatusLabels {
		if label == v {
			return status, true
		}
	}
	return "", false
}

// Proposal は団体から企業への協賛申請を表す。
// 作成後は審査関連フィールド（Status, ReviewedAt, ReviewedByUserID）以外は不変。
type Proposal struct {
	ID                string
	OrganizationID    string
	CompanyID         string
	PlanID            *string
	Message           string
	Status            ProposalStatus
	SubmittedByUserID string
	SubmittedAt       time.Time
	ReviewedAt        *time.Time
	ReviewedByUserID  *string
}
