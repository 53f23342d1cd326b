package models

import "time"

// AuditAction constants represent administrative actions to be logged.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionStatusChange   = "REPORT_STATUS_CHANGE"
	AuditActionPriorityChange = "REPORT_PRIORITY_CHANGE"
	AuditActionNotesChange    = "REPORT_NOTES_CHANGE"
	AuditActionReportDelete   = "REPORT_DELETE"
	AuditActionExport         = "REPORT_EXPORT"
	AuditActionInviteCreate   = "INVITE_CREATE"
	AuditActionInviteDelete   = "INVITE_DELETE"
	AuditActionInviteRedeem   = "INVITE_REDEEM"
	AuditActionResetCreate    = "PASSWORD_RESET_CREATE"
	AuditActionResetRedeem    = "PASSWORD_RESET_REDEEM"
	AuditActionUserUpdate     = "USER_UPDATE"
	AuditActionUserDelete     = "USER_DELETE"
)

// AuditLog is an append-only record of an administrative action.
// Entries are never updated or deleted.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	AdminEmail string    `db:"admin_email" json:"admin_email"`
	Action     string    `db:"action" json:"action"`
	Details    string    `db:"details" json:"details"`
	ReportID   *string   `db:"report_id" json:"report_id,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  string    `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Actor identifies the administrator performing a state-changing action,
// together with the request metadata recorded alongside it.
type Actor struct {
	ID        string
	Email     string
	Role      UserRole
	IP        string
	UserAgent string
}

// AuditFilter captures criteria for listing audit entries.
type AuditFilter struct {
	AdminEmail  string
	Action      string
	ReportID    string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        int
	PageSize    int
}
