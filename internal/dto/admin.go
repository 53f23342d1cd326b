package dto

// CreateInviteRequest asks for a new admin invite.
type CreateInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RedeemInviteRequest turns a valid invite into an admin account.
type RedeemInviteRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// CreateResetRequest starts a password reset for an existing account.
type CreateResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RedeemResetRequest completes a password reset.
type RedeemResetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// ListUsersQuery mirrors the query string accepted by the admin user listing.
type ListUsersQuery struct {
	Role     string `form:"role"`
	Active   *bool  `form:"active"`
	Search   string `form:"search"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// ListAuditQuery mirrors the query string accepted by the audit log listing.
type ListAuditQuery struct {
	AdminEmail string `form:"admin_email"`
	Action     string `form:"action"`
	ReportID   string `form:"report_id"`
	From       string `form:"from"`
	To         string `form:"to"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
}
