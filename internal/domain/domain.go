package domain

// Registration sources.
const (
	SourceGitLab = "gitlab"
	SourceRover  = "rover"
)

// Registration types. Anything else is treated as a plain project/group
// identifier on the source-control side.
const (
	TypeServiceAccount = "service-account"
	TypeRoverGroup     = "rover-group-name"
)

// Role labels stamped onto review records.
const (
	RoleOwnerMember    = "owner, member"
	RoleOwner          = "owner"
	RoleMember         = "member"
	RoleServiceAccount = "service-account"
	RoleUnknown        = "unknown"
	NotAvailable       = "N/A"
)

// Initial workflow state for freshly generated records. Sign-off and
// ticketing are driven by a separate workflow after generation.
const (
	SignOffPending = "pending"
	TicketPending  = "pending"
)

// Registration is one onboarded (application, account, source) tuple.
// Rows are created by the onboarding flow and are read-only to the
// review engine.
type Registration struct {
	AppName       string `json:"app_name"`
	AccountName   string `json:"account_name"`
	Source        string `json:"source"`
	Type          string `json:"type"`
	Environment   string `json:"environment"`
	AppOwner      string `json:"app_owner"`
	AppOwnerEmail string `json:"app_owner_email"`
	AppDelegate   string `json:"app_delegate"`
	CreatedAt     string `json:"created_at"`
}

// IsServiceAccount reports whether the registration points at a service
// account rather than a membership-bearing group or project.
func (r Registration) IsServiceAccount() bool {
	return r.Type == TypeServiceAccount
}

// Principal is a user discovered through a membership or ownership
// lookup. It is transient and never persisted as-is.
type Principal struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	State       string `json:"state"`
	AccessLevel int    `json:"access_level"`
}

// ManagerInfo is the resolved one-hop reporting manager of a principal.
// DisplayName may be empty when the manager profile could not be
// fetched; UID may be empty when the principal has no manager entry.
type ManagerInfo struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
}

// AccessReviewRecord is one principal's access to one account for one
// audit period.
type AccessReviewRecord struct {
	ID              string  `json:"id"`
	Environment     string  `json:"environment"`
	FullName        string  `json:"full_name"`
	UserID          string  `json:"user_id"`
	UserRole        string  `json:"user_role"`
	Manager         string  `json:"manager"`
	ManagerUID      string  `json:"manager_uid"`
	SignOffStatus   string  `json:"sign_off_status"`
	SignOffBy       string  `json:"sign_off_by"`
	SignOffDate     *string `json:"sign_off_date"`
	Comments        string  `json:"comments"`
	TicketReference string  `json:"ticket_reference"`
	TicketStatus    string  `json:"ticket_status"`
	Source          string  `json:"source"`
	AccountName     string  `json:"account_name"`
	AppName         string  `json:"app_name"`
	Frequency       string  `json:"frequency"`
	Period          string  `json:"period"`
	AppDelegate     string  `json:"app_delegate"`
	CreatedAt       string  `json:"created_at"`
}

// ServiceAccountRecord is the review row variant for service-account
// registrations: no per-user identity, fixed role.
type ServiceAccountRecord struct {
	ID              string  `json:"id"`
	Environment     string  `json:"environment"`
	ServiceAccount  string  `json:"service_account"`
	UserRole        string  `json:"user_role"`
	Manager         string  `json:"manager"`
	ManagerUID      string  `json:"manager_uid"`
	SignOffStatus   string  `json:"sign_off_status"`
	SignOffBy       string  `json:"sign_off_by"`
	SignOffDate     *string `json:"sign_off_date"`
	Comments        string  `json:"comments"`
	TicketReference string  `json:"ticket_reference"`
	TicketStatus    string  `json:"ticket_status"`
	Source          string  `json:"source"`
	AccountName     string  `json:"account_name"`
	AppName         string  `json:"app_name"`
	Frequency       string  `json:"frequency"`
	Period          string  `json:"period"`
	AppDelegate     string  `json:"app_delegate"`
	CreatedAt       string  `json:"created_at"`
}
