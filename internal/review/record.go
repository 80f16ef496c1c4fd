package review

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"accessreview/internal/domain"
)

// BuildContext carries the run-wide fields stamped onto every record.
type BuildContext struct {
	Frequency string
	Period    string
	Now       time.Time
}

// BuildRecord merges registration metadata, a resolved principal and
// its manager into one review record. Pure, no I/O.
func BuildRecord(reg domain.Registration, p domain.Principal, m domain.ManagerInfo, role string, bc BuildContext) domain.AccessReviewRecord {
	return domain.AccessReviewRecord{
		ID:              uuid.NewString(),
		Environment:     reg.Environment,
		FullName:        p.DisplayName,
		UserID:          principalUserID(p),
		UserRole:        role,
		Manager:         managerDisplay(m, reg),
		ManagerUID:      managerUID(m),
		SignOffStatus:   domain.SignOffPending,
		SignOffBy:       domain.NotAvailable,
		SignOffDate:     nil,
		Comments:        "",
		TicketReference: "",
		TicketStatus:    domain.TicketPending,
		Source:          reg.Source,
		AccountName:     reg.AccountName,
		AppName:         reg.AppName,
		Frequency:       bc.Frequency,
		Period:          bc.Period,
		AppDelegate:     reg.AppDelegate,
		CreatedAt:       bc.Now.UTC().Format(time.RFC3339),
	}
}

// BuildServiceAccountRecord produces the service-account review shape.
// There is no member list behind a service account, so the caller
// resolves the manager from the account's own directory profile.
func BuildServiceAccountRecord(reg domain.Registration, m domain.ManagerInfo, bc BuildContext) domain.ServiceAccountRecord {
	return domain.ServiceAccountRecord{
		ID:              uuid.NewString(),
		Environment:     reg.Environment,
		ServiceAccount:  reg.AccountName,
		UserRole:        domain.RoleServiceAccount,
		Manager:         managerDisplay(m, reg),
		ManagerUID:      managerUID(m),
		SignOffStatus:   domain.SignOffPending,
		SignOffBy:       domain.NotAvailable,
		SignOffDate:     nil,
		Comments:        "",
		TicketReference: "",
		TicketStatus:    domain.TicketPending,
		Source:          reg.Source,
		AccountName:     reg.AccountName,
		AppName:         reg.AppName,
		Frequency:       bc.Frequency,
		Period:          bc.Period,
		AppDelegate:     reg.AppDelegate,
		CreatedAt:       bc.Now.UTC().Format(time.RFC3339),
	}
}

// managerDisplay picks the manager display value: resolved name, then
// raw manager id, then application owner, then the local part of the
// owner email, then "N/A".
func managerDisplay(m domain.ManagerInfo, reg domain.Registration) string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	if m.UID != "" {
		return m.UID
	}
	if reg.AppOwner != "" {
		return reg.AppOwner
	}
	if lp := localPart(reg.AppOwnerEmail); lp != "" {
		return lp
	}
	return domain.NotAvailable
}

func managerUID(m domain.ManagerInfo) string {
	if m.UID == "" {
		return domain.NotAvailable
	}
	return m.UID
}

func principalUserID(p domain.Principal) string {
	if p.Username != "" {
		return p.Username
	}
	return p.ID
}

func localPart(email string) string {
	if email == "" {
		return ""
	}
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return ""
}
