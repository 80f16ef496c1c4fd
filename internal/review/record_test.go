package review_test

import (
	"testing"
	"time"

	"accessreview/internal/domain"
	"accessreview/internal/review"
)

var testClock = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testContext() review.BuildContext {
	return review.BuildContext{Frequency: "quarterly", Period: "2025-Q2", Now: testClock}
}

func TestBuildRecordFixedFields(t *testing.T) {
	reg := domain.Registration{
		AppName:     "payments",
		AccountName: "payments-api",
		Source:      domain.SourceGitLab,
		Environment: "prod",
		AppDelegate: "ops-team",
	}
	p := domain.Principal{ID: "7", Username: "alice", DisplayName: "Alice Smith"}
	m := domain.ManagerInfo{UID: "mgr1", DisplayName: "Mary Major"}
	rec := review.BuildRecord(reg, p, m, domain.RoleMember, testContext())

	if rec.ID == "" {
		t.Fatal("record id not stamped")
	}
	if rec.UserID != "alice" || rec.FullName != "Alice Smith" || rec.UserRole != domain.RoleMember {
		t.Fatalf("identity fields: %+v", rec)
	}
	if rec.Manager != "Mary Major" || rec.ManagerUID != "mgr1" {
		t.Fatalf("manager fields: %+v", rec)
	}
	if rec.SignOffStatus != "pending" || rec.SignOffBy != "N/A" || rec.SignOffDate != nil {
		t.Fatalf("sign-off fields: %+v", rec)
	}
	if rec.Comments != "" || rec.TicketReference != "" || rec.TicketStatus != "pending" {
		t.Fatalf("ticket fields: %+v", rec)
	}
	if rec.Environment != "prod" || rec.AppDelegate != "ops-team" || rec.Source != domain.SourceGitLab {
		t.Fatalf("registration fields: %+v", rec)
	}
	if rec.CreatedAt != "2025-06-01T12:00:00Z" {
		t.Fatalf("created_at = %q", rec.CreatedAt)
	}
}

func TestManagerFallbackChain(t *testing.T) {
	cases := []struct {
		name    string
		manager domain.ManagerInfo
		reg     domain.Registration
		want    string
	}{
		{"resolved name wins", domain.ManagerInfo{UID: "mgr1", DisplayName: "Mary Major"}, domain.Registration{AppOwner: "Jane Doe"}, "Mary Major"},
		{"raw uid over owner", domain.ManagerInfo{UID: "mgr1"}, domain.Registration{AppOwner: "Jane Doe"}, "mgr1"},
		{"owner name", domain.ManagerInfo{}, domain.Registration{AppOwner: "Jane Doe"}, "Jane Doe"},
		{"email local part", domain.ManagerInfo{}, domain.Registration{AppOwnerEmail: "john.smith@example.com"}, "john.smith"},
		{"owner beats email", domain.ManagerInfo{}, domain.Registration{AppOwner: "Jane Doe", AppOwnerEmail: "john.smith@example.com"}, "Jane Doe"},
		{"nothing left", domain.ManagerInfo{}, domain.Registration{}, "N/A"},
		{"malformed email", domain.ManagerInfo{}, domain.Registration{AppOwnerEmail: "not-an-email"}, "N/A"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := review.BuildRecord(tc.reg, domain.Principal{ID: "x"}, tc.manager, domain.RoleMember, testContext())
			if rec.Manager != tc.want {
				t.Fatalf("manager = %q, want %q", rec.Manager, tc.want)
			}
		})
	}
}

func TestBuildServiceAccountRecord(t *testing.T) {
	reg := domain.Registration{
		AppName:       "payments",
		AccountName:   "svc-batch",
		Source:        domain.SourceRover,
		Type:          domain.TypeServiceAccount,
		AppOwner:      "Jane Doe",
		AppOwnerEmail: "jane.doe@example.com",
	}
	rec := review.BuildServiceAccountRecord(reg, domain.ManagerInfo{}, testContext())
	if rec.ServiceAccount != "svc-batch" {
		t.Fatalf("service account = %q", rec.ServiceAccount)
	}
	if rec.UserRole != domain.RoleServiceAccount {
		t.Fatalf("role = %q", rec.UserRole)
	}
	if rec.Manager != "Jane Doe" {
		t.Fatalf("manager = %q", rec.Manager)
	}
	if rec.ManagerUID != "N/A" {
		t.Fatalf("manager uid = %q", rec.ManagerUID)
	}
	if rec.SignOffStatus != "pending" || rec.TicketStatus != "pending" {
		t.Fatalf("workflow fields: %+v", rec)
	}
}
