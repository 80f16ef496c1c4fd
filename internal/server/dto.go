package server

import "accessreview/internal/domain"

// Request payloads

type RegisterApplicationRequest struct {
	AppName       string `json:"app_name"`
	AccountName   string `json:"account_name"`
	Source        string `json:"source" enum:"gitlab,rover"`
	Type          string `json:"type"`
	Environment   string `json:"environment,omitempty"`
	AppOwner      string `json:"app_owner,omitempty"`
	AppOwnerEmail string `json:"app_owner_email,omitempty"`
	AppDelegate   string `json:"app_delegate,omitempty"`
}

type RunReviewRequest struct {
	Source    string `json:"source" enum:"gitlab,rover"`
	Frequency string `json:"frequency,omitempty"`
	Period    string `json:"period"`
}

// Response payloads

type ReviewListResponse struct {
	Records         []domain.AccessReviewRecord   `json:"records"`
	ServiceAccounts []domain.ServiceAccountRecord `json:"service_accounts"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}
