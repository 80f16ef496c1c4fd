// Package server exposes the review engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"accessreview/internal/domain"
	"accessreview/internal/repo"
	"accessreview/internal/review"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   review.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string `json:"code" example:"not_found"`
	Message string `json:"message" example:"no registrations for app"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

func newAPIError(status int, code, message string) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{status: status, Body: apiErrorBody{Code: code, Message: message}}
}

// New returns an HTTP handler exposing the access review API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Access Review API", "0.1.0")
	hcfg.OpenAPIPath = basePath + "/openapi"
	hcfg.DocsPath = basePath + "/docs"
	hcfg.SchemasPath = basePath + "/schemas"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerApplications(group, cfg.Engine)
	registerReviews(group, cfg.Engine)

	return router, nil
}

func handleError(err error) huma.StatusError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, review.ErrPeriodRequired), errors.Is(err, review.ErrUnknownSource):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, review.ErrSourceUnconfigured):
		return newAPIError(http.StatusUnprocessableEntity, "source_unconfigured", err.Error())
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "healthz",
		Method:      http.MethodGet,
		Path:        "/healthz",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HealthResponse `json:"body"`
	}, error) {
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: HealthResponse{Status: "ok"}}, nil
	})
}

func registerApplications(api huma.API, e review.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-application",
		Method:        http.MethodPost,
		Path:          "/applications",
		Summary:       "Register an application account for review",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body RegisterApplicationRequest `json:"body"`
	}) (*struct {
		Body domain.Registration `json:"body"`
	}, error) {
		b := input.Body
		if b.AppName == "" || b.AccountName == "" || b.Source == "" || b.Type == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "app_name, account_name, source and type are required")
		}
		reg := domain.Registration{
			AppName:       b.AppName,
			AccountName:   b.AccountName,
			Source:        b.Source,
			Type:          b.Type,
			Environment:   b.Environment,
			AppOwner:      b.AppOwner,
			AppOwnerEmail: b.AppOwnerEmail,
			AppDelegate:   b.AppDelegate,
			CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		}
		if err := e.Repo.InsertRegistration(ctx, reg); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Registration `json:"body"`
		}{Body: reg}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-applications",
		Method:      http.MethodGet,
		Path:        "/applications",
		Summary:     "List registered applications",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Registration `json:"body"`
	}, error) {
		items, err := e.Repo.ListApplications(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Registration `json:"body"`
		}{Body: items}, nil
	})
}

func registerReviews(api huma.API, e review.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "generate-reviews",
		Method:        http.MethodPost,
		Path:          "/apps/{appName}/reviews/generate",
		Summary:       "Generate and persist access review records",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		AppName string           `path:"appName"`
		Body    RunReviewRequest `json:"body"`
	}) (*struct {
		Body review.Run `json:"body"`
	}, error) {
		run, err := e.Generate(ctx, input.AppName, input.Body.Source, input.Body.Frequency, input.Body.Period)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body review.Run `json:"body"`
		}{Body: run}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "fresh-reviews",
		Method:      http.MethodPost,
		Path:        "/apps/{appName}/reviews/fresh",
		Summary:     "Dry-run the review pipeline without persisting",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		AppName string           `path:"appName"`
		Body    RunReviewRequest `json:"body"`
	}) (*struct {
		Body review.Run `json:"body"`
	}, error) {
		run, err := e.FetchForFresh(ctx, input.AppName, input.Body.Source, input.Body.Frequency, input.Body.Period)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body review.Run `json:"body"`
		}{Body: run}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-reviews",
		Method:      http.MethodGet,
		Path:        "/apps/{appName}/reviews",
		Summary:     "List persisted review records",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		AppName string `path:"appName"`
		Period  string `query:"period"`
	}) (*struct {
		Body ReviewListResponse `json:"body"`
	}, error) {
		records, err := e.Repo.ListAccessReviews(ctx, input.AppName, input.Period)
		if err != nil {
			return nil, handleError(err)
		}
		serviceAccounts, err := e.Repo.ListServiceAccountReviews(ctx, input.AppName, input.Period)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReviewListResponse `json:"body"`
		}{Body: ReviewListResponse{Records: records, ServiceAccounts: serviceAccounts}}, nil
	})
}
