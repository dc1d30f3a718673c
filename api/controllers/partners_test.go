package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/partnerhub/partnerhub-backend/internal/hierarchy"
	"github.com/partnerhub/partnerhub-backend/internal/partners"
	"github.com/partnerhub/partnerhub-backend/pkg/db/models"
	"github.com/partnerhub/partnerhub-backend/pkg/enums"
	pkgerrors "github.com/partnerhub/partnerhub-backend/pkg/errors"
	"github.com/partnerhub/partnerhub-backend/pkg/logger"
	"github.com/partnerhub/partnerhub-backend/pkg/pagination"
)

type testPartnersService struct {
	joinFn        func(ctx context.Context, input partners.JoinInput) (*models.Partner, error)
	getByIDFn     func(ctx context.Context, id uuid.UUID) (*models.Partner, error)
	setTeamNameFn func(ctx context.Context, id uuid.UUID, teamName string) error
}

func (s *testPartnersService) Join(ctx context.Context, input partners.JoinInput) (*models.Partner, error) {
	if s.joinFn != nil {
		return s.joinFn(ctx, input)
	}
	return nil, nil
}

func (s *testPartnersService) GetByID(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (s *testPartnersService) GetByPartnerCode(context.Context, string) (*models.Partner, error) {
	return nil, nil
}

func (s *testPartnersService) SetTeamName(ctx context.Context, id uuid.UUID, teamName string) error {
	if s.setTeamNameFn != nil {
		return s.setTeamNameFn(ctx, id, teamName)
	}
	return nil
}

func (s *testPartnersService) Freeze(context.Context, uuid.UUID) error   { return nil }
func (s *testPartnersService) Unfreeze(context.Context, uuid.UUID) error { return nil }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withPartnerIDParam(req *http.Request, id uuid.UUID) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("partnerID", id.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestPartnerJoinSuccess(t *testing.T) {
	partner := &models.Partner{
		ID:          uuid.New(),
		PartnerCode: "PABC123",
		UID:         "uid-1",
		Status:      enums.PartnerStatusActive,
	}
	svc := &testPartnersService{
		joinFn: func(_ context.Context, input partners.JoinInput) (*models.Partner, error) {
			if input.UID != "uid-1" {
				t.Fatalf("unexpected uid %q", input.UID)
			}
			return partner, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/partners/join", strings.NewReader(`{"uid":"uid-1"}`))
	resp := httptest.NewRecorder()
	PartnerJoin(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data partnerView `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if envelope.Data.PartnerCode != "PABC123" {
		t.Fatalf("unexpected payload: %+v", envelope.Data)
	}
}

func TestPartnerJoinRequiresUID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/partners/join", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	PartnerJoin(&testPartnersService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestPartnerGetNotFound(t *testing.T) {
	svc := &testPartnersService{
		getByIDFn: func(_ context.Context, id uuid.UUID) (*models.Partner, error) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidPartner, "partner does not exist")
		},
	}

	id := uuid.New()
	req := withPartnerIDParam(httptest.NewRequest(http.MethodGet, "/api/v1/partners/"+id.String(), nil), id)
	resp := httptest.NewRecorder()
	PartnerGet(svc, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestPartnerSetTeamNameConflict(t *testing.T) {
	svc := &testPartnersService{
		setTeamNameFn: func(context.Context, uuid.UUID, string) error {
			return pkgerrors.New(pkgerrors.CodeConflict, "team name is already set")
		},
	}

	id := uuid.New()
	req := withPartnerIDParam(
		httptest.NewRequest(http.MethodPut, "/api/v1/partners/"+id.String()+"/team-name", strings.NewReader(`{"team_name":"Night Owls"}`)),
		id,
	)
	resp := httptest.NewRecorder()
	PartnerSetTeamName(svc, testLogger())(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
}

type testHierarchyService struct {
	hierarchy.Service
	downlinesFn func(ctx context.Context, parentID uuid.UUID, level enums.RelationLevel, params pagination.Params) (*hierarchy.DownlinePage, error)
}

func (s *testHierarchyService) GetDownlines(ctx context.Context, parentID uuid.UUID, level enums.RelationLevel, params pagination.Params) (*hierarchy.DownlinePage, error) {
	if s.downlinesFn != nil {
		return s.downlinesFn(ctx, parentID, level, params)
	}
	return &hierarchy.DownlinePage{}, nil
}

func TestPartnerDownlinesUsesConfiguredPageSize(t *testing.T) {
	id := uuid.New()
	var gotParams pagination.Params
	svc := &testHierarchyService{
		downlinesFn: func(_ context.Context, _ uuid.UUID, _ enums.RelationLevel, params pagination.Params) (*hierarchy.DownlinePage, error) {
			gotParams = params
			return &hierarchy.DownlinePage{Limit: params.Limit}, nil
		},
	}

	req := withPartnerIDParam(httptest.NewRequest(http.MethodGet, "/api/v1/partners/"+id.String()+"/downlines", nil), id)
	resp := httptest.NewRecorder()
	PartnerDownlines(svc, 10, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if gotParams.Limit != 10 {
		t.Fatalf("expected configured default limit 10, got %d", gotParams.Limit)
	}

	req = withPartnerIDParam(httptest.NewRequest(http.MethodGet, "/api/v1/partners/"+id.String()+"/downlines?limit=3", nil), id)
	resp = httptest.NewRecorder()
	PartnerDownlines(svc, 10, testLogger())(resp, req)

	if gotParams.Limit != 3 {
		t.Fatalf("explicit limit must win over the configured default, got %d", gotParams.Limit)
	}
}
