package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/partnerhub/partnerhub-backend/internal/tasks"
	"github.com/partnerhub/partnerhub-backend/pkg/db/models"
	"github.com/partnerhub/partnerhub-backend/pkg/enums"
	pkgerrors "github.com/partnerhub/partnerhub-backend/pkg/errors"
)

type testTaskEngine struct {
	notifyFn func(ctx context.Context, event tasks.Event) error
	reviewFn func(ctx context.Context, event tasks.Event) (uuid.UUID, error)
}

func (e *testTaskEngine) ProcessNotifiedActionEvent(ctx context.Context, event tasks.Event) error {
	if e.notifyFn != nil {
		return e.notifyFn(ctx, event)
	}
	return nil
}

func (e *testTaskEngine) ProcessReviewedTaskEvent(ctx context.Context, event tasks.Event) (uuid.UUID, error) {
	if e.reviewFn != nil {
		return e.reviewFn(ctx, event)
	}
	return uuid.Nil, nil
}

func knownPartnerService(partner *models.Partner) *testPartnersService {
	return &testPartnersService{
		getByIDFn: func(_ context.Context, id uuid.UUID) (*models.Partner, error) {
			if id != partner.ID {
				return nil, pkgerrors.New(pkgerrors.CodeInvalidPartner, "partner does not exist")
			}
			return partner, nil
		},
	}
}

func TestTaskNotifyRecordsAction(t *testing.T) {
	partner := &models.Partner{
		ID:          uuid.New(),
		PartnerCode: "P1",
		UID:         "uid-1",
		Status:      enums.PartnerStatusActive,
	}
	var captured tasks.Event
	engine := &testTaskEngine{
		notifyFn: func(_ context.Context, event tasks.Event) error {
			captured = event
			return nil
		},
	}

	body := `{"task_code":"GAME_DAILY_V1","partner_id":"` + partner.ID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/notify", strings.NewReader(body))
	resp := httptest.NewRecorder()
	TaskNotify(engine, knownPartnerService(partner), testLogger())(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.TaskCode != "GAME_DAILY_V1" || captured.PartnerID != partner.ID {
		t.Fatalf("unexpected event: %+v", captured)
	}
	if captured.Type != tasks.EventTypeTaskNotify {
		t.Fatalf("unexpected event type %q", captured.Type)
	}
}

func TestTaskNotifyRejectionMapsTo422(t *testing.T) {
	partner := &models.Partner{ID: uuid.New(), PartnerCode: "P1", UID: "uid-1"}
	engine := &testTaskEngine{
		notifyFn: func(context.Context, tasks.Event) error {
			return pkgerrors.New(pkgerrors.CodeTaskValidation, "task GAME_DAILY_V1 completed 1 of 1 allowed times")
		},
	}

	body := `{"task_code":"GAME_DAILY_V1","partner_id":"` + partner.ID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/notify", strings.NewReader(body))
	resp := httptest.NewRecorder()
	TaskNotify(engine, knownPartnerService(partner), testLogger())(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
}

func TestTaskReviewReturnsCompletionID(t *testing.T) {
	partner := &models.Partner{ID: uuid.New(), PartnerCode: "P1", UID: "uid-1"}
	completionID := uuid.New()
	engine := &testTaskEngine{
		reviewFn: func(_ context.Context, event tasks.Event) (uuid.UUID, error) {
			if event.SubmissionID != "sub-42" {
				t.Fatalf("unexpected submission id %q", event.SubmissionID)
			}
			if event.PointsReward == nil || *event.PointsReward != 777 {
				t.Fatalf("unexpected points reward %v", event.PointsReward)
			}
			return completionID, nil
		},
	}

	body := `{"submission_id":"sub-42","partner_id":"` + partner.ID.String() + `","points_reward":777}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/tasks/review", strings.NewReader(body))
	resp := httptest.NewRecorder()
	TaskReview(engine, knownPartnerService(partner), testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			CompletionID uuid.UUID `json:"completion_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if envelope.Data.CompletionID != completionID {
		t.Fatalf("expected %s, got %s", completionID, envelope.Data.CompletionID)
	}
}

func TestTaskReviewUnknownPartner(t *testing.T) {
	engine := &testTaskEngine{}
	partner := &models.Partner{ID: uuid.New()}

	body := `{"submission_id":"sub-42","partner_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/tasks/review", strings.NewReader(body))
	resp := httptest.NewRecorder()
	TaskReview(engine, knownPartnerService(partner), testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestTaskEndpointsRejectFrozenPartner(t *testing.T) {
	partner := &models.Partner{
		ID:          uuid.New(),
		PartnerCode: "P1",
		UID:         "uid-1",
		Status:      enums.PartnerStatusFrozen,
	}
	engine := &testTaskEngine{
		notifyFn: func(context.Context, tasks.Event) error {
			t.Fatal("frozen partner reached the engine")
			return nil
		},
		reviewFn: func(context.Context, tasks.Event) (uuid.UUID, error) {
			t.Fatal("frozen partner reached the engine")
			return uuid.Nil, nil
		},
	}

	notifyBody := `{"task_code":"GAME_DAILY_V1","partner_id":"` + partner.ID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/notify", strings.NewReader(notifyBody))
	resp := httptest.NewRecorder()
	TaskNotify(engine, knownPartnerService(partner), testLogger())(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("notify: expected 403, got %d: %s", resp.Code, resp.Body.String())
	}

	reviewBody := `{"submission_id":"sub-42","partner_id":"` + partner.ID.String() + `"}`
	req = httptest.NewRequest(http.MethodPost, "/api/admin/v1/tasks/review", strings.NewReader(reviewBody))
	resp = httptest.NewRecorder()
	TaskReview(engine, knownPartnerService(partner), testLogger())(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("review: expected 403, got %d: %s", resp.Code, resp.Body.String())
	}
}
