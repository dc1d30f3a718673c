package partners

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partnerhub/partnerhub-backend/internal/hierarchy"
	"github.com/partnerhub/partnerhub-backend/internal/tasks"
	"github.com/partnerhub/partnerhub-backend/pkg/db/models"
	"github.com/partnerhub/partnerhub-backend/pkg/enums"
	pkgerrors "github.com/partnerhub/partnerhub-backend/pkg/errors"
	"github.com/partnerhub/partnerhub-backend/pkg/logger"
)

type fakePartnerRepo struct {
	byID      map[uuid.UUID]*models.Partner
	createErr error
}

func newFakePartnerRepo() *fakePartnerRepo {
	return &fakePartnerRepo{byID: map[uuid.UUID]*models.Partner{}}
}

func (f *fakePartnerRepo) WithTx(*gorm.DB) Repository { return f }

func (f *fakePartnerRepo) Create(_ context.Context, partner *models.Partner) error {
	if f.createErr != nil {
		return f.createErr
	}
	copied := *partner
	f.byID[partner.ID] = &copied
	return nil
}

func (f *fakePartnerRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Partner, error) {
	if partner, ok := f.byID[id]; ok {
		copied := *partner
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePartnerRepo) FindByPartnerCode(_ context.Context, code string) (*models.Partner, error) {
	for _, partner := range f.byID {
		if partner.PartnerCode == code {
			copied := *partner
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePartnerRepo) FindByUID(_ context.Context, uid string) (*models.Partner, error) {
	for _, partner := range f.byID {
		if partner.UID == uid {
			copied := *partner
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePartnerRepo) UpdateStatus(_ context.Context, id uuid.UUID, status enums.PartnerStatus) error {
	partner, ok := f.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	partner.Status = status
	return nil
}

func (f *fakePartnerRepo) SetTeamName(_ context.Context, id uuid.UUID, teamName string) error {
	partner, ok := f.byID[id]
	if !ok || partner.TeamName != nil {
		return gorm.ErrRecordNotFound
	}
	partner.TeamName = &teamName
	return nil
}

type fakeBinder struct {
	binds []hierarchy.BindInput
	err   error
}

func (f *fakeBinder) CreateRelationship(_ context.Context, input hierarchy.BindInput) error {
	if f.err != nil {
		return f.err
	}
	f.binds = append(f.binds, input)
	return nil
}

type fakeDispatcher struct {
	events []tasks.Event
	err    error
}

func (f *fakeDispatcher) ProcessEvent(_ context.Context, event tasks.Event) error {
	f.events = append(f.events, event)
	return f.err
}

func newPartnersService(t *testing.T, repo Repository, binder uplinkBinder, dispatcher eventDispatcher) Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(repo, binder, dispatcher, logg)
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

func seedPartner(repo *fakePartnerRepo, code, uid string, status enums.PartnerStatus) *models.Partner {
	partner := &models.Partner{
		ID:          uuid.New(),
		PartnerCode: code,
		UID:         uid,
		Status:      status,
	}
	repo.byID[partner.ID] = partner
	return partner
}

func TestJoinWithoutInviter(t *testing.T) {
	repo := newFakePartnerRepo()
	binder := &fakeBinder{}
	dispatcher := &fakeDispatcher{}
	svc := newPartnersService(t, repo, binder, dispatcher)

	partner, err := svc.Join(context.Background(), JoinInput{UID: "uid-1"})
	if err != nil {
		t.Fatalf("joining: %v", err)
	}
	if partner.PartnerCode == "" {
		t.Fatal("expected a generated partner code")
	}
	if len(binder.binds) != 0 {
		t.Fatalf("expected no binds, got %d", len(binder.binds))
	}
	if len(dispatcher.events) != 1 || dispatcher.events[0].Type != tasks.EventTypeRegisterSelf {
		t.Fatalf("expected one register_self event, got %+v", dispatcher.events)
	}
}

func TestJoinWithInviterBindsAndRewards(t *testing.T) {
	repo := newFakePartnerRepo()
	inviter := seedPartner(repo, "PINVITER", "uid-inviter", enums.PartnerStatusActive)
	binder := &fakeBinder{}
	dispatcher := &fakeDispatcher{}
	svc := newPartnersService(t, repo, binder, dispatcher)

	code := inviter.PartnerCode
	partner, err := svc.Join(context.Background(), JoinInput{UID: "uid-new", InviterCode: &code})
	if err != nil {
		t.Fatalf("joining: %v", err)
	}

	if len(binder.binds) != 1 {
		t.Fatalf("expected one bind, got %d", len(binder.binds))
	}
	if binder.binds[0].ParentID != inviter.ID || binder.binds[0].ChildID != partner.ID {
		t.Fatalf("unexpected bind: %+v", binder.binds[0])
	}

	if len(dispatcher.events) != 2 {
		t.Fatalf("expected two events, got %d", len(dispatcher.events))
	}
	invite := dispatcher.events[1]
	if invite.Type != tasks.EventTypeRegisterDownlineL1 || invite.PartnerID != inviter.ID {
		t.Fatalf("unexpected invite event: %+v", invite)
	}
	if invite.RelatedPartnerID == nil || *invite.RelatedPartnerID != partner.ID {
		t.Fatalf("invite event missing related partner: %+v", invite)
	}
}

func TestJoinUnknownInviterCode(t *testing.T) {
	repo := newFakePartnerRepo()
	svc := newPartnersService(t, repo, &fakeBinder{}, nil)

	code := "PMISSING"
	_, err := svc.Join(context.Background(), JoinInput{UID: "uid-1", InviterCode: &code})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidPartner) {
		t.Fatalf("expected invalid partner error, got %v", err)
	}
}

func TestJoinDuplicateUID(t *testing.T) {
	repo := newFakePartnerRepo()
	seedPartner(repo, "PEXISTS", "uid-1", enums.PartnerStatusActive)
	svc := newPartnersService(t, repo, &fakeBinder{}, nil)

	_, err := svc.Join(context.Background(), JoinInput{UID: "uid-1"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestJoinBindFailurePropagates(t *testing.T) {
	repo := newFakePartnerRepo()
	inviter := seedPartner(repo, "PINVITER", "uid-inviter", enums.PartnerStatusActive)
	bindErr := pkgerrors.New(pkgerrors.CodePartnerFrozen, "frozen partners cannot accept downlines")
	svc := newPartnersService(t, repo, &fakeBinder{err: bindErr}, nil)

	code := inviter.PartnerCode
	_, err := svc.Join(context.Background(), JoinInput{UID: "uid-new", InviterCode: &code})
	if !errors.Is(err, bindErr) {
		t.Fatalf("expected bind error, got %v", err)
	}
}

func TestJoinSurvivesDispatchFailure(t *testing.T) {
	repo := newFakePartnerRepo()
	dispatcher := &fakeDispatcher{err: fmt.Errorf("engine unavailable")}
	svc := newPartnersService(t, repo, &fakeBinder{}, dispatcher)

	partner, err := svc.Join(context.Background(), JoinInput{UID: "uid-1"})
	if err != nil {
		t.Fatalf("expected join to survive dispatch failure, got %v", err)
	}
	if partner == nil {
		t.Fatal("expected partner")
	}
}

func TestSetTeamNameWriteOnce(t *testing.T) {
	repo := newFakePartnerRepo()
	partner := seedPartner(repo, "P1", "uid-1", enums.PartnerStatusActive)
	svc := newPartnersService(t, repo, &fakeBinder{}, nil)

	if err := svc.SetTeamName(context.Background(), partner.ID, "Night Owls"); err != nil {
		t.Fatalf("setting team name: %v", err)
	}
	err := svc.SetTeamName(context.Background(), partner.ID, "Early Birds")
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	err = svc.SetTeamName(context.Background(), partner.ID, "   ")
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFreezeUnfreeze(t *testing.T) {
	repo := newFakePartnerRepo()
	partner := seedPartner(repo, "P1", "uid-1", enums.PartnerStatusActive)
	svc := newPartnersService(t, repo, &fakeBinder{}, nil)

	if err := svc.Freeze(context.Background(), partner.ID); err != nil {
		t.Fatalf("freezing: %v", err)
	}
	if repo.byID[partner.ID].Status != enums.PartnerStatusFrozen {
		t.Fatalf("expected frozen, got %s", repo.byID[partner.ID].Status)
	}
	if err := svc.Unfreeze(context.Background(), partner.ID); err != nil {
		t.Fatalf("unfreezing: %v", err)
	}
	if repo.byID[partner.ID].Status != enums.PartnerStatusActive {
		t.Fatalf("expected active, got %s", repo.byID[partner.ID].Status)
	}

	err := svc.Freeze(context.Background(), uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidPartner) {
		t.Fatalf("expected invalid partner, got %v", err)
	}
}
