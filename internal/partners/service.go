package partners

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partnerhub/partnerhub-backend/internal/hierarchy"
	"github.com/partnerhub/partnerhub-backend/internal/tasks"
	"github.com/partnerhub/partnerhub-backend/pkg/db"
	"github.com/partnerhub/partnerhub-backend/pkg/db/models"
	"github.com/partnerhub/partnerhub-backend/pkg/enums"
	pkgerrors "github.com/partnerhub/partnerhub-backend/pkg/errors"
	"github.com/partnerhub/partnerhub-backend/pkg/logger"
)

// uplinkBinder is the slice of the hierarchy service this package drives.
type uplinkBinder interface {
	CreateRelationship(ctx context.Context, input hierarchy.BindInput) error
}

// eventDispatcher feeds registration events into the task engine.
type eventDispatcher interface {
	ProcessEvent(ctx context.Context, event tasks.Event) error
}

// JoinInput describes a partner joining the program.
type JoinInput struct {
	UID             string
	InviterCode     *string
	SourceChannelID *string
}

// Service manages partner profiles and the join flow.
type Service interface {
	Join(ctx context.Context, input JoinInput) (*models.Partner, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Partner, error)
	GetByPartnerCode(ctx context.Context, code string) (*models.Partner, error)
	SetTeamName(ctx context.Context, id uuid.UUID, teamName string) error
	Freeze(ctx context.Context, id uuid.UUID) error
	Unfreeze(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo       Repository
	binder     uplinkBinder
	dispatcher eventDispatcher
	logg       *logger.Logger
	nowFn      func() time.Time
}

// NewService builds the partner service. The dispatcher may be nil, which
// skips registration rewards entirely.
func NewService(repo Repository, binder uplinkBinder, dispatcher eventDispatcher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("partner repository is required")
	}
	if binder == nil {
		return nil, fmt.Errorf("uplink binder is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		repo:       repo,
		binder:     binder,
		dispatcher: dispatcher,
		logg:       logg,
		nowFn:      time.Now,
	}, nil
}

// Join creates the partner profile, binds it under the inviter when an
// inviter code is supplied, and emits the registration events. Reward
// dispatch failures are logged and retried on redelivery; they never undo
// the join.
func (s *service) Join(ctx context.Context, input JoinInput) (*models.Partner, error) {
	if input.UID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "uid is required")
	}
	if existing, err := s.repo.FindByUID(ctx, input.UID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "uid already joined").
			WithDetails(map[string]string{"partner_code": existing.PartnerCode})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("checking uid: %w", err)
	}

	var inviter *models.Partner
	if input.InviterCode != nil && *input.InviterCode != "" {
		found, err := s.repo.FindByPartnerCode(ctx, *input.InviterCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeInvalidPartner, "inviter code does not exist")
			}
			return nil, fmt.Errorf("looking up inviter: %w", err)
		}
		inviter = found
	}

	partner, err := s.createWithFreshCode(ctx, input.UID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithPartnerID(ctx, partner.ID.String())

	if inviter != nil {
		err := s.binder.CreateRelationship(ctx, hierarchy.BindInput{
			ParentID:        inviter.ID,
			ChildID:         partner.ID,
			SourceChannelID: input.SourceChannelID,
			BindTime:        s.nowFn().UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("binding new partner under inviter: %w", err)
		}
	}

	s.dispatchJoinEvents(ctx, partner, inviter)
	s.logg.Info(ctx, "partner joined")
	return partner, nil
}

func (s *service) createWithFreshCode(ctx context.Context, uid string) (*models.Partner, error) {
	const attempts = 3
	for i := 0; i < attempts; i++ {
		partner := &models.Partner{
			ID:          uuid.New(),
			PartnerCode: newPartnerCode(),
			UID:         uid,
			Status:      enums.PartnerStatusActive,
		}
		err := s.repo.Create(ctx, partner)
		if err == nil {
			return partner, nil
		}
		if !db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("creating partner: %w", err)
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a partner code")
}

func (s *service) dispatchJoinEvents(ctx context.Context, partner *models.Partner, inviter *models.Partner) {
	if s.dispatcher == nil {
		return
	}
	now := s.nowFn().UTC()

	selfEvent := tasks.Event{
		Type:        tasks.EventTypeRegisterSelf,
		PartnerID:   partner.ID,
		PartnerCode: partner.PartnerCode,
		UID:         partner.UID,
		Timestamp:   now,
	}
	if err := s.dispatcher.ProcessEvent(ctx, selfEvent); err != nil {
		s.logg.Error(ctx, "failed to dispatch registration reward", err)
	}

	if inviter == nil {
		return
	}
	relatedID := partner.ID
	relatedUID := partner.UID
	inviteEvent := tasks.Event{
		Type:             tasks.EventTypeRegisterDownlineL1,
		PartnerID:        inviter.ID,
		PartnerCode:      inviter.PartnerCode,
		UID:              inviter.UID,
		RelatedPartnerID: &relatedID,
		RelatedUID:       &relatedUID,
		Timestamp:        now,
	}
	if err := s.dispatcher.ProcessEvent(ctx, inviteEvent); err != nil {
		s.logg.Error(ctx, "failed to dispatch invite reward", err)
	}
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	partner, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidPartner, fmt.Sprintf("partner %s does not exist", id))
		}
		return nil, fmt.Errorf("finding partner: %w", err)
	}
	return partner, nil
}

func (s *service) GetByPartnerCode(ctx context.Context, code string) (*models.Partner, error) {
	partner, err := s.repo.FindByPartnerCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidPartner, fmt.Sprintf("partner code %s does not exist", code))
		}
		return nil, fmt.Errorf("finding partner by code: %w", err)
	}
	return partner, nil
}

// SetTeamName assigns a partner's team name exactly once. The name is
// globally unique.
func (s *service) SetTeamName(ctx context.Context, id uuid.UUID, teamName string) error {
	teamName = strings.TrimSpace(teamName)
	if teamName == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "team name is required")
	}

	partner, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if partner.TeamName != nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "team name is already set")
	}

	if err := s.repo.SetTeamName(ctx, id, teamName); err != nil {
		if db.IsUniqueViolation(err) {
			return pkgerrors.New(pkgerrors.CodeConflict, "team name is already taken")
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Raced with another writer that named the team first.
			return pkgerrors.New(pkgerrors.CodeConflict, "team name is already set")
		}
		return fmt.Errorf("setting team name: %w", err)
	}
	return nil
}

func (s *service) Freeze(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, enums.PartnerStatusFrozen)
}

func (s *service) Unfreeze(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, enums.PartnerStatusActive)
}

func (s *service) setStatus(ctx context.Context, id uuid.UUID, status enums.PartnerStatus) error {
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeInvalidPartner, fmt.Sprintf("partner %s does not exist", id))
		}
		return fmt.Errorf("updating partner status: %w", err)
	}
	ctx = s.logg.WithPartnerID(ctx, id.String())
	ctx = s.logg.WithField(ctx, "status", string(status))
	s.logg.Info(ctx, "partner status updated")
	return nil
}

func newPartnerCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "P" + raw[:11]
}
