package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partnerhub/partnerhub-backend/pkg/db"
	"github.com/partnerhub/partnerhub-backend/pkg/db/models"
	"github.com/partnerhub/partnerhub-backend/pkg/enums"
	pkgerrors "github.com/partnerhub/partnerhub-backend/pkg/errors"
	"github.com/partnerhub/partnerhub-backend/pkg/logger"
	"github.com/partnerhub/partnerhub-backend/pkg/pagination"
)

// partnerLookup is the slice of the partners repository this service reads.
type partnerLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Partner, error)
}

// txRunner is satisfied by db.Client.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// BindInput describes a requested parent->child binding.
type BindInput struct {
	ParentID        uuid.UUID
	ChildID         uuid.UUID
	SourceChannelID *string
	BindTime        time.Time
}

// Uplink is a child's active upward view of the hierarchy.
type Uplink struct {
	Direct      *models.PartnerRelation
	Grandparent *models.PartnerRelation
}

// DownlinePage is one page of a parent's active downline edges.
type DownlinePage struct {
	Relations []models.PartnerRelation
	Total     int64
	Limit     int
	Offset    int
}

// Service maintains the two-level partner hierarchy. Edges are append-only:
// a binding can only be replaced through CorrectUplink, which deactivates the
// old edges and appends replacements in one transaction.
type Service interface {
	CheckShortCycle(ctx context.Context, parentID, childID uuid.UUID) bool
	CreateRelationship(ctx context.Context, input BindInput) error
	CorrectUplink(ctx context.Context, childID, newParentID uuid.UUID, reason string) error
	GetUplink(ctx context.Context, childID uuid.UUID) (*Uplink, error)
	GetDownlines(ctx context.Context, parentID uuid.UUID, level enums.RelationLevel, params pagination.Params) (*DownlinePage, error)
}

type service struct {
	repo     Repository
	partners partnerLookup
	tx       txRunner
	audit    AuditRecorder
	logg     *logger.Logger
	nowFn    func() time.Time
}

// NewService builds the hierarchy service. The audit recorder may be nil, in
// which case corrections are recorded on the structured log only.
func NewService(repo Repository, partners partnerLookup, tx txRunner, audit AuditRecorder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("hierarchy repository is required")
	}
	if partners == nil {
		return nil, fmt.Errorf("partner lookup is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if audit == nil {
		audit = NewLogAuditRecorder(logg)
	}
	return &service{
		repo:     repo,
		partners: partners,
		tx:       tx,
		audit:    audit,
		logg:     logg,
		nowFn:    time.Now,
	}, nil
}

// CheckShortCycle reports whether binding child under parent would close a
// mutual invitation loop: self-binding, or the candidate parent already being
// a direct downline of the child. Longer loops are permitted. When the
// upline lookup fails the check returns true, blocking the bind rather than
// risking a loop it could not rule out.
func (s *service) CheckShortCycle(ctx context.Context, parentID, childID uuid.UUID) bool {
	if parentID == childID {
		return true
	}
	parentUpline, err := s.repo.FindActiveParent(ctx, parentID, enums.RelationLevelDirect)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false
		}
		ctx = s.logg.WithPartnerID(ctx, parentID.String())
		s.logg.Error(ctx, "cycle check could not read upline, blocking bind", err)
		return true
	}
	return parentUpline.ParentPartnerID == childID
}

// CreateRelationship binds child under parent, materializing the level 2
// grandparent edge in the same transaction. A child with an active direct
// parent cannot be rebound here.
func (s *service) CreateRelationship(ctx context.Context, input BindInput) error {
	ctx = s.logg.WithPartnerID(ctx, input.ChildID.String())

	if s.CheckShortCycle(ctx, input.ParentID, input.ChildID) {
		return pkgerrors.New(pkgerrors.CodeCircularReference, "binding would create a mutual invitation loop")
	}

	parent, err := s.lookupPartner(ctx, input.ParentID)
	if err != nil {
		return err
	}
	if parent.Status == enums.PartnerStatusFrozen {
		return pkgerrors.New(pkgerrors.CodePartnerFrozen, "frozen partners cannot accept downlines")
	}
	child, err := s.lookupPartner(ctx, input.ChildID)
	if err != nil {
		return err
	}
	if child.Status == enums.PartnerStatusFrozen {
		return pkgerrors.New(pkgerrors.CodePartnerFrozen, "frozen partners cannot join an upline")
	}

	existing, err := s.repo.FindActiveParent(ctx, input.ChildID, enums.RelationLevelDirect)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("checking existing upline: %w", err)
	}
	if existing != nil {
		return pkgerrors.New(pkgerrors.CodeUplinkImmutable, "partner already has an active upline")
	}

	grandparent, err := s.repo.FindActiveParent(ctx, input.ParentID, enums.RelationLevelDirect)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("resolving grandparent: %w", err)
	}

	bindTime := input.BindTime
	if bindTime.IsZero() {
		bindTime = s.nowFn().UTC()
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Create(ctx, &models.PartnerRelation{
			ParentPartnerID: input.ParentID,
			ChildPartnerID:  input.ChildID,
			Level:           enums.RelationLevelDirect,
			SourceChannelID: input.SourceChannelID,
			IsActive:        true,
			BindTime:        bindTime,
		}); err != nil {
			return err
		}
		if grandparent != nil {
			if err := txRepo.Create(ctx, &models.PartnerRelation{
				ParentPartnerID: grandparent.ParentPartnerID,
				ChildPartnerID:  input.ChildID,
				Level:           enums.RelationLevelGrandparent,
				SourceChannelID: input.SourceChannelID,
				IsActive:        true,
				BindTime:        bindTime,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			// Lost a race with a concurrent bind of the same child.
			return pkgerrors.New(pkgerrors.CodeUplinkImmutable, "partner already has an active upline")
		}
		return fmt.Errorf("binding partner: %w", err)
	}

	s.logg.Info(ctx, "partner bound to upline")
	return nil
}

// CorrectUplink is the administrative rebind path. The superseded edges stay
// in the table as inactive history and the correction is audited.
func (s *service) CorrectUplink(ctx context.Context, childID, newParentID uuid.UUID, reason string) error {
	ctx = s.logg.WithPartnerID(ctx, childID.String())

	if s.CheckShortCycle(ctx, newParentID, childID) {
		return pkgerrors.New(pkgerrors.CodeCircularReference, "correction would create a mutual invitation loop")
	}
	if _, err := s.lookupPartner(ctx, newParentID); err != nil {
		return err
	}
	if _, err := s.lookupPartner(ctx, childID); err != nil {
		return err
	}

	current, err := s.repo.FindActiveParent(ctx, childID, enums.RelationLevelDirect)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("reading current upline: %w", err)
	}
	if current != nil && current.ParentPartnerID == newParentID {
		return pkgerrors.New(pkgerrors.CodeConflict, "partner is already bound to this upline")
	}

	grandparent, err := s.repo.FindActiveParent(ctx, newParentID, enums.RelationLevelDirect)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("resolving grandparent: %w", err)
	}

	bindTime := s.nowFn().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.DeactivateForChild(ctx, childID); err != nil {
			return err
		}
		if err := txRepo.Create(ctx, &models.PartnerRelation{
			ParentPartnerID: newParentID,
			ChildPartnerID:  childID,
			Level:           enums.RelationLevelDirect,
			IsActive:        true,
			BindTime:        bindTime,
		}); err != nil {
			return err
		}
		if grandparent != nil {
			if err := txRepo.Create(ctx, &models.PartnerRelation{
				ParentPartnerID: grandparent.ParentPartnerID,
				ChildPartnerID:  childID,
				Level:           enums.RelationLevelGrandparent,
				IsActive:        true,
				BindTime:        bindTime,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("correcting upline: %w", err)
	}

	entry := AuditEntry{
		ChildPartnerID: childID,
		NewParentID:    newParentID,
		Reason:         reason,
		OccurredAt:     bindTime,
	}
	if current != nil {
		oldParent := current.ParentPartnerID
		entry.OldParentID = &oldParent
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logg.Warn(ctx, "failed to record uplink correction audit entry")
	}
	return nil
}

func (s *service) GetUplink(ctx context.Context, childID uuid.UUID) (*Uplink, error) {
	if _, err := s.lookupPartner(ctx, childID); err != nil {
		return nil, err
	}

	uplink := &Uplink{}
	direct, err := s.repo.FindActiveParent(ctx, childID, enums.RelationLevelDirect)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("reading direct upline: %w", err)
	}
	uplink.Direct = direct

	grandparent, err := s.repo.FindActiveParent(ctx, childID, enums.RelationLevelGrandparent)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("reading grandparent upline: %w", err)
	}
	uplink.Grandparent = grandparent
	return uplink, nil
}

func (s *service) GetDownlines(ctx context.Context, parentID uuid.UUID, level enums.RelationLevel, params pagination.Params) (*DownlinePage, error) {
	if !level.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid relation level %d", level))
	}
	if _, err := s.lookupPartner(ctx, parentID); err != nil {
		return nil, err
	}

	params = pagination.Normalize(params)
	relations, err := s.repo.ListDownlines(ctx, parentID, level, params)
	if err != nil {
		return nil, fmt.Errorf("listing downlines: %w", err)
	}
	total, err := s.repo.CountDownlines(ctx, parentID, level)
	if err != nil {
		return nil, fmt.Errorf("counting downlines: %w", err)
	}
	return &DownlinePage{
		Relations: relations,
		Total:     total,
		Limit:     params.Limit,
		Offset:    params.Offset,
	}, nil
}

func (s *service) lookupPartner(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	partner, err := s.partners.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidPartner, fmt.Sprintf("partner %s does not exist", id))
		}
		return nil, fmt.Errorf("looking up partner %s: %w", id, err)
	}
	return partner, nil
}
