package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"expensio/internal/directory"
	id "expensio/pkg/domain"
	"expensio/pkg/platform/sentinel"
)

type PolicyStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *PolicyStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestPolicyStoreSuite(t *testing.T) {
	suite.Run(t, new(PolicyStoreSuite))
}

func (s *PolicyStoreSuite) newPolicy(companyID id.CompanyID) *ApprovalPolicy {
	return &ApprovalPolicy{
		ID:        id.NewPolicyID(),
		CompanyID: companyID,
		Steps: []PolicyStep{
			{Kind: StepManager, Order: 1},
			{Kind: StepRole, Order: 2, Role: directory.RoleManager},
		},
		Mode:      ModeSequential,
		CreatedAt: time.Now(),
	}
}

func (s *PolicyStoreSuite) TestActiveFor() {
	companyID := id.NewCompanyID()

	s.Run("returns ErrNotFound when no policy exists", func() {
		_, err := s.store.ActiveFor(s.ctx, companyID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns the created policy as active", func() {
		pol := s.newPolicy(companyID)
		s.Require().NoError(s.store.Create(s.ctx, pol))

		active, err := s.store.ActiveFor(s.ctx, companyID)
		s.Require().NoError(err)
		s.Equal(pol.ID, active.ID)
		s.True(active.Active)
	})
}

func (s *PolicyStoreSuite) TestCreateDeactivatesPriorPolicies() {
	companyID := id.NewCompanyID()
	first := s.newPolicy(companyID)
	second := s.newPolicy(companyID)
	other := s.newPolicy(id.NewCompanyID())

	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, other))
	s.Require().NoError(s.store.Create(s.ctx, second))

	active, err := s.store.ActiveFor(s.ctx, companyID)
	s.Require().NoError(err)
	s.Equal(second.ID, active.ID)

	policies, err := s.store.ListByCompany(s.ctx, companyID)
	s.Require().NoError(err)
	s.Require().Len(policies, 2)

	activeCount := 0
	for _, pol := range policies {
		if pol.Active {
			activeCount++
		}
	}
	s.Equal(1, activeCount, "exactly one policy per company may be active")

	// Other company's policy is untouched.
	otherActive, err := s.store.ActiveFor(s.ctx, other.CompanyID)
	s.Require().NoError(err)
	s.Equal(other.ID, otherActive.ID)
}

func (s *PolicyStoreSuite) TestValidation() {
	companyID := id.NewCompanyID()

	s.Run("rejects unknown step kind", func() {
		pol := s.newPolicy(companyID)
		pol.Steps[0].Kind = "chief_vibes_officer"
		s.Require().Error(s.store.Create(s.ctx, pol))
	})

	s.Run("rejects percentage mode without threshold", func() {
		pol := s.newPolicy(companyID)
		pol.Mode = ModePercentage
		pol.Threshold = 0
		s.Require().Error(s.store.Create(s.ctx, pol))
	})

	s.Run("rejects specific_user step without approver", func() {
		pol := s.newPolicy(companyID)
		pol.Steps = append(pol.Steps, PolicyStep{Kind: StepSpecificUser, Order: 3})
		s.Require().Error(s.store.Create(s.ctx, pol))
	})
}
