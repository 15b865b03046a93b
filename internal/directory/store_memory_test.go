package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "expensio/pkg/domain"
	"expensio/pkg/platform/sentinel"
)

type DirectoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *DirectoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestDirectoryStoreSuite(t *testing.T) {
	suite.Run(t, new(DirectoryStoreSuite))
}

func (s *DirectoryStoreSuite) newUser(companyID id.CompanyID, name string, role Role) *User {
	return &User{
		ID:        id.NewUserID(),
		CompanyID: companyID,
		Name:      name,
		Email:     name + "@example.com",
		Role:      role,
		CreatedAt: time.Now(),
	}
}

func (s *DirectoryStoreSuite) TestCreateAndLookups() {
	companyID := id.NewCompanyID()

	s.Run("creates and finds user by ID and email", func() {
		user := s.newUser(companyID, "alice", RoleEmployee)
		s.Require().NoError(s.store.Create(s.ctx, user))

		found, err := s.store.FindByID(s.ctx, user.ID)
		s.Require().NoError(err)
		s.Equal(user.Name, found.Name)

		found, err = s.store.FindByEmail(s.ctx, "ALICE@example.com")
		s.Require().NoError(err)
		s.Equal(user.ID, found.ID)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.NewUserID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects duplicate email", func() {
		first := s.newUser(companyID, "bob", RoleEmployee)
		s.Require().NoError(s.store.Create(s.ctx, first))

		dup := s.newUser(companyID, "bob2", RoleEmployee)
		dup.Email = "BOB@example.com"
		s.Require().ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)
	})
}

func (s *DirectoryStoreSuite) TestManagerOf() {
	companyID := id.NewCompanyID()
	manager := s.newUser(companyID, "mgr", RoleManager)
	s.Require().NoError(s.store.Create(s.ctx, manager))

	s.Run("resolves direct manager", func() {
		employee := s.newUser(companyID, "emp", RoleEmployee)
		employee.ManagerID = &manager.ID
		s.Require().NoError(s.store.Create(s.ctx, employee))

		found, err := s.store.ManagerOf(s.ctx, employee.ID)
		s.Require().NoError(err)
		s.Equal(manager.ID, found.ID)
	})

	s.Run("returns ErrNotFound when user has no manager", func() {
		loner := s.newUser(companyID, "loner", RoleEmployee)
		s.Require().NoError(s.store.Create(s.ctx, loner))

		_, err := s.store.ManagerOf(s.ctx, loner.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("treats dangling manager reference as absent", func() {
		ghost := id.NewUserID()
		orphan := s.newUser(companyID, "orphan", RoleEmployee)
		orphan.ManagerID = &ghost
		s.Require().NoError(s.store.Create(s.ctx, orphan))

		_, err := s.store.ManagerOf(s.ctx, orphan.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *DirectoryStoreSuite) TestListByRolePreservesInsertionOrder() {
	companyID := id.NewCompanyID()
	first := s.newUser(companyID, "first-manager", RoleManager)
	second := s.newUser(companyID, "second-manager", RoleManager)
	other := s.newUser(id.NewCompanyID(), "other-company", RoleManager)

	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))
	s.Require().NoError(s.store.Create(s.ctx, other))

	managers, err := s.store.ListByRole(s.ctx, companyID, RoleManager)
	s.Require().NoError(err)
	s.Require().Len(managers, 2)
	s.Equal(first.ID, managers[0].ID)
	s.Equal(second.ID, managers[1].ID)
}

func (s *DirectoryStoreSuite) TestListDirectReports() {
	companyID := id.NewCompanyID()
	manager := s.newUser(companyID, "the-manager", RoleManager)
	s.Require().NoError(s.store.Create(s.ctx, manager))

	report := s.newUser(companyID, "report", RoleEmployee)
	report.ManagerID = &manager.ID
	s.Require().NoError(s.store.Create(s.ctx, report))

	unrelated := s.newUser(companyID, "unrelated", RoleEmployee)
	s.Require().NoError(s.store.Create(s.ctx, unrelated))

	reports, err := s.store.ListDirectReports(s.ctx, manager.ID)
	s.Require().NoError(err)
	s.Require().Len(reports, 1)
	s.Equal(report.ID, reports[0].ID)
}
