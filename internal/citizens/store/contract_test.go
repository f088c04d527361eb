package store

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"census/internal/citizens/graph"
	"census/internal/citizens/models"
	id "census/pkg/domain"
	"census/pkg/platform/sentinel"
)

type citizenStore interface {
	CreateImport(ctx context.Context, imp *models.Import) error
	PatchCitizen(ctx context.Context, importID id.ImportID, citizenID id.CitizenID, patch *models.CitizenPatch) (*models.Citizen, error)
	ListCitizens(ctx context.Context, importID id.ImportID) ([]*models.Citizen, error)
	Reset(ctx context.Context) error
	Health(ctx context.Context) error
}

// storeContractSuite holds the behavior every citizen store must share.
// Backends embed it and set store in SetupTest.
type storeContractSuite struct {
	suite.Suite
	store citizenStore
	ctx   context.Context
}

func newCitizen(cid int64, relatives ...int64) *models.Citizen {
	rel := make([]id.CitizenID, 0, len(relatives))
	for _, r := range relatives {
		rel = append(rel, id.CitizenID(r))
	}
	return &models.Citizen{
		CitizenID: id.CitizenID(cid),
		Town:      "Москва",
		Street:    "Льва Толстого",
		Building:  "16к7стр5",
		Apartment: 7,
		Name:      "Иванов Иван Иванович",
		BirthDate: models.NewBirthDate(1986, time.December, 26),
		Gender:    models.GenderMale,
		Relatives: rel,
	}
}

func ids(values ...int64) []id.CitizenID {
	out := make([]id.CitizenID, 0, len(values))
	for _, v := range values {
		out = append(out, id.CitizenID(v))
	}
	return out
}

func relativesPatch(values ...int64) *models.CitizenPatch {
	rel := ids(values...)
	return &models.CitizenPatch{Relatives: &rel}
}

func (s *storeContractSuite) create(importID id.ImportID, citizens ...*models.Citizen) {
	s.Require().NoError(s.store.CreateImport(s.ctx, &models.Import{
		ID:        importID,
		Citizens:  citizens,
		CreatedAt: time.Now(),
	}))
}

func (s *storeContractSuite) relativesOf(importID id.ImportID) map[id.CitizenID][]id.CitizenID {
	citizens, err := s.store.ListCitizens(s.ctx, importID)
	s.Require().NoError(err)
	out := make(map[id.CitizenID][]id.CitizenID, len(citizens))
	for _, c := range citizens {
		out[c.CitizenID] = c.Relatives
	}
	return out
}

func (s *storeContractSuite) requireMutual(importID id.ImportID) {
	s.Require().NoError(graph.CheckMutual(graph.Adjacency(s.relativesOf(importID))))
}

func (s *storeContractSuite) TestCreateAndList() {
	s.Run("keeps import order and collapses duplicate relatives", func() {
		s.create(1, newCitizen(5, 2, 2), newCitizen(2, 5), newCitizen(9))

		citizens, err := s.store.ListCitizens(s.ctx, 1)
		s.Require().NoError(err)
		s.Require().Len(citizens, 3)
		s.Equal([]id.CitizenID{5, 2, 9}, []id.CitizenID{citizens[0].CitizenID, citizens[1].CitizenID, citizens[2].CitizenID})
		s.Equal(ids(2), citizens[0].Relatives)
		s.Equal("26.12.1986", citizens[0].BirthDate.String())
		s.Equal(models.GenderMale, citizens[0].Gender)
		s.NotNil(citizens[2].Relatives)
		s.Empty(citizens[2].Relatives)
	})

	s.Run("empty import is listed as empty", func() {
		s.create(2)
		citizens, err := s.store.ListCitizens(s.ctx, 2)
		s.Require().NoError(err)
		s.Empty(citizens)
	})

	s.Run("rejects a reused import id", func() {
		err := s.store.CreateImport(s.ctx, &models.Import{ID: 1, Citizens: []*models.Citizen{newCitizen(1)}})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unknown import is not found", func() {
		_, err := s.store.ListCitizens(s.ctx, 404)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("imports are independent", func() {
		s.create(3, newCitizen(5))
		citizens, err := s.store.ListCitizens(s.ctx, 3)
		s.Require().NoError(err)
		s.Len(citizens, 1)
	})
}

func (s *storeContractSuite) TestPatchAttributes() {
	s.create(1, newCitizen(1, 2), newCitizen(2, 1))
	town := "Керчь"
	apartment := int64(12)

	pre, err := s.store.PatchCitizen(s.ctx, 1, 1, &models.CitizenPatch{Town: &town, Apartment: &apartment})
	s.Require().NoError(err)

	s.Equal("Москва", pre.Town)
	s.Equal(int64(7), pre.Apartment)
	citizens, err := s.store.ListCitizens(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("Керчь", citizens[0].Town)
	s.Equal(int64(12), citizens[0].Apartment)
	s.Equal(ids(2), citizens[0].Relatives)
	s.Equal("Москва", citizens[1].Town)
}

func (s *storeContractSuite) TestPatchRelatives() {
	s.Run("adds and removes neighbor edges", func() {
		s.create(1, newCitizen(1, 2), newCitizen(2, 1), newCitizen(3))

		_, err := s.store.PatchCitizen(s.ctx, 1, 3, relativesPatch(1))
		s.Require().NoError(err)
		rel := s.relativesOf(1)
		s.Equal(ids(2, 3), rel[1])
		s.Equal(ids(1), rel[3])

		pre, err := s.store.PatchCitizen(s.ctx, 1, 1, relativesPatch(3))
		s.Require().NoError(err)
		s.Equal(ids(2, 3), pre.Relatives)
		rel = s.relativesOf(1)
		s.Equal(ids(3), rel[1])
		s.Empty(rel[2])
		s.Equal(ids(1), rel[3])
		s.requireMutual(1)
	})

	s.Run("appends new edges at the end", func() {
		s.create(2, newCitizen(0), newCitizen(3, 5), newCitizen(4, 5), newCitizen(5, 3, 4))

		_, err := s.store.PatchCitizen(s.ctx, 2, 0, relativesPatch(5))
		s.Require().NoError(err)

		rel := s.relativesOf(2)
		s.Equal(ids(3, 4, 0), rel[5])
		s.Equal(ids(5), rel[0])
	})

	s.Run("clearing relatives unlinks every neighbor", func() {
		s.create(3, newCitizen(1, 2, 3), newCitizen(2, 1), newCitizen(3, 1))

		_, err := s.store.PatchCitizen(s.ctx, 3, 1, relativesPatch())
		s.Require().NoError(err)

		rel := s.relativesOf(3)
		s.Empty(rel[1])
		s.Empty(rel[2])
		s.Empty(rel[3])
	})

	s.Run("self edge touches only the target", func() {
		s.create(4, newCitizen(1), newCitizen(2))

		_, err := s.store.PatchCitizen(s.ctx, 4, 1, relativesPatch(1, 2))
		s.Require().NoError(err)
		rel := s.relativesOf(4)
		s.Equal(ids(1, 2), rel[1])
		s.Equal(ids(1), rel[2])

		_, err = s.store.PatchCitizen(s.ctx, 4, 1, relativesPatch(2))
		s.Require().NoError(err)
		rel = s.relativesOf(4)
		s.Equal(ids(2), rel[1])
		s.Equal(ids(1), rel[2])
	})

	s.Run("same relatives again is a no-op", func() {
		s.create(5, newCitizen(1, 2), newCitizen(2, 1))
		_, err := s.store.PatchCitizen(s.ctx, 5, 1, relativesPatch(2))
		s.Require().NoError(err)
		rel := s.relativesOf(5)
		s.Equal(ids(2), rel[1])
		s.Equal(ids(1), rel[2])
	})
}

func (s *storeContractSuite) TestPatchFailuresMutateNothing() {
	s.create(1, newCitizen(1, 2), newCitizen(2, 1))
	before, err := s.store.ListCitizens(s.ctx, 1)
	s.Require().NoError(err)

	s.Run("unknown relative", func() {
		name := "Новое Имя"
		rel := ids(2, 1000)
		_, err := s.store.PatchCitizen(s.ctx, 1, 1, &models.CitizenPatch{Name: &name, Relatives: &rel})
		s.ErrorIs(err, sentinel.ErrUnknownReference)
	})

	s.Run("unknown citizen", func() {
		_, err := s.store.PatchCitizen(s.ctx, 1, 77, relativesPatch(1))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unknown import", func() {
		_, err := s.store.PatchCitizen(s.ctx, 99, 1, relativesPatch(1))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	after, err := s.store.ListCitizens(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(before, after)
}

// TestRandomPatchesKeepSymmetry replays a deterministic stream of relatives
// patches and checks mutuality after each one.
func (s *storeContractSuite) TestRandomPatchesKeepSymmetry() {
	const size = 12
	citizens := make([]*models.Citizen, 0, size)
	for i := range size {
		citizens = append(citizens, newCitizen(int64(i)))
	}
	s.create(1, citizens...)

	rng := rand.New(rand.NewPCG(1, 2))
	for range 60 {
		target := rng.Int64N(size)
		var next []int64
		for r := range int64(size) {
			if rng.IntN(4) == 0 {
				next = append(next, r)
			}
		}
		_, err := s.store.PatchCitizen(s.ctx, 1, id.CitizenID(target), relativesPatch(next...))
		s.Require().NoError(err)
		s.requireMutual(1)
	}
}

// TestConcurrentPatchesKeepSymmetry races overlapping patches against each
// other and against readers.
func (s *storeContractSuite) TestConcurrentPatchesKeepSymmetry() {
	const size = 8
	citizens := make([]*models.Citizen, 0, size)
	for i := range size {
		citizens = append(citizens, newCitizen(int64(i)))
	}
	s.create(1, citizens...)

	var wg sync.WaitGroup
	errs := make(chan error, size*10)
	for worker := range size {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(worker), 7))
			for range 10 {
				next := []int64{rng.Int64N(size), rng.Int64N(size)}
				if _, err := s.store.PatchCitizen(s.ctx, 1, id.CitizenID(worker), relativesPatch(next...)); err != nil {
					errs <- err
				}
				if _, err := s.store.ListCitizens(s.ctx, 1); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.Require().NoError(err)
	}
	s.requireMutual(1)
}

func (s *storeContractSuite) TestReset() {
	s.create(1, newCitizen(1))
	s.Require().NoError(s.store.Reset(s.ctx))

	_, err := s.store.ListCitizens(s.ctx, 1)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.create(1, newCitizen(1))
}

func (s *storeContractSuite) TestHealth() {
	s.NoError(s.store.Health(s.ctx))
}
