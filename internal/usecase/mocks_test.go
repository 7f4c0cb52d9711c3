package usecase

import (
	"context"

	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/rawdata"
	"github.com/stretchr/testify/mock"
)

type fplSourceMock struct {
	mock.Mock
}

func newFPLSourceMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *fplSourceMock {
	m := &fplSourceMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *fplSourceMock) FetchBootstrap(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	raw, _ := args.Get(0).([]byte)
	return raw, args.Error(1)
}

func (m *fplSourceMock) FetchFixtures(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	raw, _ := args.Get(0).([]byte)
	return raw, args.Error(1)
}

func (m *fplSourceMock) FetchElements(ctx context.Context) ([]FPLElement, []byte, error) {
	args := m.Called(ctx)
	elements, _ := args.Get(0).([]FPLElement)
	raw, _ := args.Get(1).([]byte)
	return elements, raw, args.Error(2)
}

func (m *fplSourceMock) FetchPlayerHistory(ctx context.Context, elementID int64) (FPLPlayerHistory, error) {
	args := m.Called(ctx, elementID)
	history, _ := args.Get(0).(FPLPlayerHistory)
	return history, args.Error(1)
}

type understatSourceMock struct {
	mock.Mock
}

func newUnderstatSourceMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *understatSourceMock {
	m := &understatSourceMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *understatSourceMock) FetchPlayers(ctx context.Context, league string, season int) (UnderstatPayload, error) {
	args := m.Called(ctx, league, season)
	payload, _ := args.Get(0).(UnderstatPayload)
	return payload, args.Error(1)
}

func (m *understatSourceMock) FetchMatches(ctx context.Context, league string, season int) (UnderstatPayload, error) {
	args := m.Called(ctx, league, season)
	payload, _ := args.Get(0).(UnderstatPayload)
	return payload, args.Error(1)
}

type archiveMock struct {
	mock.Mock
}

func (m *archiveMock) UpsertMany(ctx context.Context, items []rawdata.Payload) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}
