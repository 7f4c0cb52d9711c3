package usecase

import (
	"context"

	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/dataset"
	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/rawdata"
)

type FPLElement struct {
	ID      int64
	WebName string
}

type FPLPlayerHistory struct {
	ElementID int64
	Rows      []dataset.Record
	Raw       []byte
}

// UnderstatPayload is one array embedded in an Understat page. Raw holds the
// decoded JSON text of the array.
type UnderstatPayload struct {
	League  string
	Season  int
	Records []dataset.Record
	Raw     []byte
}

type FPLSource interface {
	FetchBootstrap(ctx context.Context) ([]byte, error)
	FetchFixtures(ctx context.Context) ([]byte, error)
	FetchElements(ctx context.Context) ([]FPLElement, []byte, error)
	FetchPlayerHistory(ctx context.Context, elementID int64) (FPLPlayerHistory, error)
}

type UnderstatSource interface {
	FetchPlayers(ctx context.Context, league string, season int) (UnderstatPayload, error)
	FetchMatches(ctx context.Context, league string, season int) (UnderstatPayload, error)
}

// PayloadArchive keeps raw upstream responses. rawdata.Repository satisfies it.
type PayloadArchive interface {
	UpsertMany(ctx context.Context, items []rawdata.Payload) error
}
