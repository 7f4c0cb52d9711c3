package fpl

import (
	"fmt"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/dataset"
	"github.com/riskibarqy/fpl-data-pipeline/internal/usecase"
)

type bootstrapEnvelope struct {
	Elements []elementDTO `json:"elements"`
}

type elementDTO struct {
	ID      int64  `json:"id"`
	WebName string `json:"web_name"`
}

type summaryEnvelope struct {
	History sonic.NoCopyRawMessage `json:"history"`
}

// DecodeElements reads the player list of a bootstrap-static document in
// upstream order.
func DecodeElements(raw []byte) ([]usecase.FPLElement, error) {
	var envelope bootstrapEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode bootstrap elements: %w", err)
	}
	if envelope.Elements == nil {
		return nil, fmt.Errorf("%w: bootstrap payload has no elements", usecase.ErrUpstream)
	}

	out := make([]usecase.FPLElement, 0, len(envelope.Elements))
	for _, item := range envelope.Elements {
		out = append(out, usecase.FPLElement{ID: item.ID, WebName: item.WebName})
	}
	return out, nil
}

// DecodeHistory returns the per-gameweek rows of an element-summary document.
// A summary without history yields no rows.
func DecodeHistory(raw []byte) ([]dataset.Record, error) {
	var envelope summaryEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode element summary: %w", err)
	}
	if len(envelope.History) == 0 || string(envelope.History) == "null" {
		return nil, nil
	}
	rows, err := dataset.DecodeRecords(envelope.History)
	if err != nil {
		return nil, fmt.Errorf("decode element history: %w", err)
	}
	return rows, nil
}
