package update

import (
	"errors"

	"github.com/nvandessel/competence/internal/mastery"
	"github.com/nvandessel/competence/internal/metrics"
	"github.com/nvandessel/competence/internal/models"
)

// Rejection is an evidence item that was skipped before update.
type Rejection struct {
	Evidence models.Evidence `json:"evidence"`
	Reason   string          `json:"reason"`
	Err      error           `json:"-"`
}

// BatchResult is the outcome of applying several evidence items at once.
type BatchResult struct {
	Vector   *mastery.Vector `json:"-"`
	Traces   []*Trace        `json:"traces,omitempty"`
	Rejected []Rejection     `json:"rejected,omitempty"`
}

// Applied reports how many items contributed to the result.
func (r *BatchResult) Applied() int { return len(r.Traces) }

// ApplyBatch applies every item independently to the same starting vector
// and averages the per-item results competence by competence.
//
// Items naming an unknown competence, direction or strength are rejected and
// logged; the rest still apply. A precondition violation aborts the batch.
//
// The mean of several individually guaranteed updates does not itself
// honor the at-least-one or at-most-one bounds computed per item. This is a
// known approximation of simultaneous evidence.
func (e *Engine) ApplyBatch(v *mastery.Vector, items []models.Evidence) (*BatchResult, error) {
	res := &BatchResult{}
	var outs []*mastery.Vector

	for _, ev := range items {
		if reason := e.reject(v, ev); reason != nil {
			res.Rejected = append(res.Rejected, Rejection{Evidence: ev, Reason: reason.Error(), Err: reason})
			label := "invalid"
			if errors.Is(reason, models.ErrUnknownIdentifier) {
				label = "unknown_competence"
			}
			metrics.EvidenceRejected.WithLabelValues(label).Inc()
			e.logger.Warn("evidence rejected", "evidence", ev.String(), "reason", reason)
			continue
		}

		out, trace, err := e.Apply(v, ev)
		if err != nil {
			return nil, err
		}
		outs = append(outs, out)
		res.Traces = append(res.Traces, trace)
	}

	res.Vector = mean(v, outs)
	return res, nil
}

// reject returns why ev cannot be applied to v, or nil.
func (e *Engine) reject(v *mastery.Vector, ev models.Evidence) error {
	if !v.Graph().Has(ev.CompetenceID) {
		return &models.UnknownIDError{Kind: "competence", ID: ev.CompetenceID}
	}
	if !ev.Direction.Valid() {
		return &models.ConfigError{Field: "direction", Reason: "invalid direction " + string(ev.Direction)}
	}
	if !ev.Strength.Valid() {
		return &models.ConfigError{Field: "strength", Reason: "invalid strength " + string(ev.Strength)}
	}
	return nil
}

// mean averages outs element-wise. With no results it returns a copy of base.
func mean(base *mastery.Vector, outs []*mastery.Vector) *mastery.Vector {
	if len(outs) == 0 {
		return base.Clone()
	}
	if len(outs) == 1 {
		return outs[0]
	}
	res := base.Clone()
	k := float64(len(outs))
	for i := 0; i < res.Len(); i++ {
		sum := 0.0
		for _, o := range outs {
			sum += o.At(i)
		}
		res.SetAt(i, sum/k)
	}
	return res
}
