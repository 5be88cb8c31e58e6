// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repository

import "github.com/bureau-foundation/pel/lib/pel"

const (
	// Percentages of MaxSize each category may occupy before pruning.
	informationalLimitPercent = 15
	serviceableLimitPercent   = 30

	warningPercent = 95

	// Count pruning stops once the count is at or below this
	// percentage of MaxCount.
	countTargetPercent = 80
)

// pruneCategory is one of the four size-capped partitions.
type pruneCategory struct {
	name        string
	bmc         bool
	serviceable bool
	size        func(*SizeStats) uint64
	limit       uint64
}

// prunePasses are the eligibility checks run in order. Earlier passes
// remove PELs whose delivery has been confirmed.
var prunePasses = []struct {
	name     string
	eligible func(*Attributes) bool
}{
	{"hmc_acked", func(a *Attributes) bool { return a.HMCState == pel.TransmissionAcked }},
	{"host_acked", func(a *Attributes) bool { return a.HostState == pel.TransmissionAcked }},
	{"host_sent", func(a *Attributes) bool { return a.HostState == pel.TransmissionSent }},
	{"any", func(*Attributes) bool { return true }},
}

// SizeWarning reports whether the repository is close enough to its
// limits that Prune should run.
func (r *Repository) SizeWarning() bool {
	if r.maxSize > 0 && r.stats.Total > r.maxSize*warningPercent/100 {
		return true
	}
	return r.maxCount > 0 && len(r.attributes) > r.maxCount
}

// Prune removes PELs until every category is within its size cap and
// the count is within its target. It returns the OBMC IDs of the
// removed PELs in removal order.
func (r *Repository) Prune() []uint32 {
	var removed []uint32

	categories := []pruneCategory{
		{"bmc_info", true, false, func(s *SizeStats) uint64 { return s.BMCInfo }, r.maxSize * informationalLimitPercent / 100},
		{"bmc_serviceable", true, true, func(s *SizeStats) uint64 { return s.BMCServiceable }, r.maxSize * serviceableLimitPercent / 100},
		{"non_bmc_info", false, false, func(s *SizeStats) uint64 { return s.NonBMCInfo }, r.maxSize * informationalLimitPercent / 100},
		{"non_bmc_serviceable", false, true, func(s *SizeStats) uint64 { return s.NonBMCServiceable }, r.maxSize * serviceableLimitPercent / 100},
	}

	if r.maxSize > 0 {
		for _, category := range categories {
			overLimit := func() bool { return category.size(&r.stats) > category.limit }
			if !overLimit() {
				continue
			}
			inCategory := func(a *Attributes) bool {
				return a.IsBMC() == category.bmc && a.IsServiceable() == category.serviceable
			}
			count := r.prune(inCategory, overLimit, &removed)
			r.logger.Info("pruned PEL category",
				"category", category.name,
				"removed", count,
				"size", category.size(&r.stats),
				"limit", category.limit,
			)
		}
	}

	if r.maxCount > 0 && len(r.attributes) > r.maxCount {
		target := r.maxCount * countTargetPercent / 100
		overLimit := func() bool { return len(r.attributes) > target }
		count := r.prune(func(*Attributes) bool { return true }, overLimit, &removed)
		r.logger.Info("pruned PELs by count",
			"removed", count,
			"count", len(r.attributes),
			"target", target,
		)
	}

	return removed
}

// prune runs the ordered passes over PELs selected by include, removing
// eligible ones oldest first while overLimit holds.
func (r *Repository) prune(include func(*Attributes) bool, overLimit func() bool, removed *[]uint32) int {
	count := 0
	for _, pass := range prunePasses {
		for _, attributes := range r.sortedAttributes() {
			if !overLimit() {
				return count
			}
			if !include(attributes) || !pass.eligible(attributes) {
				continue
			}
			id, ok := r.Remove(LogID{PELID: attributes.PELID})
			if !ok {
				continue
			}
			r.logger.Debug("pruned PEL",
				"pel_id", pelIDAttr(id.PELID),
				"obmc_id", id.OBMCID,
				"pass", pass.name,
			)
			*removed = append(*removed, id.OBMCID)
			count++
		}
	}
	return count
}
