// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"fmt"
	"sort"
)

// Record references either a single datagram sequence number or a contiguous range of them.
type Record struct {
	Index    uint32
	EndIndex uint32
}

// NewRecord for a single sequence number.
func NewRecord(index uint32) Record {
	return Record{Index: index, EndIndex: index}
}

// NewRangedRecord for the inclusive sequence number range from start to end.
func NewRangedRecord(start, end uint32) Record {
	if end < start {
		start, end = end, start
	}
	return Record{Index: start, EndIndex: end}
}

// IsRanged checks if this Record covers more than one sequence number.
func (r Record) IsRanged() bool {
	return r.EndIndex > r.Index
}

// Indices returns all sequence numbers covered by this Record in ascending order.
func (r Record) Indices() []uint32 {
	if !r.IsRanged() {
		return []uint32{r.Index}
	}

	indices := make([]uint32, 0, r.EndIndex-r.Index+1)
	for i := r.Index; i <= r.EndIndex; i++ {
		indices = append(indices, i)
	}
	return indices
}

func (r Record) String() string {
	if r.IsRanged() {
		return fmt.Sprintf("Record(%d-%d)", r.Index, r.EndIndex)
	}
	return fmt.Sprintf("Record(%d)", r.Index)
}

// sortedIndices of all records, without duplicates.
func sortedIndices(records []Record) []uint32 {
	seen := make(map[uint32]struct{})
	var indices []uint32
	for _, record := range records {
		for _, index := range record.Indices() {
			if _, ok := seen[index]; !ok {
				seen[index] = struct{}{}
				indices = append(indices, index)
			}
		}
	}

	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices
}

// Condense merges all sequence numbers covered by records into a minimal, ascending list of single and ranged
// Records.
func Condense(records []Record) []Record {
	indices := sortedIndices(records)
	if len(indices) == 0 {
		return nil
	}

	var condensed []Record
	current := NewRecord(indices[0])
	for _, index := range indices[1:] {
		if index == current.EndIndex+1 {
			current.EndIndex = index
		} else {
			condensed = append(condensed, current)
			current = NewRecord(index)
		}
	}
	return append(condensed, current)
}

// Simplify expands records into one single Record per covered sequence number, ascending and without duplicates.
func Simplify(records []Record) []Record {
	indices := sortedIndices(records)
	if len(indices) == 0 {
		return nil
	}

	simplified := make([]Record, len(indices))
	for i, index := range indices {
		simplified[i] = NewRecord(index)
	}
	return simplified
}
