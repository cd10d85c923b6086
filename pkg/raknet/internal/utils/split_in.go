// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package utils

import (
	"errors"
	"fmt"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
)

var (
	// ErrSplitMismatch is returned for a part not belonging to its split group.
	ErrSplitMismatch = errors.New("split part does not belong to its group")

	// ErrDuplicateSplit is returned for an already received split index.
	ErrDuplicateSplit = errors.New("duplicate split index")

	// ErrSplitCountExceeded is returned for a split count above the allowed maximum.
	ErrSplitCountExceeded = errors.New("split count exceeds the maximum")

	// ErrSplitQueueOverflow is returned if no further split group can be tracked.
	ErrSplitQueueOverflow = errors.New("split queue overflow")
)

// SplitGroup collects the parts of one split message.
type SplitGroup struct {
	Id          uint16
	Count       uint32
	Reliability msgs.Reliability

	chunks map[uint32][]byte
}

// NewSplitGroup for the given split id, split count and Reliability.
func NewSplitGroup(id uint16, count uint32, rel msgs.Reliability) *SplitGroup {
	return &SplitGroup{
		Id:          id,
		Count:       count,
		Reliability: rel,
		chunks:      make(map[uint32][]byte),
	}
}

func (sg SplitGroup) String() string {
	return fmt.Sprintf("SPLIT_GROUP(id=%d, %d/%d, %v)", sg.Id, len(sg.chunks), sg.Count, sg.Reliability)
}

// Update this SplitGroup with the next part. The payload is returned, concatenated in split index order, as soon as all
// parts are present.
func (sg *SplitGroup) Update(part *msgs.EncapsulatedMessage) (payload []byte, complete bool, err error) {
	if !part.Split || part.SplitId != sg.Id || part.SplitCount != sg.Count || part.Reliability != sg.Reliability {
		err = fmt.Errorf("%v: %w", sg, ErrSplitMismatch)
		return
	} else if part.SplitIndex >= sg.Count {
		err = fmt.Errorf("%v: split index %d out of range: %w", sg, part.SplitIndex, ErrSplitMismatch)
		return
	} else if _, exists := sg.chunks[part.SplitIndex]; exists {
		err = fmt.Errorf("%v: split index %d: %w", sg, part.SplitIndex, ErrDuplicateSplit)
		return
	}

	sg.chunks[part.SplitIndex] = part.Payload
	if uint32(len(sg.chunks)) < sg.Count {
		return
	}

	var length int
	for _, chunk := range sg.chunks {
		length += len(chunk)
	}

	payload = make([]byte, 0, length)
	for i := uint32(0); i < sg.Count; i++ {
		payload = append(payload, sg.chunks[i]...)
	}
	complete = true
	return
}

// SplitQueue tracks a bounded amount of SplitGroups for a session.
type SplitQueue struct {
	maxGroups     int
	maxSplitCount uint32

	groups map[uint16]*SplitGroup
}

// NewSplitQueue which tracks up to maxGroups groups, each of at most maxSplitCount parts.
func NewSplitQueue(maxGroups int, maxSplitCount uint32) *SplitQueue {
	return &SplitQueue{
		maxGroups:     maxGroups,
		maxSplitCount: maxSplitCount,
		groups:        make(map[uint16]*SplitGroup),
	}
}

// Len returns the amount of currently tracked groups.
func (sq *SplitQueue) Len() int {
	return len(sq.groups)
}

// Clear all tracked groups.
func (sq *SplitQueue) Clear() {
	sq.groups = make(map[uint16]*SplitGroup)
}

// Handle the next split part. A new group beyond the capacity evicts all unreliable groups first.
//
// The reassembled message is returned once all parts are present; evicted reports the amount of dropped groups.
func (sq *SplitQueue) Handle(part *msgs.EncapsulatedMessage) (msg *msgs.EncapsulatedMessage, evicted int, err error) {
	if part.SplitCount == 0 {
		err = fmt.Errorf("split part without a split count: %w", ErrSplitMismatch)
		return
	} else if part.SplitCount > sq.maxSplitCount {
		err = fmt.Errorf("split count %d > %d: %w", part.SplitCount, sq.maxSplitCount, ErrSplitCountExceeded)
		return
	}

	group, exists := sq.groups[part.SplitId]
	if !exists {
		if len(sq.groups) >= sq.maxGroups {
			for id, g := range sq.groups {
				if !g.Reliability.IsReliable() {
					delete(sq.groups, id)
					evicted++
				}
			}
		}
		if len(sq.groups) >= sq.maxGroups {
			err = ErrSplitQueueOverflow
			return
		}

		group = NewSplitGroup(part.SplitId, part.SplitCount, part.Reliability)
		sq.groups[part.SplitId] = group
	}

	payload, complete, err := group.Update(part)
	if err != nil || !complete {
		return
	}

	delete(sq.groups, part.SplitId)
	msg = &msgs.EncapsulatedMessage{
		Reliability:  part.Reliability,
		MessageIndex: part.MessageIndex,
		OrderIndex:   part.OrderIndex,
		OrderChannel: part.OrderChannel,
		Payload:      payload,
	}
	return
}
