// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"math/rand"
	"reflect"
	"sort"
	"testing"
)

func TestCondense(t *testing.T) {
	tests := []struct {
		records   []Record
		condensed []Record
	}{
		{nil, nil},
		{[]Record{NewRecord(1)}, []Record{NewRecord(1)}},
		{
			[]Record{NewRecord(3), NewRecord(1), NewRecord(2), NewRecord(5)},
			[]Record{NewRangedRecord(1, 3), NewRecord(5)},
		},
		{
			[]Record{NewRangedRecord(4, 6), NewRecord(7), NewRecord(4), NewRecord(10)},
			[]Record{NewRangedRecord(4, 7), NewRecord(10)},
		},
		{
			[]Record{NewRecord(9), NewRecord(9), NewRecord(9)},
			[]Record{NewRecord(9)},
		},
	}

	for _, test := range tests {
		if condensed := Condense(test.records); !reflect.DeepEqual(condensed, test.condensed) {
			t.Fatalf("Condense(%v) = %v, expected %v", test.records, condensed, test.condensed)
		}
	}
}

func TestSimplify(t *testing.T) {
	records := []Record{NewRangedRecord(5, 7), NewRecord(1), NewRecord(6)}
	expected := []Record{NewRecord(1), NewRecord(5), NewRecord(6), NewRecord(7)}

	if simplified := Simplify(records); !reflect.DeepEqual(simplified, expected) {
		t.Fatalf("Simplify(%v) = %v, expected %v", records, simplified, expected)
	}

	if again := Simplify(expected); !reflect.DeepEqual(again, expected) {
		t.Fatalf("Simplify is not idempotent: %v", again)
	}
}

func TestCondenseSimplifyRandom(t *testing.T) {
	rnd := rand.New(rand.NewSource(23))

	for i := 0; i < 200; i++ {
		var (
			records []Record
			set     = make(map[uint32]struct{})
		)
		for j := rnd.Intn(64); j > 0; j-- {
			index := uint32(rnd.Intn(128))
			records = append(records, NewRecord(index))
			set[index] = struct{}{}
		}

		var expected []Record
		for index := range set {
			expected = append(expected, NewRecord(index))
		}
		sort.Slice(expected, func(i, j int) bool { return expected[i].Index < expected[j].Index })

		condensed := Condense(records)
		if simplified := Simplify(condensed); !reflect.DeepEqual(simplified, expected) {
			t.Fatalf("Simplify(Condense(%v)) = %v, expected %v", records, simplified, expected)
		}

		if !reflect.DeepEqual(Condense(condensed), condensed) {
			t.Fatalf("Condense is not idempotent for %v", condensed)
		}

		for k := 1; k < len(condensed); k++ {
			if condensed[k].Index <= condensed[k-1].EndIndex+1 {
				t.Fatalf("Condensed records %v and %v are not minimal", condensed[k-1], condensed[k])
			}
		}
	}
}
