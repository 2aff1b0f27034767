package model

import "fmt"

// Rank 猎人等级，E < D < C < B < A < S
type Rank string

const (
	RankE Rank = "E"
	RankD Rank = "D"
	RankC Rank = "C"
	RankB Rank = "B"
	RankA Rank = "A"
	RankS Rank = "S"
)

var rankOrder = []Rank{RankE, RankD, RankC, RankB, RankA, RankS}

// Position 返回等级在排序中的位置，未知等级返回 -1
func (r Rank) Position() int {
	for i, rank := range rankOrder {
		if rank == r {
			return i
		}
	}
	return -1
}

func (r Rank) Valid() bool {
	return r.Position() >= 0
}

// AtLeast 判断 r 是否不低于 other
func (r Rank) AtLeast(other Rank) bool {
	return r.Position() >= other.Position()
}

func ParseRank(s string) (Rank, error) {
	r := Rank(s)
	if !r.Valid() {
		return "", fmt.Errorf("未知等级: %q", s)
	}
	return r, nil
}
