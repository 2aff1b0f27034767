package model

import "fmt"

// Requirement 购买/解锁前账户必须满足的条件。
// 接口带未导出方法，外部包无法新增实现，新增条件类型必须在 FirstUnmet 中处理。
type Requirement interface {
	fmt.Stringer
	isRequirement()
}

// LevelRequirement 最低等级
type LevelRequirement struct {
	Level int
}

// RankRequirement 最低猎人等级
type RankRequirement struct {
	Rank Rank
}

func (LevelRequirement) isRequirement() {}
func (RankRequirement) isRequirement()  {}

func (r LevelRequirement) String() string {
	return fmt.Sprintf("需要等级 %d", r.Level)
}

func (r RankRequirement) String() string {
	return fmt.Sprintf("需要 %s 级", r.Rank)
}

// Progress 账户当前的成长状态
type Progress struct {
	Level int
	Rank  Rank
}

// FirstUnmet 按顺序检查条件，返回第一个不满足的条件；全部满足时返回 nil
func FirstUnmet(reqs []Requirement, p Progress) (Requirement, error) {
	for _, req := range reqs {
		var ok bool
		switch r := req.(type) {
		case LevelRequirement:
			ok = p.Level >= r.Level
		case RankRequirement:
			ok = p.Rank.AtLeast(r.Rank)
		default:
			return nil, fmt.Errorf("未处理的条件类型 %T", req)
		}
		if !ok {
			return req, nil
		}
	}
	return nil, nil
}
