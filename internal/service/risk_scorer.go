package service

import (
	"github.com/shopspring/decimal"

	"riskhub_v1_202610/internal/model"
)

// 默认风险策略
const (
	DefaultReturnWeight = 20
	DefaultLateWeight   = 10
	DefaultGreenMax     = 30
	DefaultYellowMax    = 60

	MaxRiskScore = 100
)

// RiskPolicy 配送风险评分策略
// 只看运单维度的退回和迟到，不看订单状态
type RiskPolicy struct {
	ReturnWeight int
	LateWeight   int
	GreenMax     int // score <= GreenMax 为 green
	YellowMax    int // GreenMax < score <= YellowMax 为 yellow，其余 red
}

// DefaultRiskPolicy 默认策略：退回 20 分，迟到 10 分
func DefaultRiskPolicy() RiskPolicy {
	return RiskPolicy{
		ReturnWeight: DefaultReturnWeight,
		LateWeight:   DefaultLateWeight,
		GreenMax:     DefaultGreenMax,
		YellowMax:    DefaultYellowMax,
	}
}

// Score 计算 0~100 的风险分
func (p RiskPolicy) Score(stat *model.CustomerStat) int {
	if stat == nil {
		return 0
	}
	raw := decimal.NewFromInt(int64(stat.Returns)).Mul(decimal.NewFromInt(int64(p.ReturnWeight))).
		Add(decimal.NewFromInt(int64(stat.LateDeliveries)).Mul(decimal.NewFromInt(int64(p.LateWeight))))

	if raw.IsNegative() {
		return 0
	}
	if raw.GreaterThan(decimal.NewFromInt(MaxRiskScore)) {
		return MaxRiskScore
	}
	return int(raw.IntPart())
}

// Level 分数映射到风险等级，边界值归入较低等级
func (p RiskPolicy) Level(score int) string {
	switch {
	case score <= p.GreenMax:
		return model.RiskLevelGreen
	case score <= p.YellowMax:
		return model.RiskLevelYellow
	default:
		return model.RiskLevelRed
	}
}

// Evaluate 同时返回分数和等级
func (p RiskPolicy) Evaluate(stat *model.CustomerStat) (int, string) {
	score := p.Score(stat)
	return score, p.Level(score)
}
