package service

import (
	"errors"
	"fmt"
)

// ErrRaceCondition 扇出时贴文可见性尚未就绪：调用方持久化未完成即触发了
// 扇出，应由调用方的重试机制整体重试
var ErrRaceCondition = errors.New("fanout: status visibility not yet resolved")

// RuleEvaluationError 单条天线规则求值失败（如非法正则）。
// 按天线隔离：跳过该天线，不中断其余匹配
type RuleEvaluationError struct {
	AntennaID string
	Err       error
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("antenna %s: rule evaluation failed: %v", e.AntennaID, e.Err)
}

func (e *RuleEvaluationError) Unwrap() error { return e.Err }
