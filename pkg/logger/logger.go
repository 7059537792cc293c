package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	global *zap.Logger
	once   sync.Once
)

// Init 初始化全局 logger；mode=release 时使用生产配置
func Init(mode string) error {
	var err error
	once.Do(func() {
		if mode == "release" {
			global, err = zap.NewProduction()
		} else {
			global, err = zap.NewDevelopment()
		}
	})
	return err
}

func l() *zap.Logger {
	if global == nil {
		// 未显式 Init（测试、bench）时退化为 Nop
		return zap.NewNop()
	}
	return global
}

func Debug(msg string, fields ...zap.Field) { l().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { l().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { l().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { l().Error(msg, fields...) }

// Sync 刷新缓冲日志（进程退出前调用）
func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}
