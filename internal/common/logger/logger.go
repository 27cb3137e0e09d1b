// Package logger 提供全局结构化日志与业务字段
package logger

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dumeirei/affiliate-backend/internal/common/config"
)

var log *zap.Logger

// 输出目标
const (
	OutputStdout = "stdout"
	OutputFile   = "file"
	OutputBoth   = "both"
)

// Init 按配置初始化全局日志器，并替换 zap 的全局实例
func Init(cfg *config.LoggerConfig) error {
	ws, err := newWriteSyncer(cfg)
	if err != nil {
		return err
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), ws, getLogLevel(cfg.Level))
	options := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Caller {
		options = append(options, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	log = zap.New(core, options...)
	zap.ReplaceGlobals(log)
	return nil
}

func newEncoder(format string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000"),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if format == "json" {
		return zapcore.NewJSONEncoder(encoderConfig)
	}
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(encoderConfig)
}

// newWriteSyncer 文件输出使用 lumberjack 按大小滚动
func newWriteSyncer(cfg *config.LoggerConfig) (zapcore.WriteSyncer, error) {
	output := cfg.Output
	if output == "" {
		output = OutputStdout
	}

	var writers []zapcore.WriteSyncer
	if output == OutputStdout || output == OutputBoth {
		writers = append(writers, zapcore.Lock(os.Stdout))
	}
	if output == OutputFile || output == OutputBoth {
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("logger: output %q requires file_path", output)
		}
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}))
	}
	if len(writers) == 0 {
		return nil, fmt.Errorf("logger: unknown output %q", output)
	}
	return zapcore.NewMultiWriteSyncer(writers...), nil
}

// getLogLevel 无法识别的级别按 info 处理
func getLogLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// GetLogger 获取全局日志器，未初始化时使用开发配置
func GetLogger() *zap.Logger {
	if log == nil {
		log, _ = zap.NewDevelopment()
	}
	return log
}

// Named 返回命名子日志器
func Named(name string) *zap.Logger {
	return GetLogger().Named(name)
}

// Sync 刷新缓冲
func Sync() error {
	if log != nil {
		return log.Sync()
	}
	return nil
}

func Debug(msg string, fields ...zap.Field) { GetLogger().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { GetLogger().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { GetLogger().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { GetLogger().Error(msg, fields...) }

// 通用字段
var (
	String = zap.String
	Int    = zap.Int
	Int64  = zap.Int64
	Bool   = zap.Bool
	Any    = zap.Any
	Err    = zap.Error
)

// 业务字段

func UserID(id int64) zap.Field { return zap.Int64("user_id", id) }

func AdminID(id int64) zap.Field { return zap.Int64("admin_id", id) }

func AffiliateID(id int64) zap.Field { return zap.Int64("affiliate_id", id) }

func OrderID(id int64) zap.Field { return zap.Int64("order_id", id) }

func OrderNo(no string) zap.Field { return zap.String("order_no", no) }

// PaymentID 网关支付流水号
func PaymentID(id string) zap.Field { return zap.String("payment_id", id) }

func WithdrawalID(id int64) zap.Field { return zap.Int64("withdrawal_id", id) }

// Amount 金额按十进制字符串输出，避免浮点误差
func Amount(amount fmt.Stringer) zap.Field { return zap.Stringer("amount", amount) }

func Module(name string) zap.Field { return zap.String("module", name) }

func Action(name string) zap.Field { return zap.String("action", name) }

// Elapsed 耗时字段
func Elapsed(d time.Duration) zap.Field { return zap.Duration("elapsed", d) }
