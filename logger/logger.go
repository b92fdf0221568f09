package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// Logger 全局日志实例
	Logger *logrus.Logger
	// ErrorLogger 错误日志实例
	ErrorLogger *logrus.Logger
)

// LogConfig 日志配置
type LogConfig struct {
	ErrorLogPath string
	InfoLogPath  string
	LogLevel     string
}

// CustomFormatter 自定义日志格式化器
type CustomFormatter struct {
	TimestampFormat string
}

func init() {
	// 未初始化时只输出警告及以上级别到标准错误
	formatter := &CustomFormatter{TimestampFormat: defaultTimestampFormat}
	Logger = newLogger(formatter, logrus.WarnLevel, os.Stderr)
	ErrorLogger = newLogger(formatter, logrus.WarnLevel, os.Stderr)
}

const defaultTimestampFormat = "15:04:05 MST 2006/01/02"

// Format 实现 logrus.Formatter 接口
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	layout := f.TimestampFormat
	if layout == "" {
		layout = defaultTimestampFormat
	}
	timestamp := entry.Time.Format(layout)

	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}

	var fields strings.Builder
	for k, v := range entry.Data {
		fmt.Fprintf(&fields, " %s=%v", k, v)
	}

	logMsg := fmt.Sprintf("[%s] [%s] (%s) %s%s\n",
		timestamp,
		level,
		getCaller(),
		entry.Message,
		fields.String())

	return []byte(logMsg), nil
}

// getCaller 获取调用者信息
func getCaller() string {
	// 跳过日志框架的调用栈，找到实际的调用者
	for i := 2; i < 20; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "sirupsen") ||
			strings.Contains(file, "/logger/logger.go") {
			continue
		}
		funcName := runtime.FuncForPC(pc).Name()
		if idx := strings.LastIndex(funcName, "/"); idx >= 0 {
			funcName = funcName[idx+1:]
		}
		return fmt.Sprintf("%s:%s:%d", filepath.Base(file), funcName, line)
	}
	return "unknown:unknown:0"
}

// ParseLogLevel 解析日志级别字符串为logrus级别
func ParseLogLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

func newLogger(formatter logrus.Formatter, level logrus.Level, out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(formatter)
	l.SetLevel(level)
	l.SetOutput(out)
	return l
}

// InitLogger 初始化日志
func InitLogger(config LogConfig) error {
	formatter := &CustomFormatter{TimestampFormat: defaultTimestampFormat}
	level := ParseLogLevel(config.LogLevel)

	var infoOut io.Writer = os.Stdout
	if config.InfoLogPath != "" {
		f, err := openLogFile(config.InfoLogPath)
		if err != nil {
			return fmt.Errorf("open info log %s: %w", config.InfoLogPath, err)
		}
		infoOut = io.MultiWriter(os.Stdout, f)
	}

	var errorOut io.Writer = os.Stderr
	if config.ErrorLogPath != "" {
		f, err := openLogFile(config.ErrorLogPath)
		if err != nil {
			return fmt.Errorf("open error log %s: %w", config.ErrorLogPath, err)
		}
		errorOut = io.MultiWriter(os.Stderr, f)
	}

	Logger = newLogger(formatter, level, infoOut)
	ErrorLogger = newLogger(formatter, level, errorOut)
	return nil
}

// SetOutput 将两个日志器都重定向到 w，测试中使用
func SetOutput(w io.Writer, level string) {
	Logger.SetOutput(w)
	Logger.SetLevel(ParseLogLevel(level))
	ErrorLogger.SetOutput(w)
	ErrorLogger.SetLevel(ParseLogLevel(level))
}

// openLogFile 打开日志文件
func openLogFile(logPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
}

// WithField 返回带字段的日志条目
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

func Info(args ...interface{}) {
	Logger.Info(args...)
}

func Infof(format string, args ...interface{}) {
	Logger.Infof(format, args...)
}

func Debug(args ...interface{}) {
	Logger.Debug(args...)
}

func Debugf(format string, args ...interface{}) {
	Logger.Debugf(format, args...)
}

func Warn(args ...interface{}) {
	Logger.Warn(args...)
}

func Warnf(format string, args ...interface{}) {
	Logger.Warnf(format, args...)
}

func Error(args ...interface{}) {
	ErrorLogger.Error(args...)
}

func Errorf(format string, args ...interface{}) {
	ErrorLogger.Errorf(format, args...)
}

// IsDebugEnabled 避免在关闭调试时构造昂贵的日志参数
func IsDebugEnabled() bool {
	return Logger.IsLevelEnabled(logrus.DebugLevel)
}
