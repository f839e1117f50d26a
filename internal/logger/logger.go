package logger

import (
	"fmt"
	"io"
	"log"
)

type logger struct {
	level       Level
	traceLogger *log.Logger
	debugLogger *log.Logger
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
}

func (l *logger) Trace(v ...any) {
	if l.level >= LevelTrace {
		_ = l.traceLogger.Output(2, fmt.Sprintln(v...))
	}
}

func (l *logger) Debug(v ...any) {
	if l.level >= LevelDebug {
		_ = l.debugLogger.Output(2, fmt.Sprintln(v...))
	}
}

func (l *logger) Info(v ...any) {
	if l.level >= LevelInfo {
		_ = l.infoLogger.Output(2, fmt.Sprintln(v...))
	}
}

func (l *logger) Warn(v ...any) {
	if l.level >= LevelWarn {
		_ = l.warnLogger.Output(2, fmt.Sprintln(v...))
	}
}

func (l *logger) Error(v ...any) {
	if l.level >= LevelError {
		_ = l.errorLogger.Output(2, fmt.Sprintln(v...))
	}
}

func (l *logger) Tracef(format string, v ...any) {
	if l.level >= LevelTrace {
		_ = l.traceLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

func (l *logger) Debugf(format string, v ...any) {
	if l.level >= LevelDebug {
		_ = l.debugLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

func (l *logger) Infof(format string, v ...any) {
	if l.level >= LevelInfo {
		_ = l.infoLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

func (l *logger) Warnf(format string, v ...any) {
	if l.level >= LevelWarn {
		_ = l.warnLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

func (l *logger) Errorf(format string, v ...any) {
	if l.level >= LevelError {
		_ = l.errorLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

func NewLogger(level Level, output io.Writer) *logger {
	flag := log.LstdFlags | log.Lshortfile
	return &logger{
		level:       level,
		traceLogger: log.New(output, "TRACE:", flag),
		debugLogger: log.New(output, "DEBUG:", flag),
		infoLogger:  log.New(output, "INFO :", flag),
		warnLogger:  log.New(output, "WARN :", flag),
		errorLogger: log.New(output, "ERROR:", flag),
	}
}
