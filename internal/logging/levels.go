package logging

import (
	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug. The planner uses it for raw generator output.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a level name, accepting "trace" in addition to the
// zap level names. Empty means info.
func LevelFromString(level string) (zapcore.Level, error) {
	switch level {
	case "trace":
		return TraceLevel, nil
	case "":
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}
