/*
 Licensed to the Apache Software Foundation (ASF) under one
 or more contributor license agreements.  See the NOTICE file
 distributed with this work for additional information
 regarding copyright ownership.  The ASF licenses this file
 to you under the Apache License, Version 2.0 (the
 "License"); you may not use this file except in compliance
 with the License.  You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package log

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerHandle identifies a named sub-logger of the placement core.
type LoggerHandle struct {
	id   int
	name string
}

// Named loggers, the name is used as the zap logger name and as the key for per-handle levels.
var (
	Core     = &LoggerHandle{id: 0, name: "core"}
	Config   = &LoggerHandle{id: 1, name: "config"}
	Nodeset  = &LoggerHandle{id: 2, name: "nodeset"}
	Preempt  = &LoggerHandle{id: 3, name: "preempt"}
	Reserve  = &LoggerHandle{id: 4, name: "reserve"}
	Gate     = &LoggerHandle{id: 5, name: "gate"}
	Calendar = &LoggerHandle{id: 6, name: "calendar"}
	Objects  = &LoggerHandle{id: 7, name: "objects"}
	Events   = &LoggerHandle{id: 8, name: "events"}
)

var handles = []*LoggerHandle{Core, Config, Nodeset, Preempt, Reserve, Gate, Calendar, Objects, Events}

var (
	once    sync.Once
	lock    sync.RWMutex
	logger  *zap.Logger
	config  *zap.Config
	aLevel  *zap.AtomicLevel
	loggers = make([]*zap.Logger, len(handles))
	levels  = make(map[string]zapcore.Level)
)

// Log returns the logger for the handle. The root logger is created on first use.
func Log(handle *LoggerHandle) *zap.Logger {
	once.Do(initLogger)
	if handle == nil {
		handle = Core
	}
	lock.RLock()
	cached := loggers[handle.id]
	lock.RUnlock()
	if cached != nil {
		return cached
	}
	lock.Lock()
	defer lock.Unlock()
	if loggers[handle.id] == nil {
		loggers[handle.id] = createLogger(handle)
	}
	return loggers[handle.id]
}

func initLogger() {
	lock.Lock()
	defer lock.Unlock()
	if logger = zap.L(); isNopLogger(logger) {
		// no global logger set by the enclosing process: create our own
		config = createConfig()
		var err error
		logger, err = config.Build()
		// this should really not happen so just write to stdout and set a Nop logger
		if err != nil {
			fmt.Printf("Logging disabled, logger init failed with error: %v\n", err)
			logger = zap.NewNop()
		}
	}
}

func createLogger(handle *LoggerHandle) *zap.Logger {
	named := logger.Named(handle.name)
	level, ok := levels[handle.name]
	if !ok {
		return named
	}
	return named.WithOptions(zap.WrapCore(func(inner zapcore.Core) zapcore.Core {
		return newHandleCore(inner, level)
	}))
}

// SetHandleLevel sets a minimum level for one named logger. Levels below the
// root logger level are never logged.
func SetHandleLevel(handle *LoggerHandle, level zapcore.Level) {
	once.Do(initLogger)
	lock.Lock()
	defer lock.Unlock()
	levels[handle.name] = level
	loggers[handle.id] = nil
}

// ParseLevels reads a comma separated list of name=level pairs, i.e. "preempt=debug,gate=warn".
func ParseLevels(definition string) error {
	for _, part := range strings.Split(definition, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return fmt.Errorf("invalid log level definition %q", part)
		}
		handle := handleByName(kv[0])
		if handle == nil {
			return fmt.Errorf("unknown logger %q", kv[0])
		}
		level, err := zapcore.ParseLevel(kv[1])
		if err != nil {
			return err
		}
		SetHandleLevel(handle, level)
	}
	return nil
}

func handleByName(name string) *LoggerHandle {
	for _, h := range handles {
		if h.name == name {
			return h
		}
	}
	return nil
}

func IsDebugEnabled() bool {
	if logger == nil {
		// when under development mode
		return true
	}
	return logger.Core().Enabled(zapcore.DebugLevel)
}

// Returns true if the logger is a noop.
// Logger is a noop means the logger has not been initialized yet.
// This usually means a global logger is not set in the given context,
// see more at zap.ReplaceGlobals(). If the host process presets a global
// logger the placement core simply reuses it.
func isNopLogger(logger *zap.Logger) bool {
	return reflect.DeepEqual(zap.NewNop(), logger)
}

// Visible by tests
func InitAndSetLevel(level zapcore.Level) {
	once.Do(initLogger)
	if config != nil {
		config.Level.SetLevel(level)
	}
}

func GetAtomicLevel() *zap.AtomicLevel {
	return aLevel
}

// Create a log config to keep full control over
// LogLevel set to INFO, Encodes for console, Writes to stderr,
// Print stack traces for messages at WarnLevel and above
func createConfig() *zap.Config {
	atomicLevel := zap.NewAtomicLevelAt(zap.InfoLevel)
	aLevel = &atomicLevel

	return &zap.Config{
		Level:       atomicLevel,
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "message",
			LevelKey:       "level",
			TimeKey:        "time",
			NameKey:        "name",
			CallerKey:      "caller",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// reset the global vars and the global logger in zap
// Visible by tests
func resetGlobals() {
	lock.Lock()
	defer lock.Unlock()
	logger = nil
	config = nil
	once = sync.Once{}
	loggers = make([]*zap.Logger, len(handles))
	levels = make(map[string]zapcore.Level)
	zap.ReplaceGlobals(zap.NewNop())
}
