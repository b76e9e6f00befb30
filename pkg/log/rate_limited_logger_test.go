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
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
	"gotest.tools/v3/assert"
)

type logMessage struct {
	Level   string `json:"L"`
	Message string `json:"M"`
	JobID   string `json:"jobID"`
}

func newBufferedKeyedLogger(buf *bytes.Buffer, every time.Duration) *KeyedLogger {
	zapLogger := zap.New(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.AddSync(buf),
			zap.NewAtomicLevelAt(zap.InfoLevel),
		),
	)
	return &KeyedLogger{
		logger:   zapLogger,
		every:    every,
		limiters: make(map[string]*rate.Limiter),
	}
}

func readMessages(t *testing.T, buf *bytes.Buffer) []logMessage {
	t.Helper()
	var messages []logMessage
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var msg logMessage
		assert.NilError(t, json.Unmarshal([]byte(line), &msg), "failed to unmarshal log line: %s", line)
		messages = append(messages, msg)
	}
	return messages
}

func TestKeyedLoggerOncePerKey(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newBufferedKeyedLogger(buf, time.Minute)
	for i := 0; i < 5; i++ {
		logger.Warn("job-1", "no resources", zap.String("jobID", "job-1"))
		logger.Warn("job-2", "no resources", zap.String("jobID", "job-2"))
	}
	messages := readMessages(t, buf)
	assert.Equal(t, len(messages), 2)
	assert.Equal(t, messages[0].Level, "WARN")
	assert.Equal(t, messages[0].JobID, "job-1")
	assert.Equal(t, messages[1].JobID, "job-2")
	assert.Equal(t, messages[1].Message, "no resources")
}

func TestKeyedLoggerLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newBufferedKeyedLogger(buf, time.Minute)
	// debug is below the core level but still uses the slot of the key
	logger.Debug("job-1", "hidden")
	logger.Info("job-1", "limited")
	logger.Info("job-2", "shown")
	messages := readMessages(t, buf)
	assert.Equal(t, len(messages), 1)
	assert.Equal(t, messages[0].Message, "shown")
}

func TestKeyedLoggerPrune(t *testing.T) {
	logger := newBufferedKeyedLogger(&bytes.Buffer{}, time.Millisecond)
	for i := 0; i < 10; i++ {
		logger.allow(string(rune('a' + i)))
	}
	assert.Equal(t, len(logger.limiters), 10)
	logger.prune(time.Now().Add(time.Second))
	assert.Equal(t, len(logger.limiters), 0)
}
