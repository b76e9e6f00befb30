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
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gotest.tools/v3/assert"
)

// This test sets the global zap logger. This must be undone to make sure no side
// effects on other tests are caused by running this test.
func TestIsNopLogger(t *testing.T) {
	defer resetGlobals()

	testLogger, err := zap.NewDevelopment()
	assert.NilError(t, err, "dev logger init failed")
	assert.Equal(t, false, isNopLogger(testLogger))

	testLogger = zap.NewNop()
	assert.Equal(t, true, isNopLogger(testLogger))

	testLogger = zap.L()
	assert.Equal(t, true, isNopLogger(testLogger))

	testLogger, err = zap.NewProduction()
	assert.NilError(t, err, "prod logger init failed")
	zap.ReplaceGlobals(testLogger)
	assert.Equal(t, false, isNopLogger(zap.L()))
}

func TestCreateConfig(t *testing.T) {
	defer resetGlobals()

	zapConfig := createConfig()
	localLogger, err := zapConfig.Build()
	assert.NilError(t, err, "default config logger create failed")
	assert.Equal(t, false, localLogger.Core().Enabled(zap.DebugLevel))
	assert.Equal(t, true, localLogger.Core().Enabled(zap.InfoLevel))
}

func TestNamedLoggerCached(t *testing.T) {
	defer resetGlobals()

	first := Log(Reserve)
	assert.Assert(t, first != nil)
	assert.Assert(t, first == Log(Reserve), "logger should be cached per handle")
	assert.Assert(t, Log(nil) == Log(Core), "nil handle should map to core")
}

func TestParseLevels(t *testing.T) {
	defer resetGlobals()

	assert.NilError(t, ParseLevels("preempt=warn, gate=error"))
	assert.Equal(t, false, Log(Preempt).Core().Enabled(zapcore.InfoLevel))
	assert.Equal(t, true, Log(Preempt).Core().Enabled(zapcore.WarnLevel))
	assert.Equal(t, false, Log(Gate).Core().Enabled(zapcore.WarnLevel))

	assert.ErrorContains(t, ParseLevels("unknown=debug"), "unknown logger")
	assert.ErrorContains(t, ParseLevels("preempt"), "invalid log level")
	assert.Assert(t, ParseLevels("preempt=loud") != nil)
}
