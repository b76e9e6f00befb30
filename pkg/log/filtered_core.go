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

import "go.uber.org/zap/zapcore"

// handleCore drops the entries below the minimum level set for one named logger.
// Everything else is decided by the wrapped core.
type handleCore struct {
	zapcore.Core
	min zapcore.LevelEnabler
}

var _ zapcore.Core = (*handleCore)(nil)

func newHandleCore(inner zapcore.Core, min zapcore.LevelEnabler) zapcore.Core {
	return &handleCore{Core: inner, min: min}
}

func (c *handleCore) Enabled(level zapcore.Level) bool {
	return c.min.Enabled(level) && c.Core.Enabled(level)
}

func (c *handleCore) With(fields []zapcore.Field) zapcore.Core {
	return newHandleCore(c.Core.With(fields), c.min)
}

func (c *handleCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.min.Enabled(entry.Level) {
		return ce
	}
	return c.Core.Check(entry, ce)
}
