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
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// limiters kept before idle ones are dropped
const maxLimiterKeys = 1024

// KeyedLogger logs a message at most once per interval for each key, i.e. once per job
// for a message that repeats every scheduling iteration.
type KeyedLogger struct {
	logger   *zap.Logger
	every    time.Duration
	lock     sync.Mutex
	limiters map[string]*rate.Limiter
}

func RateLimitedLog(handle *LoggerHandle, every time.Duration) *KeyedLogger {
	return &KeyedLogger{
		logger:   Log(handle),
		every:    every,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (kl *KeyedLogger) allow(key string) bool {
	kl.lock.Lock()
	defer kl.lock.Unlock()
	limiter, ok := kl.limiters[key]
	if !ok {
		if len(kl.limiters) >= maxLimiterKeys {
			kl.prune(time.Now())
		}
		limiter = rate.NewLimiter(rate.Every(kl.every), 1)
		kl.limiters[key] = limiter
	}
	return limiter.Allow()
}

// prune drops the limiters that would allow the next message anyway.
func (kl *KeyedLogger) prune(now time.Time) {
	for key, limiter := range kl.limiters {
		if limiter.TokensAt(now) >= 1 {
			delete(kl.limiters, key)
		}
	}
}

func (kl *KeyedLogger) Debug(key, msg string, fields ...zap.Field) {
	if kl.allow(key) {
		kl.logger.Debug(msg, fields...)
	}
}

func (kl *KeyedLogger) Info(key, msg string, fields ...zap.Field) {
	if kl.allow(key) {
		kl.logger.Info(msg, fields...)
	}
}

func (kl *KeyedLogger) Warn(key, msg string, fields ...zap.Field) {
	if kl.allow(key) {
		kl.logger.Warn(msg, fields...)
	}
}
