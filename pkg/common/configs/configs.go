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

package configs

import (
	"sync"
	"time"
)

const (
	PlacementConfigPath        = "placement-config-path"
	DefaultPlacementConfigPath = "/etc/yunikorn"
	DefaultPlacementConfigFile = "placement.yaml"
)

// scheduler modes
const (
	ModeNormal  = "normal"
	ModeMonitor = "monitor"
	ModeTest    = "test"
)

// backfill policies
const (
	BackfillFirstFit = "firstfit"
	BackfillBestFit  = "bestfit"
	BackfillPreempt  = "preempt"
	BackfillNone     = "none"
)

// reservation policies, default inherits the scheduler section
const (
	ReservationDefault        = "default"
	ReservationHighest        = "highest"
	ReservationCurrentHighest = "currenthighest"
	ReservationNever          = "never"
)

// reservation threshold types
const (
	ThresholdNone      = "none"
	ThresholdBypass    = "bypass"
	ThresholdQueueTime = "queuetime"
	ThresholdXFactor   = "xfactor"
)

// node allocation policies
const (
	AllocFirstAvailable = "firstavailable"
	AllocPriority       = "priority"
	AllocMinResource    = "minresource"
	AllocMaxBalance     = "maxbalance"
)

// node set types, selection modes and firstof priorities
const (
	SetTypeNone    = "none"
	SetTypeClass   = "class"
	SetTypeFeature = "feature"

	SelectNone    = "none"
	SelectAnyOf   = "anyof"
	SelectOneOf   = "oneof"
	SelectFirstOf = "firstof"

	SetPriorityAffinity     = "affinity"
	SetPriorityFirstFit     = "firstfit"
	SetPriorityBestFit      = "bestfit"
	SetPriorityWorstFit     = "worstfit"
	SetPriorityMinLoss      = "minloss"
	SetPriorityBestResource = "bestresource"
)

const (
	AllQOS        = "ALL"
	DefaultBucket = "DEFAULT"
)

const (
	DefaultRMPollInterval              = 30 * time.Second
	DefaultReservationRetryInterval    = 60 * time.Second
	DefaultDeferTime                   = time.Hour
	DefaultHorizon                     = 365 * 24 * time.Hour
	DefaultSerialJobPreemptSearchDepth = 64
	DefaultMaxRangeProbes              = 128
	DefaultMaxNodeSets                 = 32
	DefaultSharedPartition             = "SHARED"
	DefaultBucketRsvDepth              = 1
)

var ConfigContext *PlacementConfigContext

func init() {
	ConfigContext = &PlacementConfigContext{
		configs: make(map[string]*PlacementConfig),
		lock:    &sync.RWMutex{},
	}
}

// placement config context provides thread-safe access for the loaded configurations,
// the config is loaded outside the scheduling loop
type PlacementConfigContext struct {
	configs map[string]*PlacementConfig
	lock    *sync.RWMutex
}

func (ctx *PlacementConfigContext) Set(policyGroup string, config *PlacementConfig) {
	ctx.lock.Lock()
	defer ctx.lock.Unlock()
	ctx.configs[policyGroup] = config
}

func (ctx *PlacementConfigContext) Get(policyGroup string) *PlacementConfig {
	ctx.lock.RLock()
	defer ctx.lock.RUnlock()
	return ctx.configs[policyGroup]
}
