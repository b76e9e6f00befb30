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
	"fmt"
	"regexp"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/apache/yunikorn-placement/pkg/log"
)

const DefaultPartition = "default"

// Partition, QOS and bucket names: allow upper and lower case, digits, dash, dot and underscore.
var NameRegExp = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)

var (
	validModes              = []string{ModeNormal, ModeMonitor, ModeTest}
	validBackfillPolicies   = []string{BackfillFirstFit, BackfillBestFit, BackfillPreempt, BackfillNone}
	validReservationPolicys = []string{ReservationDefault, ReservationHighest, ReservationCurrentHighest, ReservationNever}
	validThresholdTypes     = []string{ThresholdNone, ThresholdBypass, ThresholdQueueTime, ThresholdXFactor}
	validAllocPolicies      = []string{AllocFirstAvailable, AllocPriority, AllocMinResource, AllocMaxBalance}
	validSetTypes           = []string{SetTypeNone, SetTypeClass, SetTypeFeature}
	validSelections         = []string{SelectNone, SelectAnyOf, SelectOneOf, SelectFirstOf}
	validSetPriorities      = []string{SetPriorityAffinity, SetPriorityFirstFit, SetPriorityBestFit,
		SetPriorityWorstFit, SetPriorityMinLoss, SetPriorityBestResource}
)

// Validate checks the whole config and reports every problem found.
// A valid config is finalised: a default partition and a default QOS bucket are added when missing.
func Validate(conf *PlacementConfig) error {
	if conf == nil {
		return fmt.Errorf("config is nil")
	}
	var result *multierror.Error
	result = multierror.Append(result, checkScheduler(&conf.Scheduler))
	result = multierror.Append(result, checkPartitions(conf))
	result = multierror.Append(result, checkQOS(conf))
	result = multierror.Append(result, checkBuckets(conf))
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	if len(conf.Partitions) == 0 {
		log.Log(log.Config).Debug("no partitions defined, adding default partition")
		conf.Partitions = []PartitionConfig{{Name: DefaultPartition}}
	}
	if len(conf.QOSBuckets) == 0 {
		conf.QOSBuckets = []QOSBucketConfig{{Name: DefaultBucket, RsvDepth: DefaultBucketRsvDepth, QOS: []string{AllQOS}}}
	}
	return nil
}

func checkOneOf(field, value string, allowed []string, allowEmpty bool) error {
	if value == "" && allowEmpty {
		return nil
	}
	for _, a := range allowed {
		if a == value {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q, must be one of %v", field, value, allowed)
}

func checkScheduler(s *SchedulerSection) error {
	var result *multierror.Error
	result = multierror.Append(result, checkOneOf("mode", s.Mode, validModes, false))
	for name, d := range map[string]int64{
		"rmPollInterval":              int64(s.RMPollInterval),
		"reservationRetryInterval":    int64(s.ReservationRetryInterval),
		"deferTime":                   int64(s.DeferTime),
		"horizon":                     int64(s.Horizon),
		"serialJobPreemptSearchDepth": int64(s.SerialJobPreemptSearchDepth),
		"maxRangeProbes":              int64(s.MaxRangeProbes),
		"maxNodeSets":                 int64(s.MaxNodeSets),
	} {
		if d < 0 {
			result = multierror.Append(result, fmt.Errorf("scheduler %s cannot be negative", name))
		}
	}
	if s.Horizon == 0 {
		result = multierror.Append(result, fmt.Errorf("scheduler horizon must be positive"))
	}
	result = multierror.Append(result, checkOneOf("backfill policy", s.BackfillPolicy, validBackfillPolicies, false))
	result = multierror.Append(result, checkOneOf("reservation policy", s.ReservationPolicy, validReservationPolicys, false))
	result = multierror.Append(result, checkThreshold(s.ReservationThreshold))
	result = multierror.Append(result, checkOneOf("node allocation policy", s.NodeAllocationPolicy, validAllocPolicies, false))
	result = multierror.Append(result, checkNodeSet(&s.NodeSet))
	if s.SoftLimits.MaxProcsPerUser < 0 {
		result = multierror.Append(result, fmt.Errorf("scheduler maxProcsPerUser cannot be negative"))
	}
	return result.ErrorOrNil()
}

func checkThreshold(t ThresholdConfig) error {
	if err := checkOneOf("reservation threshold type", t.Type, validThresholdTypes, true); err != nil {
		return err
	}
	if t.Value < 0 {
		return fmt.Errorf("reservation threshold value cannot be negative")
	}
	return nil
}

func checkNodeSet(ns *NodeSetConfig) error {
	var result *multierror.Error
	result = multierror.Append(result, checkOneOf("node set type", ns.Type, validSetTypes, true))
	result = multierror.Append(result, checkOneOf("node set selection", ns.Selection, validSelections, true))
	result = multierror.Append(result, checkOneOf("node set priority", ns.Priority, validSetPriorities, true))
	seen := make(map[string]bool)
	for _, name := range ns.List {
		if seen[name] {
			result = multierror.Append(result, fmt.Errorf("duplicate node set %q", name))
		}
		seen[name] = true
	}
	for depth := range ns.Nested {
		if depth < 0 {
			result = multierror.Append(result, fmt.Errorf("nested node set depth %d cannot be negative", depth))
		}
	}
	if ns.Selection != "" && ns.Selection != SelectNone && (ns.Type == "" || ns.Type == SetTypeNone) {
		result = multierror.Append(result, fmt.Errorf("node set selection %q requires a node set type", ns.Selection))
	}
	return result.ErrorOrNil()
}

func checkPartitions(conf *PlacementConfig) error {
	var result *multierror.Error
	names := make(map[string]bool)
	for i := range conf.Partitions {
		p := &conf.Partitions[i]
		if !NameRegExp.MatchString(p.Name) {
			result = multierror.Append(result, fmt.Errorf("invalid partition name %q", p.Name))
			continue
		}
		if names[p.Name] {
			result = multierror.Append(result, fmt.Errorf("duplicate partition name %q", p.Name))
		}
		names[p.Name] = true
		log.Log(log.Config).Debug("checking partition",
			zap.String("partitionName", p.Name))
		result = multierror.Append(result, checkOneOf("backfill policy", p.BackfillPolicy, validBackfillPolicies, true))
		result = multierror.Append(result, checkOneOf("reservation policy", p.ReservationPolicy, validReservationPolicys, true))
		result = multierror.Append(result, checkThreshold(p.ReservationThreshold))
		result = multierror.Append(result, checkOneOf("node allocation policy", p.NodeAllocationPolicy, validAllocPolicies, true))
		if p.NodeSet != nil {
			result = multierror.Append(result, checkNodeSet(p.NodeSet))
		}
		if p.BucketRsvDepth < 0 {
			result = multierror.Append(result, fmt.Errorf("partition %s bucketRsvDepth cannot be negative", p.Name))
		}
		if p.SoftLimits.MaxProcsPerUser < 0 {
			result = multierror.Append(result, fmt.Errorf("partition %s maxProcsPerUser cannot be negative", p.Name))
		}
	}
	return result.ErrorOrNil()
}

func checkQOS(conf *PlacementConfig) error {
	var result *multierror.Error
	names := make(map[string]bool)
	for _, q := range conf.QOS {
		if !NameRegExp.MatchString(q.Name) || q.Name == AllQOS {
			result = multierror.Append(result, fmt.Errorf("invalid QOS name %q", q.Name))
			continue
		}
		if names[q.Name] {
			result = multierror.Append(result, fmt.Errorf("duplicate QOS name %q", q.Name))
		}
		names[q.Name] = true
		if q.QueueTimeRsvThreshold < 0 || q.QueueTimeTriggerThreshold < 0 || q.XFactorRsvThreshold < 0 {
			result = multierror.Append(result, fmt.Errorf("QOS %s thresholds cannot be negative", q.Name))
		}
	}
	return result.ErrorOrNil()
}

func checkBuckets(conf *PlacementConfig) error {
	var result *multierror.Error
	qos := make(map[string]bool)
	for _, q := range conf.QOS {
		qos[q.Name] = true
	}
	names := make(map[string]bool)
	for _, b := range conf.QOSBuckets {
		if !NameRegExp.MatchString(b.Name) {
			result = multierror.Append(result, fmt.Errorf("invalid QOS bucket name %q", b.Name))
			continue
		}
		if names[b.Name] {
			result = multierror.Append(result, fmt.Errorf("duplicate QOS bucket name %q", b.Name))
		}
		names[b.Name] = true
		if b.RsvDepth < 0 {
			result = multierror.Append(result, fmt.Errorf("QOS bucket %s rsvDepth cannot be negative", b.Name))
		}
		for _, q := range b.QOS {
			if q != AllQOS && !qos[q] {
				result = multierror.Append(result, fmt.Errorf("QOS bucket %s references unknown QOS %q", b.Name, q))
			}
		}
	}
	return result.ErrorOrNil()
}
