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
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/apache/yunikorn-placement/pkg/log"
)

const (
	stringDefaultValue   = "defaultStringValue"
	intDefaultValue      = -1 << 31
	durationDefaultValue = time.Duration(-1 << 62)
)

// The placement configuration: global scheduler settings, the partitions with their node set,
// reservation and allocation policies, the QOS definitions and the QOS reservation buckets.
type PlacementConfig struct {
	Scheduler  SchedulerSection  `yaml:"scheduler,omitempty" json:",omitempty"`
	Partitions []PartitionConfig `yaml:"partitions,omitempty" json:",omitempty"`
	QOS        []QOSConfig       `yaml:"qos,omitempty" json:",omitempty"`
	QOSBuckets []QOSBucketConfig `yaml:"qosBuckets,omitempty" json:",omitempty"`
	Checksum   string            `yaml:"checksum,omitempty" json:",omitempty"`
}

type DefaultValues struct {
	defaultFields []string
}

// Global settings, these act as the partition defaults when a partition does not override them.
type SchedulerSection struct {
	Mode                        string            `yaml:"mode,omitempty" json:",omitempty"`
	RMPollInterval              time.Duration     `yaml:"rmPollInterval,omitempty" json:",omitempty"`
	ReservationRetryInterval    time.Duration     `yaml:"reservationRetryInterval,omitempty" json:",omitempty"`
	DeferTime                   time.Duration     `yaml:"deferTime,omitempty" json:",omitempty"`
	Horizon                     time.Duration     `yaml:"horizon,omitempty" json:",omitempty"`
	SerialJobPreemptSearchDepth int               `yaml:"serialJobPreemptSearchDepth,omitempty" json:",omitempty"`
	MaxRangeProbes              int               `yaml:"maxRangeProbes,omitempty" json:",omitempty"`
	MaxNodeSets                 int               `yaml:"maxNodeSets,omitempty" json:",omitempty"`
	HighThroughput              bool              `yaml:"highThroughput,omitempty" json:",omitempty"`
	PerPartitionScheduling      bool              `yaml:"perPartitionScheduling,omitempty" json:",omitempty"`
	NoJobHoldNoResources        bool              `yaml:"noJobHoldNoResources,omitempty" json:",omitempty"`
	IgnorePreempteePriority     bool              `yaml:"ignorePreempteePriority,omitempty" json:",omitempty"`
	AllowInfiniteWalltimeJobs   bool              `yaml:"allowInfiniteWalltimeJobs,omitempty" json:",omitempty"`
	DisableJobFeasibilityCheck  bool              `yaml:"disableJobFeasibilityCheck,omitempty" json:",omitempty"`
	SharedPartition             string            `yaml:"sharedPartition,omitempty" json:",omitempty"`
	GlobalNode                  string            `yaml:"globalNode,omitempty" json:",omitempty"`
	BackfillPolicy              string            `yaml:"backfillPolicy,omitempty" json:",omitempty"`
	ReservationPolicy           string            `yaml:"reservationPolicy,omitempty" json:",omitempty"`
	ReservationThreshold        ThresholdConfig   `yaml:"reservationThreshold,omitempty" json:",omitempty"`
	NodeAllocationPolicy        string            `yaml:"nodeAllocationPolicy,omitempty" json:",omitempty"`
	NodeSet                     NodeSetConfig     `yaml:"nodeSet,omitempty" json:",omitempty"`
	SoftLimits                  SoftLimitConfig   `yaml:"softLimits,omitempty" json:",omitempty"`
	LogLevels                   string            `yaml:"logLevels,omitempty" json:",omitempty"`
	Properties                  map[string]string `yaml:"properties,omitempty" json:",omitempty"`
	DefaultValues               `yaml:"-"`
}

// The partition object. Empty policy values inherit the scheduler section value.
type PartitionConfig struct {
	Name                 string          `yaml:"name" json:",omitempty"`
	SharedMemory         bool            `yaml:"sharedMemory,omitempty" json:",omitempty"`
	BackfillPolicy       string          `yaml:"backfillPolicy,omitempty" json:",omitempty"`
	ReservationPolicy    string          `yaml:"reservationPolicy,omitempty" json:",omitempty"`
	ReservationThreshold ThresholdConfig `yaml:"reservationThreshold,omitempty" json:",omitempty"`
	BucketRsvDepth       int             `yaml:"bucketRsvDepth,omitempty" json:",omitempty"`
	NodeAllocationPolicy string          `yaml:"nodeAllocationPolicy,omitempty" json:",omitempty"`
	NodeSet              *NodeSetConfig  `yaml:"nodeSet,omitempty" json:",omitempty"`
	SoftLimits           SoftLimitConfig `yaml:"softLimits,omitempty" json:",omitempty"`
	DefaultValues        `yaml:"-"`
}

// Reservation trigger: none, bypass (count), queuetime (seconds) or xfactor.
type ThresholdConfig struct {
	Type  string  `yaml:"type,omitempty" json:",omitempty"`
	Value float64 `yaml:"value,omitempty" json:",omitempty"`
}

// Node set definition for a partition:
// - type: the node attribute the sets are built from (class or feature)
// - selection: anyof, oneof or firstof
// - priority: the firstof tie-break policy
// - list: explicit set names, discovered from the candidate nodes when empty
// - nested: per depth list of set names for the nested hierarchy
type NodeSetConfig struct {
	Type       string           `yaml:"type,omitempty" json:",omitempty"`
	Selection  string           `yaml:"selection,omitempty" json:",omitempty"`
	Priority   string           `yaml:"priority,omitempty" json:",omitempty"`
	List       []string         `yaml:"list,omitempty" json:",omitempty"`
	Optional   bool             `yaml:"optional,omitempty" json:",omitempty"`
	SpanEvenly bool             `yaml:"spanEvenly,omitempty" json:",omitempty"`
	Nested     map[int][]string `yaml:"nested,omitempty" json:",omitempty"`
}

type SoftLimitConfig struct {
	MaxProcsPerUser int `yaml:"maxProcsPerUser,omitempty" json:",omitempty"`
}

// The QOS object:
// - noReservation: jobs in this QOS never get a priority reservation
// - queueTimeRsvThreshold and xFactorRsvThreshold: once crossed the job is entitled to a reservation
// - queueTimeTriggerThreshold: a reservation starting later than this after queueing fires a failure event
type QOSConfig struct {
	Name                      string        `yaml:"name" json:",omitempty"`
	NoReservation             bool          `yaml:"noReservation,omitempty" json:",omitempty"`
	QueueTimeRsvThreshold     time.Duration `yaml:"queueTimeRsvThreshold,omitempty" json:",omitempty"`
	XFactorRsvThreshold       float64       `yaml:"xFactorRsvThreshold,omitempty" json:",omitempty"`
	QueueTimeTriggerThreshold time.Duration `yaml:"queueTimeTriggerThreshold,omitempty" json:",omitempty"`
}

// The QOS reservation bucket, limits the outstanding priority reservations for the listed QOS.
type QOSBucketConfig struct {
	Name          string   `yaml:"name" json:",omitempty"`
	RsvDepth      int      `yaml:"rsvDepth" json:",omitempty"`
	QOS           []string `yaml:"qos,omitempty" json:",omitempty"`
	DefaultValues `yaml:"-"`
}

// CheckAndSetDefault checks if the value is the predefined default value.
// If yes, add the lowercase field name to the defaultFields slice and return the supplied default.
// If no, return the value itself
func (i *DefaultValues) CheckAndSetDefault(v interface{}, name string, def interface{}) interface{} {
	insertName := strings.ToLower(name)
	isDefault := false
	switch val := v.(type) {
	case string:
		isDefault = val == stringDefaultValue
	case int:
		isDefault = val == intDefaultValue
	case time.Duration:
		isDefault = val == durationDefaultValue
	}
	if isDefault {
		i.defaultFields = append(i.defaultFields, insertName)
		return def
	}
	return v
}

// IsDefault checks whether the provided fieldName was set from the defaults.
// The comparison is case-insensitive.
func (i *DefaultValues) IsDefault(fieldName string) bool {
	searchedName := strings.ToLower(fieldName)
	for _, f := range i.defaultFields {
		if f == searchedName {
			return true
		}
	}
	return false
}

func (s *SchedulerSection) UnmarshalYAML(unmarshal func(interface{}) error) error {
	s.Mode = stringDefaultValue
	s.RMPollInterval = durationDefaultValue
	s.ReservationRetryInterval = durationDefaultValue
	s.DeferTime = durationDefaultValue
	s.Horizon = durationDefaultValue
	s.SerialJobPreemptSearchDepth = intDefaultValue
	s.MaxRangeProbes = intDefaultValue
	s.MaxNodeSets = intDefaultValue
	s.SharedPartition = stringDefaultValue
	s.BackfillPolicy = stringDefaultValue
	s.ReservationPolicy = stringDefaultValue
	s.NodeAllocationPolicy = stringDefaultValue

	type plain SchedulerSection
	if err := unmarshal((*plain)(s)); err != nil {
		return err
	}
	s.setDefaults()
	return nil
}

func (s *SchedulerSection) setDefaults() {
	s.Mode = s.CheckAndSetDefault(s.Mode, "Mode", ModeNormal).(string) //nolint:errcheck
	s.RMPollInterval = s.CheckAndSetDefault(s.RMPollInterval, "RMPollInterval", DefaultRMPollInterval).(time.Duration) //nolint:errcheck
	s.ReservationRetryInterval = s.CheckAndSetDefault(s.ReservationRetryInterval, "ReservationRetryInterval", DefaultReservationRetryInterval).(time.Duration) //nolint:errcheck
	s.DeferTime = s.CheckAndSetDefault(s.DeferTime, "DeferTime", DefaultDeferTime).(time.Duration) //nolint:errcheck
	s.Horizon = s.CheckAndSetDefault(s.Horizon, "Horizon", DefaultHorizon).(time.Duration) //nolint:errcheck
	s.SerialJobPreemptSearchDepth = s.CheckAndSetDefault(s.SerialJobPreemptSearchDepth, "SerialJobPreemptSearchDepth", DefaultSerialJobPreemptSearchDepth).(int) //nolint:errcheck
	s.MaxRangeProbes = s.CheckAndSetDefault(s.MaxRangeProbes, "MaxRangeProbes", DefaultMaxRangeProbes).(int) //nolint:errcheck
	s.MaxNodeSets = s.CheckAndSetDefault(s.MaxNodeSets, "MaxNodeSets", DefaultMaxNodeSets).(int) //nolint:errcheck
	s.SharedPartition = s.CheckAndSetDefault(s.SharedPartition, "SharedPartition", DefaultSharedPartition).(string) //nolint:errcheck
	s.BackfillPolicy = s.CheckAndSetDefault(s.BackfillPolicy, "BackfillPolicy", BackfillFirstFit).(string) //nolint:errcheck
	s.ReservationPolicy = s.CheckAndSetDefault(s.ReservationPolicy, "ReservationPolicy", ReservationCurrentHighest).(string) //nolint:errcheck
	s.NodeAllocationPolicy = s.CheckAndSetDefault(s.NodeAllocationPolicy, "NodeAllocationPolicy", AllocFirstAvailable).(string) //nolint:errcheck
}

// NewSchedulerSection returns the scheduler section with all defaults applied.
func NewSchedulerSection() SchedulerSection {
	s := SchedulerSection{
		Mode:                        stringDefaultValue,
		RMPollInterval:              durationDefaultValue,
		ReservationRetryInterval:    durationDefaultValue,
		DeferTime:                   durationDefaultValue,
		Horizon:                     durationDefaultValue,
		SerialJobPreemptSearchDepth: intDefaultValue,
		MaxRangeProbes:              intDefaultValue,
		MaxNodeSets:                 intDefaultValue,
		SharedPartition:             stringDefaultValue,
		BackfillPolicy:              stringDefaultValue,
		ReservationPolicy:           stringDefaultValue,
		NodeAllocationPolicy:        stringDefaultValue,
	}
	s.setDefaults()
	return s
}

func (qb *QOSBucketConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	qb.RsvDepth = intDefaultValue

	type plain QOSBucketConfig
	if err := unmarshal((*plain)(qb)); err != nil {
		return err
	}

	qb.RsvDepth = qb.CheckAndSetDefault(qb.RsvDepth, "RsvDepth", DefaultBucketRsvDepth).(int) //nolint:errcheck
	return nil
}

// LoadPlacementConfigFromByteArray parses, validates and finalises the config.
func LoadPlacementConfigFromByteArray(content []byte) (*PlacementConfig, error) {
	conf, err := ParseAndValidateConfig(content)
	if err != nil {
		return nil, err
	}
	// Create a sha256 checksum for this validated config
	SetChecksum(content, conf)
	return conf, err
}

func SetChecksum(content []byte, conf *PlacementConfig) {
	noChecksumContent := GetConfigurationString(content)
	conf.Checksum = fmt.Sprintf("%X", sha256.Sum256([]byte(noChecksumContent)))
}

func ParseAndValidateConfig(content []byte) (*PlacementConfig, error) {
	conf := &PlacementConfig{Scheduler: NewSchedulerSection()}
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true) // Enable strict unmarshaling behavior
	err := decoder.Decode(conf)
	if err != nil && !errors.Is(err, io.EOF) { // empty content may have EOF error, skip it
		log.Log(log.Config).Error("failed to parse placement configuration",
			zap.Error(err))
		return nil, err
	}
	// validate the config
	err = Validate(conf)
	if err != nil {
		log.Log(log.Config).Error("placement configuration validation failed",
			zap.Error(err))
		return nil, err
	}
	return conf, nil
}

func GetConfigurationString(requestBytes []byte) string {
	conf := string(requestBytes)
	checksum := "checksum: "
	checksumLength := 64 + len(checksum)
	if strings.Contains(conf, checksum) {
		checksum += strings.Split(conf, checksum)[1]
		checksum = strings.TrimRight(checksum, "\n")
		if len(checksum) > checksumLength {
			checksum = checksum[:checksumLength]
		}
	}
	return strings.ReplaceAll(conf, checksum, "")
}

// DefaultPlacementConfig contains the default placement configuration; used if no other is provided
var DefaultPlacementConfig = `
partitions:
  - name: default
qosBuckets:
  - name: DEFAULT
    rsvDepth: 1
    qos: [ALL]
`
