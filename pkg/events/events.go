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

package events

import (
	"fmt"
	"time"
)

type RecordType int

const (
	TypeJob RecordType = iota
	TypeReservation
	TypeNode
	TypePartition
)

func (t RecordType) String() string {
	return [...]string{"JOB", "RESERVATION", "NODE", "PARTITION"}[t]
}

type ChangeType int

const (
	ChangeNone ChangeType = iota
	ChangeAdd
	ChangeRemove
	ChangeSet
	ChangeFail
)

func (c ChangeType) String() string {
	return [...]string{"NONE", "ADD", "REMOVE", "SET", "FAIL"}[c]
}

// EventRecord is one notification from the placement core: a reservation created or released,
// a hold placed on a job, a reservation delayed or failing its QOS trigger threshold.
type EventRecord struct {
	ID          uint64
	Type        RecordType
	ObjectID    string
	ReferenceID string
	Message     string
	ChangeType  ChangeType
	Detail      string
	Timestamp   time.Time
}

func (r *EventRecord) String() string {
	return fmt.Sprintf("%s %s %s ref=%s: %s %s", r.Type, r.ChangeType, r.ObjectID, r.ReferenceID, r.Message, r.Detail)
}

// Sink receives event records. Publishing is fire-and-forget and must never fail or block the caller.
type Sink interface {
	Publish(record *EventRecord)
}

type nopSink struct{}

func (nopSink) Publish(*EventRecord) {}

// NopSink drops every event.
var NopSink Sink = nopSink{}

const Empty = ""

func createEventRecord(recordType RecordType, objectID, referenceID, message string, changeType ChangeType, detail string) *EventRecord {
	return &EventRecord{
		Type:        recordType,
		ObjectID:    objectID,
		ReferenceID: referenceID,
		Message:     message,
		ChangeType:  changeType,
		Detail:      detail,
		Timestamp:   time.Now(),
	}
}

func CreateJobEventRecord(jobID, message string, changeType ChangeType, detail string) *EventRecord {
	return createEventRecord(TypeJob, jobID, Empty, message, changeType, detail)
}

func CreateReservationEventRecord(rsvID, jobID, message string, changeType ChangeType, detail string) *EventRecord {
	return createEventRecord(TypeReservation, rsvID, jobID, message, changeType, detail)
}

func CreateNodeEventRecord(nodeID, referenceID, message string, changeType ChangeType) *EventRecord {
	return createEventRecord(TypeNode, nodeID, referenceID, message, changeType, Empty)
}

func CreatePartitionEventRecord(partition, referenceID, message string, changeType ChangeType) *EventRecord {
	return createEventRecord(TypePartition, partition, referenceID, message, changeType, Empty)
}
