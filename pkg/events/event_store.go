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
	"go.uber.org/zap"

	"github.com/apache/yunikorn-placement/pkg/log"
)

const DefaultStoreSize = 10000

// EventStore keeps the most recent events in memory for the enclosing process to collect.
type EventStore struct {
	buffer *eventRingBuffer
}

func NewEventStore(size uint64) *EventStore {
	if size == 0 {
		size = DefaultStoreSize
	}
	return &EventStore{
		buffer: newEventRingBuffer(size),
	}
}

// Publish stores the record, the oldest record is dropped when the store is full.
func (es *EventStore) Publish(record *EventRecord) {
	if record == nil {
		return
	}
	es.buffer.Add(record)
	if log.IsDebugEnabled() {
		log.Log(log.Events).Debug("event published",
			zap.Uint64("id", record.ID),
			zap.Stringer("type", record.Type),
			zap.Stringer("change", record.ChangeType),
			zap.String("objectID", record.ObjectID),
			zap.String("referenceID", record.ReferenceID),
			zap.String("message", record.Message))
	}
}

func (es *EventStore) GetEventsFromID(id, count uint64) ([]*EventRecord, uint64) {
	return es.buffer.GetEventsFromID(id, count)
}

func (es *EventStore) GetRecentEvents(count uint64) []*EventRecord {
	return es.buffer.GetRecentEntries(count)
}

func (es *EventStore) GetLastEventID() uint64 {
	return es.buffer.GetLastEventID()
}

// FindByObject returns the stored records for one object, oldest first.
func (es *EventStore) FindByObject(objectID string) []*EventRecord {
	var found []*EventRecord
	for _, r := range es.buffer.GetRecentEntries(es.buffer.capacity) {
		if r.ObjectID == objectID || r.ReferenceID == objectID {
			found = append(found, r)
		}
	}
	return found
}
