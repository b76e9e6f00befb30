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
	"sync"
)

// eventRingBuffer A circular buffer of event records.
//
// Entries are never removed, once the buffer is full the oldest entry is overwritten.
// Every record gets a sequence number as its ID, the slice position of an ID is ID modulo capacity.
type eventRingBuffer struct {
	events   []*EventRecord
	capacity uint64 // capacity of the buffer, never changes
	head     uint64 // position of the next element
	full     bool   // once full the buffer stays full
	id       uint64 // ID of the next record

	sync.RWMutex
}

// Add adds an event to the ring buffer and sets its ID. If the buffer is full, the oldest element is overwritten.
// This method never fails.
func (e *eventRingBuffer) Add(event *EventRecord) {
	e.Lock()
	defer e.Unlock()

	event.ID = e.id
	e.events[e.head] = event
	if !e.full {
		e.full = e.head == e.capacity-1
	}
	e.head = (e.head + 1) % e.capacity
	e.id++
}

// GetEventsFromID returns at most count records starting at the record with the given ID, and the lowest
// ID still in the buffer. An ID that is no longer or not yet stored returns nil.
func (e *eventRingBuffer) GetEventsFromID(id uint64, count uint64) ([]*EventRecord, uint64) {
	e.RLock()
	defer e.RUnlock()
	lowest := e.getLowestID()
	if id < lowest || id >= e.id {
		return nil, lowest
	}
	return e.collect(id, min(count, e.id-id)), lowest
}

// GetRecentEntries returns the last count records, oldest first.
func (e *eventRingBuffer) GetRecentEntries(count uint64) []*EventRecord {
	e.RLock()
	defer e.RUnlock()
	stored := e.id - e.getLowestID()
	if count > stored {
		count = stored
	}
	return e.collect(e.id-count, count)
}

// GetLastEventID returns the ID the next record will get.
func (e *eventRingBuffer) GetLastEventID() uint64 {
	e.RLock()
	defer e.RUnlock()
	return e.id
}

func (e *eventRingBuffer) collect(from, count uint64) []*EventRecord {
	dst := make([]*EventRecord, 0, count)
	for i := uint64(0); i < count; i++ {
		dst = append(dst, e.events[(from+i)%e.capacity])
	}
	return dst
}

func (e *eventRingBuffer) getLowestID() uint64 {
	if !e.full {
		return 0
	}
	return e.id - e.capacity
}

func newEventRingBuffer(capacity uint64) *eventRingBuffer {
	if capacity == 0 {
		capacity = 1
	}
	return &eventRingBuffer{
		capacity: capacity,
		events:   make([]*EventRecord, capacity),
	}
}
