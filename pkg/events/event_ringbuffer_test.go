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
	"testing"

	"gotest.tools/v3/assert"
)

func TestRingBuffer_New(t *testing.T) {
	buffer := newEventRingBuffer(10)

	assert.Equal(t, uint64(10), buffer.capacity)
	assert.Equal(t, false, buffer.full)
	assert.Equal(t, uint64(1), newEventRingBuffer(0).capacity)
}

func TestRingBuffer_Add(t *testing.T) {
	buffer := newEventRingBuffer(10)
	populate(buffer, 4)

	assert.Equal(t, uint64(4), buffer.head)
	assert.Equal(t, false, buffer.full)
	assert.Equal(t, uint64(4), buffer.GetLastEventID())
}

func TestRingBuffer_Add_WhenFull(t *testing.T) {
	buffer := newEventRingBuffer(10)
	populate(buffer, 13)

	assert.Equal(t, uint64(3), buffer.head)
	assert.Equal(t, true, buffer.full)
	assert.Equal(t, uint64(3), buffer.getLowestID())
}

func TestGetRecentEntries(t *testing.T) {
	buffer := newEventRingBuffer(20)
	assert.Equal(t, 0, len(buffer.GetRecentEntries(3)))

	populate(buffer, 1)
	verifyRecords(t, 0, 0, buffer.GetRecentEntries(1))

	buffer = newEventRingBuffer(20)
	populate(buffer, 10)
	verifyRecords(t, 7, 9, buffer.GetRecentEntries(3))
	// count too high
	verifyRecords(t, 0, 9, buffer.GetRecentEntries(15))

	// wrapped
	buffer = newEventRingBuffer(20)
	populate(buffer, 23)
	verifyRecords(t, 18, 22, buffer.GetRecentEntries(5))
	buffer = newEventRingBuffer(10)
	populate(buffer, 15)
	verifyRecords(t, 5, 14, buffer.GetRecentEntries(20))
}

func TestGetEventsFromID(t *testing.T) {
	buffer := newEventRingBuffer(20)
	records, lowest := buffer.GetEventsFromID(0, 10)
	assert.Equal(t, 0, len(records))
	assert.Equal(t, uint64(0), lowest)

	populate(buffer, 10)
	records, lowest = buffer.GetEventsFromID(5, 100)
	assert.Equal(t, uint64(0), lowest)
	verifyRecords(t, 5, 9, records)
	records, _ = buffer.GetEventsFromID(5, 2)
	verifyRecords(t, 5, 6, records)

	// wrapped twice
	buffer = newEventRingBuffer(20)
	populate(buffer, 50)
	records, lowest = buffer.GetEventsFromID(38, 100)
	assert.Equal(t, uint64(30), lowest)
	verifyRecords(t, 38, 49, records)
}

func TestGetEventsFromID_NotFound(t *testing.T) {
	buffer := newEventRingBuffer(20)
	populate(buffer, 50)
	// too low, overwritten
	records, lowest := buffer.GetEventsFromID(18, 10)
	assert.Equal(t, 0, len(records))
	assert.Equal(t, uint64(30), lowest)
	// too high, not yet stored
	records, _ = buffer.GetEventsFromID(311, 10)
	assert.Equal(t, 0, len(records))
}

func populate(buffer *eventRingBuffer, count int) {
	for i := 0; i < count; i++ {
		buffer.Add(&EventRecord{ObjectID: "job"})
	}
}

func verifyRecords(t *testing.T, start, stop uint64, records []*EventRecord) {
	t.Helper()
	assert.Equal(t, int(stop-start+1), len(records))
	for i, r := range records {
		assert.Equal(t, start+uint64(i), r.ID)
	}
}
