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

package objects

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestNodeListBasics(t *testing.T) {
	nodes := newProcNodes(3, 4)
	var nl NodeList
	assert.Assert(t, nl.IsEmpty())
	nl.Add(nodes[0], 2)
	nl.Add(nodes[1], 3)
	nl.Add(nodes[0], 1)
	assert.Equal(t, nl.NodeCount(), 2)
	assert.Equal(t, nl.TaskCount(), 6)
	assert.Equal(t, nl.Get("node-1"), 3)
	assert.Equal(t, nl.Get("node-3"), 0)
	assert.Assert(t, nl.Contains("node-2"))
	assert.Equal(t, nl.String(), "[node-1:3,node-2:3]")
	assert.DeepEqual(t, nl.IDs(), []string{"node-1", "node-2"})
}

func TestNodeListRetain(t *testing.T) {
	nodes := newProcNodes(4, 4)
	var nl NodeList
	for i, n := range nodes {
		nl.Add(n, i+1)
	}
	snapshot := nl.Clone()
	nl.Retain(func(nt NodeTask) bool {
		return nt.TaskCount%2 == 0
	})
	assert.DeepEqual(t, nl.IDs(), []string{"node-2", "node-4"})
	// the clone is not affected by the in place filter
	assert.Equal(t, snapshot.NodeCount(), 4)
	nl.Replace(snapshot)
	assert.Equal(t, nl.NodeCount(), 4)
	nl.Clear()
	assert.Assert(t, nl.IsEmpty())
	assert.Equal(t, snapshot.TaskCount(), 10)
}
