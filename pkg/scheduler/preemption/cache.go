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

package preemption

import (
	"github.com/apache/yunikorn-placement/pkg/common/resources"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
)

// cachedNode is a node with the resources held by preemptible jobs on it.
type cachedNode struct {
	node        *objects.Node
	reclaimable *resources.Resource
}

// cacheEntry is the preemptible state of one partition, valid for one iteration,
// one active job count and one priority threshold.
type cacheEntry struct {
	iteration  int64
	activeJobs int
	priority   int64
	nodes      []cachedNode
	jobs       []*objects.Job
}

// Cache keeps the preemptible nodes and jobs per partition.
// The scheduling loop owns the cache, it is not safe for concurrent use.
type Cache struct {
	entries map[string]*cacheEntry
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
	}
}

// lookup returns the entry for the partition if it is still valid for the tags.
func (c *Cache) lookup(partition string, iteration int64, activeJobs int, priority int64) *cacheEntry {
	entry := c.entries[partition]
	if entry == nil {
		return nil
	}
	if iteration > entry.iteration || activeJobs != entry.activeJobs || priority != entry.priority {
		return nil
	}
	return entry
}

func (c *Cache) store(partition string, entry *cacheEntry) {
	c.entries[partition] = entry
}

// Invalidate drops the entry of the partition, all entries for "".
func (c *Cache) Invalidate(partition string) {
	if partition == "" {
		c.entries = make(map[string]*cacheEntry)
		return
	}
	delete(c.entries, partition)
}

// Size returns the number of partitions with a cached entry.
func (c *Cache) Size() int {
	return len(c.entries)
}
