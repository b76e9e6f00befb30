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

package resources

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// const keys
const (
	PROCS  = "procs"
	MEMORY = "mem"
	SWAP   = "swap"
	DISK   = "disk"
)

// Resource is a multi-dimensional resource vector: procs, memory (MB) and any
// number of generic resources keyed by name.
type Resource struct {
	Resources map[string]Quantity
}

// No unit defined here for better performance
type Quantity int64

var zeroResource = NewResource()

func NewResource() *Resource {
	return &Resource{Resources: make(map[string]Quantity)}
}

func NewResourceFromMap(m map[string]Quantity) *Resource {
	if m == nil {
		return NewResource()
	}
	return &Resource{Resources: m}
}

// NewProcMem is a shortcut for the common procs and memory vector.
func NewProcMem(procs, mem Quantity) *Resource {
	res := NewResource()
	if procs != 0 {
		res.Resources[PROCS] = procs
	}
	if mem != 0 {
		res.Resources[MEMORY] = mem
	}
	return res
}

// Create a new resource from the config map.
// The config map must have been checked before being applied. Memory keys accept size suffixes.
func NewResourceFromConf(configMap map[string]string) (*Resource, error) {
	res := NewResource()
	for key, strVal := range configMap {
		var value Quantity
		var err error
		switch key {
		case MEMORY, SWAP, DISK:
			value, err = ParseMemory(strVal)
		default:
			value, err = ParseQuantity(strVal)
		}
		if err != nil {
			return nil, fmt.Errorf("resource %s: %w", key, err)
		}
		if value < 0 {
			return nil, fmt.Errorf("resource %s: negative quantity %d", key, value)
		}
		res.Resources[key] = value
	}
	return res, nil
}

func (r *Resource) String() string {
	if r == nil {
		return "nil resource"
	}
	keys := make([]string, 0, len(r.Resources))
	for k := range r.Resources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, r.Resources[k]))
	}
	return "map[" + strings.Join(parts, " ") + "]"
}

// Get returns the quantity for the key, nil safe.
func (r *Resource) Get(key string) Quantity {
	if r == nil {
		return 0
	}
	return r.Resources[key]
}

// Procs returns the processor count of the vector.
func (r *Resource) Procs() Quantity {
	return r.Get(PROCS)
}

// Memory returns the memory in MB of the vector.
func (r *Resource) Memory() Quantity {
	return r.Get(MEMORY)
}

// Return a clone (copy) of the resource, zero values are dropped
func (r *Resource) Clone() *Resource {
	ret := NewResource()
	if r == nil {
		return ret
	}
	for k, v := range r.Resources {
		if v != 0 {
			ret.Resources[k] = v
		}
	}
	return ret
}

// AddTo adds the additional resource to the receiver
func (r *Resource) AddTo(additional *Resource) {
	if r == nil || additional == nil {
		return
	}
	for k, v := range additional.Resources {
		r.Resources[k] += v
	}
}

// SubFrom subtracts from the receiver, values may go negative
func (r *Resource) SubFrom(subtract *Resource) {
	if r == nil || subtract == nil {
		return
	}
	for k, v := range subtract.Resources {
		r.Resources[k] -= v
	}
}

// Operations
// All operations must be nil safe

// Add resources returning a new resource with the result
// A nil resource is considered an empty resource
func Add(left, right *Resource) *Resource {
	out := left.Clone()
	out.AddTo(right)
	return out
}

// Subtract resource returning a new resource with the result
// A nil resource is considered an empty resource
// This might return negative values for specific quantities
func Sub(left, right *Resource) *Resource {
	out := left.Clone()
	if right == nil {
		return out
	}
	for k, v := range right.Resources {
		out.Resources[k] -= v
	}
	return out
}

// SubEliminateNegative subtracts and floors every quantity at zero
func SubEliminateNegative(left, right *Resource) *Resource {
	out := Sub(left, right)
	for k, v := range out.Resources {
		if v < 0 {
			out.Resources[k] = 0
		}
	}
	return out
}

// Multiply returns a new resource with every quantity multiplied by count
func Multiply(base *Resource, count int) *Resource {
	out := NewResource()
	if base == nil {
		return out
	}
	for k, v := range base.Resources {
		out.Resources[k] = v * Quantity(count)
	}
	return out
}

// Check if smaller fit in larger, negative values will be treated as 0
// A nil resource is treated as an empty resource (zero)
func FitIn(larger, smaller *Resource) bool {
	if larger == nil {
		larger = zeroResource
	}
	if smaller == nil {
		return true
	}
	for k, v := range smaller.Resources {
		largerValue := larger.Resources[k]
		if largerValue < 0 {
			largerValue = 0
		}
		if v > largerValue {
			return false
		}
	}
	return true
}

// TasksFit returns the number of tasks with the per task resource that fit in available.
// Keys not requested by the task do not limit the count. A task without any request fits
// math.MaxInt32 times.
func TasksFit(available, perTask *Resource) int {
	count := math.MaxInt32
	if perTask == nil {
		return count
	}
	for k, v := range perTask.Resources {
		if v <= 0 {
			continue
		}
		avail := available.Get(k)
		if avail <= 0 {
			return 0
		}
		if n := int(avail / v); n < count {
			count = n
		}
	}
	return count
}

// Equals compares two resources, a missing key equals a zero value
func Equals(left, right *Resource) bool {
	if left == right {
		return true
	}
	for k, v := range left.Clone().Resources {
		if right.Get(k) != v {
			return false
		}
	}
	for k, v := range right.Clone().Resources {
		if left.Get(k) != v {
			return false
		}
	}
	return true
}

// IsZero returns true when all quantities are zero, nil is zero
func IsZero(zero *Resource) bool {
	if zero == nil {
		return true
	}
	for _, v := range zero.Resources {
		if v != 0 {
			return false
		}
	}
	return true
}

// StrictlyGreaterThanZero returns true if at least one quantity is positive and none is negative
func StrictlyGreaterThanZero(larger *Resource) bool {
	if larger == nil {
		return false
	}
	greater := false
	for _, v := range larger.Resources {
		if v < 0 {
			return false
		}
		if v > 0 {
			greater = true
		}
	}
	return greater
}

// ComponentWiseMax returns a new resource with the larger value per key
func ComponentWiseMax(left, right *Resource) *Resource {
	out := left.Clone()
	if right == nil {
		return out
	}
	for k, v := range right.Resources {
		if v > out.Resources[k] {
			out.Resources[k] = v
		}
	}
	return out
}

// LargestShare returns the largest ratio used/total over the keys of used, total keys missing are ignored.
func LargestShare(used, total *Resource) float64 {
	share := 0.0
	if used == nil || total == nil {
		return share
	}
	for k, v := range used.Resources {
		t := total.Resources[k]
		if t <= 0 {
			continue
		}
		if s := float64(v) / float64(t); s > share {
			share = s
		}
	}
	return share
}
