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

package nodeset

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/apache/yunikorn-placement/pkg/common"
	"github.com/apache/yunikorn-placement/pkg/common/configs"
	"github.com/apache/yunikorn-placement/pkg/common/resources"
	"github.com/apache/yunikorn-placement/pkg/log"
	"github.com/apache/yunikorn-placement/pkg/metrics"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
)

// Request is the input of one node set selection.
type Request struct {
	Job *objects.Job
	// requirement to select for, nil selects for the whole job
	Req   *objects.Requirement
	Start time.Time
	Now   time.Time
	// node set definition, a requirement level node set overrides type, selection and list
	Config       configs.NodeSetConfig
	SharedMemory bool
	// nested level, negative disables the nested hierarchy
	Depth int
	// only the named set is considered when Depth is not negative
	ForcedSet string

	nested bool
}

// Selector applies node set constraints to a candidate node list.
// A selection lives for one call, nothing is retained between calls.
type Selector struct {
	maxSets int
}

func NewSelector(maxSets int) *Selector {
	if maxSets <= 0 {
		maxSets = configs.DefaultMaxNodeSets
	}
	return &Selector{maxSets: maxSets}
}

// resourceSet is the aggregate of the candidate nodes sharing one class or feature value.
type resourceSet struct {
	name     string
	tc       int
	nc       int
	mem      resources.Quantity
	rep      *objects.Node
	affinity int
	// minimum node boards needed by the job, -1 when the job does not fit the set
	minLoss int
	// processors of the member nodes, available when starting now and configured otherwise
	procs resources.Quantity
}

type selection struct {
	*Request
	setType  string
	mode     string
	priority string
	list     []string
	reqTC    int
	reqNC    int
	reqMem   resources.Quantity
	sets     []*resourceSet
	// task count summed over all set memberships
	members int
}

// Select constrains nodes to the node sets that can satisfy the job. The list is modified in place:
// on success it holds the nodes of the feasible sets (anyof, oneof) or of the best set (firstof),
// on failure it is cleared. The name of the selected set is returned for firstof.
// Lists that are not subject to node sets are returned unchanged.
func (s *Selector) Select(r *Request, nodes *objects.NodeList) (string, error) {
	if r == nil || r.Job == nil || nodes == nil {
		return "", common.ErrMalformedInput
	}
	if nodes.IsEmpty() {
		return "", common.ErrNoNodeSet
	}
	sel := s.newSelection(r)
	if sel.passThrough() {
		return "", nil
	}
	name, err := s.selectSets(sel, nodes)
	metrics.GetPlacementMetrics().IncNodeSetSelection(sel.mode, err == nil)
	if err != nil || r.Depth < 0 {
		return name, err
	}
	return s.selectNested(r, nodes, name)
}

func (s *Selector) newSelection(r *Request) *selection {
	sel := &selection{
		Request:  r,
		setType:  r.Config.Type,
		mode:     r.Config.Selection,
		priority: r.Config.Priority,
		list:     r.Config.List,
	}
	if r.Req != nil && r.Req.NodeSet != nil {
		ns := r.Req.NodeSet
		if ns.Type != "" {
			sel.setType = ns.Type
		}
		if ns.Selection != "" {
			sel.mode = ns.Selection
		}
		if len(ns.List) > 0 && !r.nested {
			sel.list = ns.List
		}
	}
	if r.Req != nil {
		sel.reqTC = r.Req.TaskCount
		sel.reqNC = r.Req.NodeCount
		sel.reqMem = r.Req.RequiredMemory()
	} else {
		sel.reqTC = r.Job.TaskCount()
		for _, rq := range r.Job.Requirements {
			sel.reqNC += rq.NodeCount
		}
	}
	return sel
}

func (sel *selection) passThrough() bool {
	job := sel.Job
	if job.HasFlag(objects.FlagVMMigrate) || (job.System != nil && job.System.Type == objects.SystemJobVMMigrate) {
		return true
	}
	generic := job.System == nil || job.System.Type == objects.SystemJobGeneric
	if generic && (isNone(sel.setType) || isNone(sel.mode) || job.HasFlag(objects.FlagHostList)) {
		log.Log(log.Nodeset).Debug("ignoring node sets",
			zap.String("jobID", job.ID),
			zap.Bool("hostList", job.HasFlag(objects.FlagHostList)))
		return true
	}
	if sel.Depth < 0 && job.System == nil && sel.Req != nil && sel.Req.PerTask.Procs() == 0 {
		log.Log(log.Nodeset).Debug("ignoring node sets for non compute requirement",
			zap.String("jobID", job.ID),
			zap.Int("reqIndex", sel.Req.Index))
		return true
	}
	return isNone(sel.setType) || isNone(sel.mode)
}

func isNone(value string) bool {
	return value == "" || value == configs.SetTypeNone
}

func (s *Selector) selectSets(sel *selection, nodes *objects.NodeList) (string, error) {
	s.discoverSets(sel, *nodes)
	sel.populate(*nodes)
	if sel.SharedMemory && sel.priority == configs.SetPriorityMinLoss {
		sel.computeMinLoss()
	}
	for _, rs := range sel.sets {
		log.Log(log.Nodeset).Debug("node set",
			zap.String("set", rs.name),
			zap.Int("taskCount", rs.tc),
			zap.Int("nodeCount", rs.nc))
	}
	if sel.Job.System == nil && sel.members < sel.reqTC {
		log.Log(log.Nodeset).Debug("inadequate resources found in any set",
			zap.String("jobID", sel.Job.ID),
			zap.Int("available", sel.members),
			zap.Int("requested", sel.reqTC))
		nodes.Clear()
		return "", common.ErrNoNodeSet
	}

	var name string
	var err error
	switch sel.mode {
	case configs.SelectAnyOf:
		if sel.Config.SpanEvenly {
			// spanning sets is left to the caller
			nodes.Clear()
			return "", common.ErrNoNodeSet
		}
		err = sel.filterFeasible(nodes, true)
	case configs.SelectOneOf:
		err = sel.filterFeasible(nodes, sel.Config.Optional)
	case configs.SelectFirstOf:
		name, err = sel.selectBest(nodes)
	default:
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if nodes.IsEmpty() {
		return "", common.ErrNoNodeSet
	}
	log.Log(log.Nodeset).Debug("node set constraints applied",
		zap.String("jobID", sel.Job.ID),
		zap.String("selection", sel.mode),
		zap.Int("nodes", nodes.NodeCount()),
		zap.Int("tasks", nodes.TaskCount()))
	return name, nil
}

// discoverSets builds the set list: the configured list or the values seen on the candidates.
func (s *Selector) discoverSets(sel *selection, nodes objects.NodeList) {
	var names []string
	switch sel.setType {
	case configs.SetTypeClass:
		if len(sel.list) > 0 {
			names = sel.forcedFilter(sel.list)
			break
		}
		for _, nt := range nodes {
			for _, c := range nt.Node.Classes {
				if len(names) >= s.maxSets {
					break
				}
				if !slices.Contains(names, c) {
					names = append(names, c)
				}
			}
		}
	case configs.SetTypeFeature:
		if len(sel.list) > 0 {
			names = sel.forcedFilter(sel.list)
			break
		}
		for _, nt := range nodes {
			for _, f := range nt.Node.Features {
				if len(names) >= s.maxSets {
					break
				}
				if !slices.Contains(names, f) {
					names = append(names, f)
				}
			}
		}
	}
	if len(names) > s.maxSets {
		names = names[:s.maxSets]
	}
	sel.sets = make([]*resourceSet, len(names))
	for i, name := range names {
		sel.sets[i] = &resourceSet{name: name}
	}
}

// forcedFilter limits the list to the forced set inside the nested hierarchy.
func (sel *selection) forcedFilter(list []string) []string {
	if sel.Depth < 0 || sel.ForcedSet == "" {
		return list
	}
	var names []string
	for _, name := range list {
		if name == sel.ForcedSet {
			names = append(names, name)
		}
	}
	return names
}

func (sel *selection) isMember(node *objects.Node, rs *resourceSet) bool {
	switch sel.setType {
	case configs.SetTypeClass:
		return node.HasClass(rs.name)
	case configs.SetTypeFeature:
		return node.IsGlobal || node.HasFeature(rs.name)
	}
	return false
}

func (sel *selection) startsNow() bool {
	return !sel.Start.After(sel.Now)
}

func (sel *selection) populate(nodes objects.NodeList) {
	now := sel.startsNow()
	for _, nt := range nodes {
		node := nt.Node
		capacity := node.Configured
		if now {
			capacity = node.GetAvailableResource()
		}
		for _, rs := range sel.sets {
			if !sel.isMember(node, rs) {
				continue
			}
			rs.tc += nt.TaskCount
			rs.nc++
			rs.procs += capacity.Procs()
			rs.mem += capacity.Memory()
			if nt.Affinity == objects.AffinityNegative {
				rs.affinity = -1
			}
			sel.members += nt.TaskCount
			if rs.rep == nil {
				rs.rep = node
			}
			if sel.mode == configs.SelectAnyOf {
				break
			}
		}
	}
}

// computeMinLoss sets the node board count the job needs in each set, -1 when the set cannot hold the job.
func (sel *selection) computeMinLoss() {
	for _, rs := range sel.sets {
		rs.minLoss = -1
		if rs.rep == nil {
			continue
		}
		if sel.Job.TotalProcs() > rs.procs || sel.reqMem > rs.mem {
			continue
		}
		rs.minLoss = sel.nodeBoards(rs.rep)
	}
}

// nodeBoards returns the number of nodes shaped like node that the request needs.
func (sel *selection) nodeBoards(node *objects.Node) int {
	procs := sel.Job.TotalProcs()
	mem := sel.reqMem
	if sel.Req != nil {
		procs = sel.Req.PerTask.Procs() * resources.Quantity(sel.Req.TaskCount)
	}
	nodeProcs := node.Configured.Procs()
	nodeMem := node.Configured.Memory()
	boards := 0.0
	if nodeProcs > 0 {
		boards = float64(procs) / float64(nodeProcs)
	}
	if nodeMem > 0 {
		boards = math.Max(boards, float64(mem)/float64(nodeMem))
	}
	return int(math.Ceil(boards))
}

// jobUse returns the fraction of the set the job would occupy, negative if it cannot be computed.
func (sel *selection) jobUse(rs *resourceSet) float64 {
	if rs.rep == nil || rs.procs <= 0 {
		return -1
	}
	nb := float64(sel.nodeBoards(rs.rep))
	use := nb * float64(rs.rep.Configured.Procs()) / float64(rs.procs)
	if rs.mem > 0 {
		use = math.Max(use, nb*float64(rs.rep.Configured.Memory())/float64(rs.mem))
	}
	return use
}

func (sel *selection) adequate(rs *resourceSet) bool {
	if rs.tc < sel.reqTC || rs.nc < sel.reqNC {
		return false
	}
	return !sel.SharedMemory || rs.mem >= sel.reqMem
}

// filterFeasible keeps the nodes that belong to an adequate set, or to any set when optional.
func (sel *selection) filterFeasible(nodes *objects.NodeList, optional bool) error {
	feasible := make([]*resourceSet, 0, len(sel.sets))
	tc, nc := 0, 0
	var mem resources.Quantity
	for _, rs := range sel.sets {
		if !optional && !sel.adequate(rs) {
			continue
		}
		feasible = append(feasible, rs)
		tc += rs.tc
		nc += rs.nc
		mem += rs.mem
	}
	if (sel.Job.System == nil && tc < sel.reqTC) || nc < sel.reqNC || (sel.SharedMemory && mem < sel.reqMem) {
		log.Log(log.Nodeset).Debug("no node set contains adequate resources",
			zap.String("jobID", sel.Job.ID),
			zap.Int("taskCount", tc),
			zap.Int("requested", sel.reqTC))
		nodes.Clear()
		return common.ErrNoNodeSet
	}
	nodes.Retain(func(nt objects.NodeTask) bool {
		for _, rs := range feasible {
			if sel.isMember(nt.Node, rs) {
				return true
			}
		}
		return false
	})
	return nil
}

// selectBest keeps the nodes of the best adequate set according to the set priority.
func (sel *selection) selectBest(nodes *objects.NodeList) (string, error) {
	var best *resourceSet
	value := -1
	for _, rs := range sel.sets {
		if !sel.adequate(rs) {
			continue
		}
		switch sel.priority {
		case configs.SetPriorityAffinity:
			if best == nil || rs.affinity > value {
				best, value = rs, rs.affinity
			}
		case configs.SetPriorityFirstFit:
			if best == nil {
				best = rs
			}
		case configs.SetPriorityBestFit:
			if value == -1 || rs.tc < value {
				best, value = rs, rs.tc
			}
		case configs.SetPriorityWorstFit:
			if rs.tc > value {
				best, value = rs, rs.tc
			}
		case configs.SetPriorityMinLoss:
			if !sel.SharedMemory {
				best = rs
				break
			}
			if rs.minLoss == -1 || rs.nc < rs.minLoss || (value != -1 && rs.minLoss > value) {
				continue
			}
			if best != nil && rs.minLoss == value {
				// equal node boards: prefer the set where the job uses the smaller share
				use1, use2 := sel.jobUse(rs), sel.jobUse(best)
				if use1 < 0 || use2 < 0 {
					continue
				}
				if use1 < use2 {
					best, value = rs, rs.minLoss
				}
				continue
			}
			best, value = rs, rs.minLoss
		default:
			best = rs
		}
		// best resource keeps the first adequate set, the other plain priorities the last one
		if best != nil && sel.priority == configs.SetPriorityBestResource {
			break
		}
	}
	if best == nil {
		log.Log(log.Nodeset).Debug("no node set contains adequate resources",
			zap.String("jobID", sel.Job.ID),
			zap.String("priority", sel.priority))
		nodes.Clear()
		return "", common.ErrNoNodeSet
	}
	nodes.Retain(func(nt objects.NodeTask) bool {
		return sel.isMember(nt.Node, best)
	})
	return best.name, nil
}

// selectNested walks the nested set hierarchy below the selected set. Each child set is tried on a
// snapshot of the list, the first child that succeeds wins.
func (s *Selector) selectNested(r *Request, nodes *objects.NodeList, selected string) (string, error) {
	children, ok := r.Config.Nested[r.Depth+1]
	if !ok || len(children) == 0 {
		return selected, nil
	}
	snapshot := nodes.Clone()
	for _, child := range children {
		nested := *r
		nested.nested = true
		nested.Config.List = children
		nested.Depth = r.Depth + 1
		nested.ForcedSet = child
		if name, err := s.Select(&nested, nodes); err == nil {
			if name == "" {
				name = child
			}
			return name, nil
		}
		nodes.Replace(snapshot)
	}
	log.Log(log.Nodeset).Debug("no nested node set satisfies the job",
		zap.String("jobID", r.Job.ID),
		zap.Int("depth", r.Depth+1))
	return "", fmt.Errorf("nested level %d: %w", r.Depth+1, common.ErrNoNodeSet)
}
