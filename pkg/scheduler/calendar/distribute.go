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

package calendar

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/apache/yunikorn-placement/pkg/common"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
)

// Distribute assigns the tasks of every requirement to the selected candidates following the node
// allocation policy. The distribution is deterministic: it matches the tentative distribution made
// while selecting, so the resources of earlier requirements never overlap later ones.
func (c *Calendar) Distribute(job *objects.Job, sel *Selection) ([]*objects.ReqAlloc, error) {
	if job == nil || sel == nil || len(sel.Candidates) != len(job.Requirements) {
		return nil, common.ErrMalformedInput
	}
	p := c.cluster.GetPartition(sel.Partition)
	if p == nil {
		return nil, common.ErrMalformedInput
	}
	allocs := make([]*objects.ReqAlloc, len(job.Requirements))
	for i, req := range job.Requirements {
		nl, err := c.DistributeList(req, c.AllocationPolicy(req, p), sel.Candidates[i])
		if err != nil {
			return nil, fmt.Errorf("requirement %d: %w", i, err)
		}
		allocs[i] = &objects.ReqAlloc{ReqIndex: i, PerTask: req.PerTask, Nodes: nl}
	}
	return allocs, nil
}

// DistributeList assigns the tasks of one requirement to the candidates under the allocation policy.
func (c *Calendar) DistributeList(req *objects.Requirement, policy string, candidates objects.NodeList) (objects.NodeList, error) {
	if req == nil {
		return nil, common.ErrMalformedInput
	}
	nl := distributeList(req, policy, candidates)
	if nl.TaskCount() < req.TaskCount {
		return nil, common.ErrInfeasibleNow
	}
	return nl, nil
}

// AllocationPolicy resolves the node allocation policy: requirement, partition, scheduler.
func (c *Calendar) AllocationPolicy(req *objects.Requirement, p *objects.Partition) string {
	if req.NodeAllocationPolicy != "" {
		return req.NodeAllocationPolicy
	}
	if p != nil && p.NodeAllocationPolicy != "" {
		return p.NodeAllocationPolicy
	}
	return c.cluster.Config.NodeAllocationPolicy
}

// distributeList orders the candidates by affinity and policy score and fills them in order.
// A node count constraint first places one task on each of the first nodes.
func distributeList(req *objects.Requirement, policy string, candidates objects.NodeList) objects.NodeList {
	sp := objects.NewNodeSortingPolicy(policy)
	sorted := candidates.Clone()
	slices.SortStableFunc(sorted, func(a, b objects.NodeTask) int {
		if ra, rb := affinityRank(a.Affinity), affinityRank(b.Affinity); ra != rb {
			return ra - rb
		}
		sa, sb := sp.ScoreNode(a.Node), sp.ScoreNode(b.Node)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		default:
			return 0
		}
	})

	remaining := req.TaskCount
	var out objects.NodeList
	for i := 0; i < len(sorted) && i < req.NodeCount && remaining > 0; i++ {
		if sorted[i].TaskCount <= 0 {
			continue
		}
		out.Add(sorted[i].Node, 1)
		sorted[i].TaskCount--
		remaining--
	}
	for i := 0; i < len(sorted) && remaining > 0; i++ {
		take := sorted[i].TaskCount
		if take > remaining {
			take = remaining
		}
		if take <= 0 {
			continue
		}
		out.Add(sorted[i].Node, take)
		remaining -= take
	}
	return out
}

func affinityRank(a objects.Affinity) int {
	switch a {
	case objects.AffinityRequired:
		return 0
	case objects.AffinityPositive:
		return 1
	case objects.AffinityNegative:
		return 3
	default:
		return 2
	}
}
