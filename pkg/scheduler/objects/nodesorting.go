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
	"go.uber.org/zap"

	"github.com/apache/yunikorn-placement/pkg/common/configs"
	"github.com/apache/yunikorn-placement/pkg/log"
)

// NodeSortingPolicy scores nodes for the node allocation policy, lower scores are used first.
type NodeSortingPolicy interface {
	PolicyType() string
	ScoreNode(node *Node) float64
}

type firstAvailableNodeSortingPolicy struct{}
type priorityNodeSortingPolicy struct{}
type minResourceNodeSortingPolicy struct{}
type maxBalanceNodeSortingPolicy struct{}

func (firstAvailableNodeSortingPolicy) PolicyType() string {
	return configs.AllocFirstAvailable
}

func (priorityNodeSortingPolicy) PolicyType() string {
	return configs.AllocPriority
}

func (minResourceNodeSortingPolicy) PolicyType() string {
	return configs.AllocMinResource
}

func (maxBalanceNodeSortingPolicy) PolicyType() string {
	return configs.AllocMaxBalance
}

func (firstAvailableNodeSortingPolicy) ScoreNode(node *Node) float64 {
	// order in which the nodes were added
	return float64(node.index)
}

func (priorityNodeSortingPolicy) ScoreNode(node *Node) float64 {
	// highest priority first
	return -float64(node.Priority)
}

func (minResourceNodeSortingPolicy) ScoreNode(node *Node) float64 {
	// smallest node first
	return float64(node.Configured.Procs())
}

func (maxBalanceNodeSortingPolicy) ScoreNode(node *Node) float64 {
	// most available processors first
	return -float64(node.GetAvailableResource().Procs())
}

// NewNodeSortingPolicy returns the policy for the allocation policy name, unknown names use first available.
func NewNodeSortingPolicy(policyType string) NodeSortingPolicy {
	var sp NodeSortingPolicy
	switch policyType {
	case configs.AllocPriority:
		sp = priorityNodeSortingPolicy{}
	case configs.AllocMinResource:
		sp = minResourceNodeSortingPolicy{}
	case configs.AllocMaxBalance:
		sp = maxBalanceNodeSortingPolicy{}
	case configs.AllocFirstAvailable, "":
		sp = firstAvailableNodeSortingPolicy{}
	default:
		log.Log(log.Objects).Debug("node allocation policy defaulted to first available",
			zap.String("policy", policyType))
		sp = firstAvailableNodeSortingPolicy{}
	}
	return sp
}
