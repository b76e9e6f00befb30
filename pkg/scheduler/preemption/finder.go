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

// Prober confirms that preempting the jobs on the node unblocks the preemptor.
// It returns the tasks of the requirement that fit on the node at the given time once the
// preemptees are gone, taking reservations on the node into account.
type Prober interface {
	ProbeNode(job *objects.Job, req *objects.Requirement, node *objects.Node, preemptees []*objects.Job, at time.Time) (int, bool)
}

// Request describes one preemption candidate search.
type Request struct {
	Preemptor *objects.Job
	// requirement to reclaim resources for, nil uses the first requirement
	Req *objects.Requirement
	// preemptees must have a start priority below this threshold
	Priority  int64
	Partition string
	// candidate nodes, nil uses the cached partition wide search
	Candidates objects.NodeList
	// IDs of jobs that must never be returned
	Excluded []string
	// only jobs inside owner preempt reservations of the preemptor are considered
	Conditional bool
	// every job on the candidate nodes is considered preemptible
	ForceCancel bool
}

// Result holds the nodes with the reclaimable task count and the preemptible jobs.
// An empty result means no preemption is possible.
type Result struct {
	Nodes objects.NodeList
	Jobs  []*objects.Job
}

func (r *Result) TaskCount() int {
	return r.Nodes.TaskCount()
}

func (r *Result) IsEmpty() bool {
	return len(r.Jobs) == 0
}

func (r *Result) JobIDs() []string {
	ids := make([]string, len(r.Jobs))
	for i, j := range r.Jobs {
		ids[i] = j.ID
	}
	return ids
}

func (r *Result) addJob(job *objects.Job) bool {
	if slices.Contains(r.Jobs, job) {
		return false
	}
	r.Jobs = append(r.Jobs, job)
	return true
}

// Finder locates preemptible nodes and jobs for a preemptor.
// It reads the cluster tables and writes the cache, it never changes node occupancy.
type Finder struct {
	cluster *objects.Cluster
	cache   *Cache
	prober  Prober
}

func NewFinder(cluster *objects.Cluster, cache *Cache, prober Prober) *Finder {
	if cache == nil {
		cache = NewCache()
	}
	return &Finder{
		cluster: cluster,
		cache:   cache,
		prober:  prober,
	}
}

func (f *Finder) GetCache() *Cache {
	return f.cache
}

// Find returns the preemptible resources for the request.
// An unknown partition or missing preemptor is malformed input, finding nothing is not an error.
func (f *Finder) Find(request *Request) (*Result, error) {
	if request == nil || request.Preemptor == nil || len(request.Preemptor.Requirements) == 0 {
		return nil, common.ErrMalformedInput
	}
	if request.Partition != "" && f.cluster.GetPartition(request.Partition) == nil {
		return nil, common.ErrMalformedInput
	}
	if request.Req == nil {
		request.Req = request.Preemptor.Requirements[0]
	}
	defer metrics.GetPlacementMetrics().ObservePreemptionLatency(time.Now())

	var result *Result
	switch {
	case request.Conditional:
		result = f.findConditional(request)
	case request.Candidates == nil:
		result = f.findCached(request)
	default:
		result = f.findInList(request)
	}
	if result.IsEmpty() {
		log.Log(log.Preempt).Debug("no preemptible resources found",
			zap.String("jobID", request.Preemptor.ID),
			zap.Int("taskCount", request.Preemptor.TaskCount()),
			zap.String("class", request.Preemptor.Credential.Class),
			zap.Int64("priority", request.Priority),
			zap.String("partition", request.Partition))
		return result, nil
	}
	log.Log(log.Preempt).Debug("preemptible resources found",
		zap.String("jobID", request.Preemptor.ID),
		zap.Int("nodes", result.Nodes.NodeCount()),
		zap.Int("tasks", result.TaskCount()),
		zap.Strings("preemptees", result.JobIDs()))
	return result, nil
}

// findConditional collects the non owner jobs running inside active owner preempt reservations
// of the preemptor.
func (f *Finder) findConditional(request *Request) *Result {
	job := request.Preemptor
	now := f.cluster.Now
	result := &Result{}
	for _, node := range f.conditionalNodes(request) {
		if job.RequiredReservation != "" && !hasReservation(node, job.RequiredReservation) {
			log.Log(log.Preempt).Debug("required reservation missing from node",
				zap.String("jobID", job.ID),
				zap.String("reservation", job.RequiredReservation),
				zap.String("nodeID", node.ID))
			continue
		}
		if !node.IsSchedulable() {
			continue
		}
		rsv := ownerPreemptReservation(node, job, now)
		if rsv == nil {
			continue
		}
		reclaimable := resources.NewResource()
		for _, nj := range node.GetJobs() {
			if nj.Job == job || ownerMatches(rsv, nj.Job.Credential) {
				continue
			}
			if nj.Job.State == objects.JobSuspended {
				continue
			}
			if !rsv.HasFlag(objects.RsvFlagOwnerPreemptIgnoreMinTime) && !reachedMinPreemptTime(nj.Job, now) {
				log.Log(log.Preempt).Debug("job below minimum preempt time",
					zap.String("preemptee", nj.Job.ID),
					zap.String("nodeID", node.ID))
				continue
			}
			if slices.Contains(request.Excluded, nj.Job.ID) {
				continue
			}
			result.addJob(nj.Job)
			reclaimable.AddTo(resources.Multiply(nj.PerTask, nj.Tasks))
		}
		if tasks := resources.TasksFit(reclaimable, request.Req.PerTask); tasks > 0 && !resources.IsZero(reclaimable) {
			result.Nodes.Add(node, tasks)
		}
	}
	return result
}

func (f *Finder) conditionalNodes(request *Request) []*objects.Node {
	if request.Candidates != nil {
		nodes := make([]*objects.Node, len(request.Candidates))
		for i, nt := range request.Candidates {
			nodes[i] = nt.Node
		}
		return nodes
	}
	return f.partitionNodes(request.Partition)
}

// findCached serves the partition wide search from the cache, refreshing it on a new iteration,
// a change in the number of active jobs or a different priority threshold.
func (f *Finder) findCached(request *Request) *Result {
	activeJobs := f.cluster.ActiveJobCount(request.Partition)
	entry := f.cache.lookup(request.Partition, f.cluster.Iteration, activeJobs, request.Priority)
	if entry == nil {
		log.Log(log.Preempt).Debug("refreshing preemption cache",
			zap.String("partition", request.Partition),
			zap.Int64("priority", request.Priority),
			zap.Int64("iteration", f.cluster.Iteration))
		entry = f.buildEntry(request.Partition, request.Priority)
		entry.activeJobs = activeJobs
		f.cache.store(request.Partition, entry)
		metrics.GetPlacementMetrics().IncPreemptionCacheRefresh()
	} else {
		metrics.GetPlacementMetrics().IncPreemptionCacheHit()
	}

	maxJobs := len(entry.jobs)
	if request.Preemptor.TaskCount() == 1 && f.cluster.Config.SerialJobPreemptSearchDepth > 0 && f.cluster.Config.SerialJobPreemptSearchDepth < maxJobs {
		maxJobs = f.cluster.Config.SerialJobPreemptSearchDepth
	}
	result := &Result{}
	for _, job := range entry.jobs[:maxJobs] {
		if job == request.Preemptor || slices.Contains(request.Excluded, job.ID) {
			continue
		}
		result.Jobs = append(result.Jobs, job)
	}
	for _, cn := range entry.nodes {
		reclaimable := cn.reclaimable
		if len(result.Jobs) != len(entry.jobs) {
			reclaimable = reclaimableOn(cn.node, result.Jobs)
		}
		if tasks := resources.TasksFit(reclaimable, request.Req.PerTask); tasks > 0 && !resources.IsZero(reclaimable) {
			result.Nodes.Add(cn.node, tasks)
		}
	}
	return result
}

func (f *Finder) buildEntry(partition string, priority int64) *cacheEntry {
	entry := &cacheEntry{
		iteration: f.cluster.Iteration,
		priority:  priority,
	}
	for _, node := range f.partitionNodes(partition) {
		if !node.IsActiveOrBusy() {
			continue
		}
		reclaimable := resources.NewResource()
		for _, nj := range node.GetJobs() {
			if !f.isPreemptible(nj.Job, priority, partition) {
				log.Log(log.Preempt).Debug("cannot preempt job",
					zap.String("preemptee", nj.Job.ID),
					zap.String("nodeID", node.ID),
					zap.Bool("preemptee flag", nj.Job.HasFlag(objects.FlagPreemptee)),
					zap.Int64("priority", priority))
				continue
			}
			reclaimable.AddTo(resources.Multiply(nj.PerTask, nj.Tasks))
			if !slices.Contains(entry.jobs, nj.Job) {
				entry.jobs = append(entry.jobs, nj.Job)
			}
		}
		if reclaimable.Procs() <= 0 {
			continue
		}
		entry.nodes = append(entry.nodes, cachedNode{node: node, reclaimable: reclaimable})
	}
	return entry
}

// findInList walks the candidate nodes and probes every node with preemptible jobs.
// Jobs first found on a node that fails the probe are dropped again.
func (f *Finder) findInList(request *Request) *Result {
	job := request.Preemptor
	candidates := request.Candidates
	if p := f.cluster.GetPartition(request.Partition); p != nil && p.NodeAllocationPolicy == configs.AllocPriority {
		candidates = candidates.Clone()
		slices.SortStableFunc(candidates, func(a, b objects.NodeTask) int {
			switch {
			case a.Node.Priority > b.Node.Priority:
				return -1
			case a.Node.Priority < b.Node.Priority:
				return 1
			default:
				return 0
			}
		})
	}

	result := &Result{}
	probeAt := f.cluster.Now.Add(time.Second)
	for _, nt := range candidates {
		node := nt.Node
		if request.Partition != "" && node.Partition != request.Partition && !f.cluster.IsSharedPartition(node.Partition) {
			continue
		}
		if !node.IsActiveOrBusy() {
			continue
		}
		var local []*objects.Job
		var added []*objects.Job
		reclaimable := resources.NewResource()
		for _, nj := range node.GetJobs() {
			if nj.Job == job || slices.Contains(request.Excluded, nj.Job.ID) {
				continue
			}
			if !request.ForceCancel && !f.isPreemptible(nj.Job, request.Priority, request.Partition) {
				log.Log(log.Preempt).Debug("job is not preemptible by job",
					zap.String("preemptee", nj.Job.ID),
					zap.String("preemptor", job.ID))
				continue
			}
			local = append(local, nj.Job)
			reclaimable.AddTo(resources.Multiply(nj.PerTask, nj.Tasks))
			if result.addJob(nj.Job) {
				added = append(added, nj.Job)
			}
		}
		if len(local) == 0 || (request.Req.IsCompute() && reclaimable.Procs() <= 0) {
			result.dropJobs(added)
			continue
		}
		tasks, ok := f.probe(job, request.Req, node, local, reclaimable, probeAt)
		if !ok || tasks <= 0 {
			log.Log(log.Preempt).Debug("preemption does not unblock node",
				zap.String("jobID", job.ID),
				zap.String("nodeID", node.ID))
			result.dropJobs(added)
			continue
		}
		result.Nodes.Add(node, tasks)
		log.Log(log.Preempt).Debug("node contains preemptible resources",
			zap.String("nodeID", node.ID),
			zap.Int("tasks", tasks))
	}
	return result
}

func (f *Finder) probe(job *objects.Job, req *objects.Requirement, node *objects.Node, preemptees []*objects.Job, reclaimable *resources.Resource, at time.Time) (int, bool) {
	if f.prober != nil {
		return f.prober.ProbeNode(job, req, node, preemptees, at)
	}
	free := resources.Add(node.GetAvailableResource(), reclaimable)
	tasks := resources.TasksFit(free, req.PerTask)
	return tasks, tasks > 0
}

// isPreemptible checks an active job against the preemptee flag, its minimum run time and the
// priority threshold in the partition.
func (f *Finder) isPreemptible(job *objects.Job, priority int64, partition string) bool {
	if job.State != objects.JobActive {
		return false
	}
	if !job.HasFlag(objects.FlagPreemptee) || !reachedMinPreemptTime(job, f.cluster.Now) {
		return false
	}
	return f.cluster.Config.IgnorePreempteePriority || job.Priority(partition) < priority
}

// partitionNodes returns the nodes of the partition, of all partitions for "".
func (f *Finder) partitionNodes(partition string) []*objects.Node {
	if partition != "" {
		if p := f.cluster.GetPartition(partition); p != nil {
			return p.GetNodes()
		}
		return nil
	}
	var nodes []*objects.Node
	for _, p := range f.cluster.GetPartitions() {
		nodes = append(nodes, p.GetNodes()...)
	}
	return nodes
}

func (r *Result) dropJobs(jobs []*objects.Job) {
	for _, job := range jobs {
		if i := slices.Index(r.Jobs, job); i != -1 {
			r.Jobs = slices.Delete(r.Jobs, i, i+1)
		}
	}
}

func reachedMinPreemptTime(job *objects.Job, now time.Time) bool {
	return job.MinPreemptTime <= 0 || now.Sub(job.StartTime) >= job.MinPreemptTime
}

// reclaimableOn sums the resources of the jobs on the node.
func reclaimableOn(node *objects.Node, jobs []*objects.Job) *resources.Resource {
	res := resources.NewResource()
	for _, nj := range node.GetJobs() {
		if slices.Contains(jobs, nj.Job) {
			res.AddTo(resources.Multiply(nj.PerTask, nj.Tasks))
		}
	}
	return res
}

func hasReservation(node *objects.Node, name string) bool {
	for _, rsv := range node.GetReservations() {
		if rsv.Name == name {
			return true
		}
	}
	return false
}

// OwnsPreemptReservation returns true if an active owner preempt reservation in the partition belongs to
// the job credentials. An empty partition matches every partition.
func (f *Finder) OwnsPreemptReservation(job *objects.Job, partition string) bool {
	if job == nil {
		return false
	}
	now := f.cluster.Now
	for _, rsv := range f.cluster.GetReservations() {
		if partition != "" && rsv.Partition != partition {
			continue
		}
		if rsv.HasFlag(objects.RsvFlagOwnerPreempt) && !rsv.IsReleased() && rsv.ActiveAt(now) && ownerMatches(rsv, job.Credential) {
			return true
		}
	}
	return false
}

// ownerPreemptReservation returns the active owner preempt reservation on the node owned by the job credentials.
func ownerPreemptReservation(node *objects.Node, job *objects.Job, now time.Time) *objects.Reservation {
	for _, rsv := range node.GetReservations() {
		if !rsv.HasFlag(objects.RsvFlagOwnerPreempt) || rsv.IsReleased() || !rsv.ActiveAt(now) {
			continue
		}
		if ownerMatches(rsv, job.Credential) {
			return rsv
		}
	}
	return nil
}

func ownerMatches(rsv *objects.Reservation, cred objects.Credential) bool {
	switch {
	case rsv.OwnerUser != "":
		return rsv.OwnerUser == cred.User
	case rsv.OwnerGroup != "":
		return rsv.OwnerGroup == cred.Group
	case rsv.OwnerAccount != "":
		return rsv.OwnerAccount == cred.Account
	default:
		return false
	}
}
