package engine

import "sort"

// Status is a resource's final state in a deployment report.
type Status string

const (
	StatusDeployed Status = "deployed"
	StatusFailed   Status = "failed"
	StatusPending  Status = "pending"
	StatusSkipped  Status = "skipped"
	StatusDeleted  Status = "deleted"
)

// ResourceResult is one resource's outcome.
type ResourceResult struct {
	LogicalID  string
	Type       string
	Status     Status
	PhysicalID string
	Err        error
}

// PendingResource names a resource left undeployed at the end of a run,
// with the dependencies that were never satisfied.
type PendingResource struct {
	LogicalID   string
	Unsatisfied []string
}

// Report is the outcome of a Deploy or Destroy run.
type Report struct {
	StackName  string
	Iterations int

	// Complete is true when every deployable resource reached its target
	// state. False means the run stopped at a fixed point or exhausted its
	// iteration budget with resources still pending.
	Complete bool

	Resources map[string]*ResourceResult
	Pending   []PendingResource
}

func newReport(stackName string) *Report {
	return &Report{
		StackName: stackName,
		Resources: make(map[string]*ResourceResult),
	}
}

func (r *Report) record(id, resType string, status Status, physicalID string, err error) {
	r.Resources[id] = &ResourceResult{
		LogicalID:  id,
		Type:       resType,
		Status:     status,
		PhysicalID: physicalID,
		Err:        err,
	}
}

// Failed returns the logical IDs of failed resources, sorted.
func (r *Report) Failed() []string {
	var out []string
	for id, res := range r.Resources {
		if res.Status == StatusFailed {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
