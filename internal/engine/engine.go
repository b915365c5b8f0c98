package engine

import (
	"sync"

	"github.com/stacklet-io/stacklet/internal/provider"
	"github.com/stacklet-io/stacklet/internal/registry"
)

const (
	// DefaultMaxIterations bounds the convergence loop. This is a heuristic
	// bound, not a correctness guarantee: cycles are not detected explicitly
	// and surface as resources still pending at exhaustion.
	DefaultMaxIterations = 10

	defaultParallelism = 10

	defaultRegion    = "us-east-1"
	defaultPartition = "aws"
	defaultAccountID = "000000000000"
)

// Options configures a deployment engine.
type Options struct {
	MaxIterations int
	Parallelism   int
	Region        string
	Partition     string
	AccountID     string
}

// Engine drives templates toward a fully deployed state against a provider.
type Engine struct {
	actions *registry.Registry
	prov    provider.Interface
	opts    Options

	// mu guards snapshot refreshes: PhysicalID/Details writes on shared
	// resources. Workers otherwise only touch the resource assigned to them.
	mu sync.RWMutex
}

// New returns an engine over the given action registry and provider.
func New(actions *registry.Registry, prov provider.Interface, opts Options) *Engine {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = defaultParallelism
	}
	if opts.Region == "" {
		opts.Region = defaultRegion
	}
	if opts.Partition == "" {
		opts.Partition = defaultPartition
	}
	if opts.AccountID == "" {
		opts.AccountID = defaultAccountID
	}
	return &Engine{actions: actions, prov: prov, opts: opts}
}

// StackContext supplies the pseudo-parameter values for one deployment run.
type StackContext struct {
	StackName string
	Region    string
	Partition string
	AccountID string
}

func (e *Engine) stackContext(stackName string) *StackContext {
	return &StackContext{
		StackName: stackName,
		Region:    e.opts.Region,
		Partition: e.opts.Partition,
		AccountID: e.opts.AccountID,
	}
}
