package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/stacklet-io/stacklet/internal/logging"
	"github.com/stacklet-io/stacklet/internal/provider"
	"github.com/stacklet-io/stacklet/internal/registry"
	"github.com/stacklet-io/stacklet/internal/template"
)

// Deploy drives the template toward a fully deployed state. Each iteration
// deploys every resource whose dependencies are satisfied, then re-evaluates;
// the loop stops at a fixed point (no resource became ready) or when the
// iteration budget runs out. Individual resource failures do not abort the
// run; they appear in the report.
func (e *Engine) Deploy(ctx context.Context, tmpl *template.Template, stackName string) (*Report, error) {
	sc := e.stackContext(stackName)
	rep := newReport(stackName)

	for id, res := range tmpl.Resources {
		if !e.actions.Deployable(res.Type) {
			var err error
			if _, known := e.actions.Lookup(res.Type); !known {
				err = &UnknownResourceTypeError{Type: res.Type}
			} else {
				err = &ActionNotImplementedError{Type: res.Type, Action: registry.ActionCreate}
			}
			logging.Warn("skipping resource", "resource", id, "reason", err)
			rep.record(id, res.Type, StatusSkipped, "", err)
		}
	}

	for rep.Iterations < e.opts.MaxIterations {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("deploy cancelled: %w", err)
		}

		if err := e.refreshSnapshots(ctx, sc, tmpl, rep); err != nil {
			return rep, err
		}

		ready := e.readySet(tmpl, rep)
		if len(ready) == 0 {
			break
		}
		rep.Iterations++
		logging.Info("deploying resources", "stack", stackName,
			"iteration", rep.Iterations, "count", len(ready))
		e.deployTier(ctx, sc, tmpl, ready, rep)
	}

	e.finalize(tmpl, rep)
	return rep, nil
}

// refreshSnapshots fetches provider state for every resource not yet known to
// be deployed. A resource found already present is recorded as deployed
// without invoking any action. A resource whose derived name cannot be
// resolved yet has unknown state; it is left for a later iteration.
func (e *Engine) refreshSnapshots(ctx context.Context, sc *StackContext, tmpl *template.Template, rep *Report) error {
	for id, res := range tmpl.Resources {
		if r, ok := rep.Resources[id]; ok && r.Status != StatusPending {
			continue
		}
		details, err := e.snapshot(ctx, sc, tmpl, res)
		if err != nil {
			var unresolved *UnresolvedReferenceError
			if errors.As(err, &unresolved) {
				logging.Debug("resource state unknown", "resource", id, "cause", err)
				continue
			}
			return fmt.Errorf("inspecting %s: %w", id, err)
		}
		if details != nil {
			logging.Debug("resource already present", "resource", id, "type", res.Type)
			rep.record(id, res.Type, StatusDeployed, res.PhysicalID, nil)
		}
	}
	return nil
}

// readySet returns the resources deployable this iteration: undecided, with
// every deployable dependency already carrying state.
func (e *Engine) readySet(tmpl *template.Template, rep *Report) []*template.Resource {
	var ready []*template.Resource
	for id, res := range tmpl.Resources {
		if _, decided := rep.Resources[id]; decided {
			continue
		}
		if e.unsatisfied(res, tmpl) == nil {
			ready = append(ready, res)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		return ready[i].LogicalID < ready[j].LogicalID
	})
	return ready
}

// unsatisfied returns the deployable dependencies that do not carry state yet.
func (e *Engine) unsatisfied(res *template.Resource, tmpl *template.Template) []string {
	var out []string
	for id, dep := range DependenciesOf(res, tmpl) {
		if !e.actions.Deployable(dep.Type) {
			continue
		}
		e.mu.RLock()
		deployed := dep.Details != nil
		e.mu.RUnlock()
		if !deployed {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// deployTier deploys a set of independent resources concurrently, bounded by
// the configured parallelism. The tier is a barrier: all workers finish
// before the next iteration starts.
func (e *Engine) deployTier(ctx context.Context, sc *StackContext, tmpl *template.Template, tier []*template.Resource, rep *Report) {
	var (
		wg    sync.WaitGroup
		repMu sync.Mutex
	)
	sem := make(chan struct{}, e.opts.Parallelism)

	for _, res := range tier {
		wg.Add(1)
		go func(res *template.Resource) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}

			err := e.deployResource(ctx, sc, tmpl, res)

			repMu.Lock()
			defer repMu.Unlock()
			if err != nil {
				var unresolved *UnresolvedReferenceError
				if errors.As(err, &unresolved) {
					// Retried next iteration.
					logging.Debug("resource not ready", "resource", res.LogicalID, "cause", err)
					return
				}
				logging.Error("resource deployment failed", "resource", res.LogicalID, "error", err)
				rep.record(res.LogicalID, res.Type, StatusFailed, res.PhysicalID, err)
				return
			}
			rep.record(res.LogicalID, res.Type, StatusDeployed, res.PhysicalID, nil)
		}(res)
	}
	wg.Wait()
}

// deployResource runs the create steps for one resource and records the
// resulting provider state on it.
func (e *Engine) deployResource(ctx context.Context, sc *StackContext, tmpl *template.Template, res *template.Resource) error {
	entry, _ := e.actions.Lookup(res.Type)
	logging.Debug("creating resource", "resource", res.LogicalID, "type", res.Type)

	var primaryArgs, primaryResult map[string]any
	for i, step := range entry.Create {
		args, err := e.buildArguments(ctx, sc, tmpl, res, res.Properties, step)
		if err != nil {
			return err
		}
		if args == nil {
			continue
		}
		result, err := e.invoke(ctx, res.LogicalID, step.Operation, args)
		if err != nil {
			return err
		}
		if i == 0 {
			primaryArgs, primaryResult = args, result
		}
	}

	physicalID := e.physicalID(ctx, sc, tmpl, res, entry, primaryResult)
	e.mu.Lock()
	if res.PhysicalID == "" && physicalID != "" {
		res.PhysicalID = physicalID
	}
	e.mu.Unlock()

	details, err := e.fetchState(ctx, sc, tmpl, res)
	if err != nil {
		if !provider.IsNotFound(err) {
			return fmt.Errorf("inspecting %s after create: %w", res.LogicalID, err)
		}
		// Some providers are not immediately consistent after a create; fall
		// back to a minimal snapshot so dependents can resolve the Ref.
		details = map[string]any{physicalIDAttr: res.PhysicalID}
	}
	e.mu.Lock()
	res.Details = details
	if res.PhysicalID == "" {
		if pid, ok := details[physicalIDAttr].(string); ok {
			res.PhysicalID = pid
		}
	}
	e.mu.Unlock()

	if entry.Post != nil {
		pc := &registry.PostContext{
			Resource: res,
			Args:     primaryArgs,
			Result:   primaryResult,
			Invoke: func(ctx context.Context, op string, args map[string]any) (map[string]any, error) {
				return e.invoke(ctx, res.LogicalID, op, args)
			},
			Resolve: func(v any) (any, error) {
				return e.Resolve(ctx, sc, tmpl, v)
			},
		}
		if err := entry.Post(ctx, pc); err != nil {
			return fmt.Errorf("post-create for %s: %w", res.LogicalID, err)
		}
	}
	return nil
}

// physicalID derives the physical identifier from a create result, falling
// back to the resolved display name.
func (e *Engine) physicalID(ctx context.Context, sc *StackContext, tmpl *template.Template, res *template.Resource, entry *registry.Entry, result map[string]any) string {
	if entry.PhysicalID != "" && result != nil {
		if v := extractAttribute(result, entry.PhysicalID); v != nil {
			return stringOf(v)
		}
	}
	name, err := e.Resolve(ctx, sc, tmpl, e.actions.DisplayName(res))
	if err != nil || name == nil {
		return res.LogicalID
	}
	return stringOf(name)
}

// invoke runs one provider operation with retry on transient errors.
func (e *Engine) invoke(ctx context.Context, logicalID, operation string, args map[string]any) (map[string]any, error) {
	var result map[string]any
	err := RetryWithBackoff(ctx, nil, func() error {
		var callErr error
		result, callErr = e.prov.Invoke(ctx, operation, args)
		return callErr
	}, IsTransientError)
	if err != nil {
		return nil, &ProviderCallError{LogicalID: logicalID, Operation: operation, Err: err}
	}
	return result, nil
}

// finalize fills in the pending list and the completion flag.
func (e *Engine) finalize(tmpl *template.Template, rep *Report) {
	rep.Complete = true
	var pendingIDs []string
	for id := range tmpl.Resources {
		if _, decided := rep.Resources[id]; !decided {
			pendingIDs = append(pendingIDs, id)
		}
	}
	sort.Strings(pendingIDs)

	for _, id := range pendingIDs {
		res := tmpl.Resources[id]
		rep.Complete = false
		rep.record(id, res.Type, StatusPending, "", nil)
		rep.Pending = append(rep.Pending, PendingResource{
			LogicalID:   id,
			Unsatisfied: e.unsatisfied(res, tmpl),
		})
	}
	for _, r := range rep.Resources {
		if r.Status == StatusFailed {
			rep.Complete = false
		}
	}
	if !rep.Complete && len(pendingIDs) > 0 {
		logging.Warn("deployment incomplete", "stack", rep.StackName,
			"pending", len(pendingIDs), "iterations", rep.Iterations)
	}
}

// Destroy deletes the template's resources in reverse dependency order.
// A cycle in the graph degrades to arbitrary order rather than aborting.
func (e *Engine) Destroy(ctx context.Context, tmpl *template.Template, stackName string) (*Report, error) {
	sc := e.stackContext(stackName)
	rep := newReport(stackName)

	order, err := DeletionOrder(tmpl)
	if err != nil {
		logging.Warn("falling back to arbitrary deletion order", "stack", stackName, "cause", err)
		order = tmpl.LogicalIDs()
	}

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("destroy cancelled: %w", err)
		}
		res := tmpl.Resource(id)

		steps := e.actions.Steps(res.Type, registry.ActionDelete)
		if steps == nil {
			err := &ActionNotImplementedError{Type: res.Type, Action: registry.ActionDelete}
			logging.Warn("skipping resource", "resource", id, "reason", err)
			rep.record(id, res.Type, StatusSkipped, res.PhysicalID, err)
			continue
		}

		details, err := e.snapshot(ctx, sc, tmpl, res)
		if err != nil {
			rep.record(id, res.Type, StatusFailed, res.PhysicalID, err)
			continue
		}
		if details == nil {
			logging.Debug("resource already absent", "resource", id)
			rep.record(id, res.Type, StatusDeleted, res.PhysicalID, nil)
			continue
		}

		if err := e.deleteResource(ctx, sc, tmpl, res, steps); err != nil {
			logging.Error("resource deletion failed", "resource", id, "error", err)
			rep.record(id, res.Type, StatusFailed, res.PhysicalID, err)
			continue
		}
		e.mu.Lock()
		res.Details = nil
		e.mu.Unlock()
		rep.record(id, res.Type, StatusDeleted, res.PhysicalID, nil)
	}

	rep.Complete = len(rep.Failed()) == 0
	return rep, nil
}

// deleteResource runs the delete steps against a property set augmented with
// the physical identifier, which delete mappings draw on.
func (e *Engine) deleteResource(ctx context.Context, sc *StackContext, tmpl *template.Template, res *template.Resource, steps []registry.Step) error {
	props := make(map[string]any, len(res.Properties)+1)
	for k, v := range res.Properties {
		props[k] = v
	}
	props[physicalIDAttr] = res.PhysicalID

	for _, step := range steps {
		args, err := e.buildArguments(ctx, sc, tmpl, res, props, step)
		if err != nil {
			return err
		}
		if args == nil {
			continue
		}
		if _, err := e.invoke(ctx, res.LogicalID, step.Operation, args); err != nil {
			return err
		}
	}
	return nil
}

// UpdateResource applies the update steps for a single resource and refreshes
// its state snapshot.
func (e *Engine) UpdateResource(ctx context.Context, tmpl *template.Template, stackName, logicalID string) error {
	res := tmpl.Resource(logicalID)
	if res == nil {
		return fmt.Errorf("no resource %q in template", logicalID)
	}
	steps := e.actions.Steps(res.Type, registry.ActionUpdate)
	if steps == nil {
		return &ActionNotImplementedError{Type: res.Type, Action: registry.ActionUpdate}
	}

	sc := e.stackContext(stackName)
	for _, step := range steps {
		args, err := e.buildArguments(ctx, sc, tmpl, res, res.Properties, step)
		if err != nil {
			return err
		}
		if args == nil {
			continue
		}
		if _, err := e.invoke(ctx, logicalID, step.Operation, args); err != nil {
			return err
		}
	}

	details, err := e.fetchState(ctx, sc, tmpl, res)
	if err != nil && !provider.IsNotFound(err) {
		return err
	}
	e.mu.Lock()
	res.Details = details
	e.mu.Unlock()
	return nil
}
