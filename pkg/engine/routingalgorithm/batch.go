package routingalgorithm

import (
	"context"
	"runtime"

	"github.com/lihanning0817/low-altitude-traffic-system/pkg/concurrent"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"
)

type RouteRequest struct {
	ID    string `json:"id"`
	Start string `json:"start"`
	Goal  string `json:"goal"`
}

// BatchResult is the outcome of one RouteRequest. Success is false only when the request itself
// failed (unknown node, cancelled); an unreachable goal is Success with Found false.
type BatchResult struct {
	ID      string              `json:"id"`
	Success bool                `json:"success"`
	Found   bool                `json:"found"`
	Path    *datastructure.Path `json:"path,omitempty"`
	Error   string              `json:"error,omitempty"`
}

type indexedResult struct {
	idx    int
	result BatchResult
}

// PlanMultipleRoutes runs ShortestPathAStar for every request on a worker pool. The returned slice
// has one entry per request in request order. Requests not started before ctx is done are
// reported as failed with the context error.
func (rt *RouteAlgorithm) PlanMultipleRoutes(ctx context.Context, requests []RouteRequest, workers int) []BatchResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	planned := concurrent.Run[RouteRequest, indexedResult](workers, requests,
		func(job concurrent.Job[RouteRequest]) indexedResult {
			return indexedResult{idx: job.ID, result: rt.planOne(ctx, job.JobItem)}
		})

	results := make([]BatchResult, len(requests))
	for _, r := range planned {
		results[r.idx] = r.result
	}
	return results
}

func (rt *RouteAlgorithm) planOne(ctx context.Context, req RouteRequest) BatchResult {
	res := BatchResult{ID: req.ID}
	if err := ctx.Err(); err != nil {
		res.Error = err.Error()
		return res
	}

	path, found, err := rt.ShortestPathAStar(req.Start, req.Goal)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.Found = found
	if found {
		res.Path = &path
	}
	return res
}
