package api

import (
	"context"
	"net/http"
	"sort"

	"github.com/danielgtaylor/huma/v2"

	"github.com/visiona/framesync/internal/pipelines"
	"github.com/visiona/framesync/internal/report"
	"github.com/visiona/framesync/internal/version"
)

// HealthData is the health check payload.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Health status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

// HealthResponse wraps the health check payload.
type HealthResponse struct {
	Body HealthData
}

// VersionResponse wraps the build metadata payload.
type VersionResponse struct {
	Body version.Info
}

// PipelineListResponse wraps the pipeline listing.
type PipelineListResponse struct {
	Body struct {
		Pipelines []pipelines.Info `json:"pipelines" doc:"Running pipelines"`
	}
}

// PipelineStatsResponse wraps one pipeline's statistics snapshot.
type PipelineStatsResponse struct {
	Body report.Snapshot
}

// registerPipelineRoutes sets up the pipeline inspection endpoints.
func (s *Server) registerPipelineRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-pipelines",
		Method:      http.MethodGet,
		Path:        "/api/pipelines",
		Summary:     "List pipelines",
		Description: "List running synchronization pipelines with their stream buffer depths",
		Tags:        []string{"pipelines"},
	}, func(ctx context.Context, input *struct{}) (*PipelineListResponse, error) {
		infos := s.manager.List()
		sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

		resp := &PipelineListResponse{}
		resp.Body.Pipelines = infos
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-pipeline-stats",
		Method:      http.MethodGet,
		Path:        "/api/pipelines/{name}/stats",
		Summary:     "Pipeline statistics",
		Description: "Per-stream match/drop counters and pairwise timestamp delta distributions",
		Tags:        []string{"pipelines"},
		Errors:      []int{404},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name" example:"depth" doc:"Pipeline name"`
	}) (*PipelineStatsResponse, error) {
		snap, err := s.manager.Snapshot(input.Name)
		if err != nil {
			return nil, huma.Error404NotFound("pipeline not found", err)
		}
		return &PipelineStatsResponse{Body: snap}, nil
	})
}
