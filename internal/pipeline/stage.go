package pipeline

import (
	"context"

	"github.com/nickh0112/insta-captions/internal/workspace"
)

// StageRunner executes one external-tool stage against a workspace. Produced
// is the number of output files the stage added. A returned error aborts the
// job; per-URL failures inside a stage are reported through logging and the
// produced count instead.
type StageRunner interface {
	Name() string
	Run(ctx context.Context, ws *workspace.Workspace, urls []string) (produced int, err error)
}
