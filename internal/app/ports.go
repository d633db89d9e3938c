package app

import (
	"context"

	"github.com/norrland/verkstad/internal/domain"
)

// Repository is the persistence port the service drives. Implementations
// translate their own not-found conditions to ErrNotFound.
type Repository interface {
	CreateProject(context.Context, domain.Project) error
	UpdateProject(context.Context, domain.Project) error
	GetProject(context.Context, string) (domain.Project, error)
	ListProjects(context.Context) ([]domain.Project, error)

	CreateVersion(context.Context, domain.Version) error
	UpdateVersion(context.Context, domain.Version) error
	GetVersion(context.Context, string) (domain.Version, error)
	ListVersions(context.Context, string) ([]domain.Version, error)

	CreateTask(context.Context, domain.Task) error
	UpdateTask(context.Context, domain.Task) error
	GetTask(context.Context, string) (domain.Task, error)
	ListTasks(context.Context, string) ([]domain.Task, error)
	DeleteTask(context.Context, string) error

	CreateStep(context.Context, domain.Step) error
	UpdateStep(context.Context, domain.Step) error
	GetStep(context.Context, string) (domain.Step, error)
	ListSteps(context.Context, string) ([]domain.Step, error)
	DeleteStep(context.Context, string) error
}
