package in

import (
	"context"

	"focuslog/internal/modules/tracker/dto"
)

type Usecase interface {
	OnProgramEvent(ctx context.Context, event dto.ProgramFocusEvent) error
	OnTabEvent(ctx context.Context, event dto.TabFocusEvent) error
	OnPlayerEvent(ctx context.Context, event dto.PlayerStateEvent) error
	Handle(ctx context.Context, event dto.Event) error
	Run(ctx context.Context, events <-chan dto.Event) error
	Shutdown(ctx context.Context) error

	RecordHeartbeat(ctx context.Context, input dto.HeartbeatInput) error
	DaySummaries(ctx context.Context, query dto.DayQuery) ([]dto.SummaryOutput, error)
	DayLogs(ctx context.Context, query dto.DayQuery) ([]dto.SessionLogOutput, error)
	Mysteries(ctx context.Context) ([]dto.MysteryOutput, error)
	Current(ctx context.Context) (dto.CurrentOutput, error)
}
