package in

import (
	"context"
	"time"

	trackerdto "focuslog/internal/modules/tracker/dto"
	trackerin "focuslog/internal/modules/tracker/port/in"
)

type CLIHandler struct {
	usecase trackerin.Usecase
}

func NewCLIHandler(usecase trackerin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Heartbeat(ctx context.Context, at time.Time) error {
	return h.usecase.RecordHeartbeat(ctx, trackerdto.HeartbeatInput{Timestamp: at})
}

func (h CLIHandler) Summaries(ctx context.Context, family, day string) ([]trackerdto.SummaryOutput, error) {
	return h.usecase.DaySummaries(ctx, trackerdto.DayQuery{Family: family, Day: day})
}

func (h CLIHandler) Sessions(ctx context.Context, family, day string) ([]trackerdto.SessionLogOutput, error) {
	return h.usecase.DayLogs(ctx, trackerdto.DayQuery{Family: family, Day: day})
}

func (h CLIHandler) Mysteries(ctx context.Context) ([]trackerdto.MysteryOutput, error) {
	return h.usecase.Mysteries(ctx)
}

func (h CLIHandler) Current(ctx context.Context) (trackerdto.CurrentOutput, error) {
	return h.usecase.Current(ctx)
}
