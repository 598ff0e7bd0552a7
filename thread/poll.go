package thread

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// IsPending reports whether a run in this status still needs polling.
// requires_action is not pending: polling stops there and no tool outputs
// are submitted.
func IsPending(status openai.RunStatus) bool {
	switch status {
	case openai.RunStatusQueued, openai.RunStatusInProgress, openai.RunStatusCancelling:
		return true
	default:
		return false
	}
}

func IsTerminal(status openai.RunStatus) bool {
	return !IsPending(status)
}

// pollRun re-fetches run until it leaves the pending statuses, tracking
// every response as the last run.
func (o *Orchestrator) pollRun(
	ctx context.Context,
	api AssistantAPI,
	threadID string,
	run openai.Run,
) (openai.Run, error) {
	log := o.log.With().Str("thread_id", threadID).Str("run_id", run.ID).Logger()

	prevStatus := run.Status
	for IsPending(run.Status) {
		if err := o.waitPoll(ctx); err != nil {
			return run, err
		}

		next, err := api.RetrieveRun(ctx, threadID, run.ID)
		o.metrics.RunPolls.Inc()
		if err != nil {
			log.Error().Err(err).Msg("error retrieving run")
			return run, o.transportError(opRetrieveRun, err)
		}
		run = next
		o.setLastRun(&next)

		if prevStatus != run.Status {
			log.Debug().Str("status", string(run.Status)).Msg("run status changed")
			prevStatus = run.Status
		}
	}

	o.metrics.RunsFinished.WithLabelValues(string(run.Status)).Inc()

	switch run.Status {
	case openai.RunStatusCompleted:
		log.Info().Msg("run completed")
	case openai.RunStatusRequiresAction:
		// TODO: submit tool outputs once the assistant is configured with tools
		log.Warn().Msg("run requires action; tool outputs are not submitted")
	case openai.RunStatusFailed:
		event := log.Warn()
		if run.LastError != nil {
			event = event.Str("code", string(run.LastError.Code)).Str("error", run.LastError.Message)
		}
		event.Msg("run failed")
	default:
		log.Warn().Str("status", string(run.Status)).Msg("run finished without completing")
	}
	return run, nil
}

func (o *Orchestrator) waitPoll(ctx context.Context) error {
	if o.pollInterval <= 0 {
		return nil
	}
	timer := time.NewTimer(o.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
