package scheduler

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

const (
	REFRESH_TAG = "refresh"
)

type Scheduler struct {
	gocron.Scheduler
	log zerolog.Logger
}

func New(log zerolog.Logger) (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		Scheduler: scheduler,
		log:       log,
	}, nil
}

// AddRefreshJob runs refresh every interval, replacing any previous
// refresh job. A run that is still going when the next one is due is not
// overlapped; the next run is skipped instead.
func (s *Scheduler) AddRefreshJob(interval time.Duration, refresh func()) error {
	s.CancelRefreshJob()
	_, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(refresh),
		gocron.WithTags(REFRESH_TAG),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	s.log.Info().Dur("interval", interval).Msg("scheduled message refresh")
	return nil
}

func (s *Scheduler) CancelRefreshJob() {
	s.RemoveByTags(REFRESH_TAG)
}

func (s *Scheduler) HasRefreshJob() bool {
	for _, job := range s.Jobs() {
		for _, tag := range job.Tags() {
			if tag == REFRESH_TAG {
				return true
			}
		}
	}
	return false
}
