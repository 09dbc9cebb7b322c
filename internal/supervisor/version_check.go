package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/LiXi-storage/clownfish/internal/utils"
)

const versionCheckInterval = 24 * time.Hour

// versionCheck runs the management command's version check roughly daily.
// The first run happens within 30 seconds of startup; later runs are
// staggered around the daily interval so a fleet does not check in lockstep.
func (s *Supervisor) versionCheck(ctx context.Context, waitGroup *sync.WaitGroup) {
	defer waitGroup.Done()

	select {
	case <-time.After(utils.RandomStagger(30 * time.Second)):
	case <-ctx.Done():
		return
	}
	s.versionCheckOnce()

	for {
		select {
		case <-time.After(utils.RandomStaggerQuarter(versionCheckInterval)):
			s.versionCheckOnce()
		case <-ctx.Done():
			s.logger.Error("exiting from version checking")
			return
		}
	}
}

func (s *Supervisor) versionCheckOnce() {
	res := s.runner.Run("version_check", "--no_log_prefix")
	s.logger.Debug("finished version check",
		"error", res.Err, "duration", res.DurationSeconds())
	if res.Stdout != "" {
		s.logger.Info(res.Stdout)
	}
	if res.Stderr != "" {
		s.logger.Error(res.Stderr)
	}
}
