package controller

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// StartRollover schedules the midnight reset of the Daily_Cycles and
// Daily_Runtime_Sec counters and a one-line daily summary notification.
// The returned cron should be stopped on shutdown.
func (c *Controller) StartRollover() (*cron.Cron, error) {
	cr := cron.New()
	if _, err := cr.AddFunc("0 0 * * *", c.rolloverDaily); err != nil {
		return nil, err
	}
	cr.Start()
	return cr, nil
}

func (c *Controller) rolloverDaily() {
	c.mu.Lock()
	cycles, runtime := c.dailyCycles, c.dailyRunS
	c.dailyCycles = 0
	c.dailyRunS = 0
	c.mu.Unlock()

	c.logger.WithField("cycles", cycles).Info("Daily counters rolled over")
	c.notifier.Notify(context.Background(),
		fmt.Sprintf("Daily summary: %d cycles, %.1fs total working time", cycles, runtime))
}
