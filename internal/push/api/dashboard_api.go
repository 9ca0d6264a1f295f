package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	pushdb "pushgate/internal/push/database"
)

// DashboardStats reports entity totals and the current month's send volume.
func (api *Api) DashboardStats(c *gin.Context) {
	ctx := c.Request.Context()

	templateCount, err := api.logs.CountRows(ctx, "templates")
	if err != nil {
		internalError(c, err)
		return
	}
	robotCount, err := api.logs.CountRows(ctx, "robots")
	if err != nil {
		internalError(c, err)
		return
	}
	instanceCount, err := api.logs.CountRows(ctx, "instance_mappings")
	if err != nil {
		internalError(c, err)
		return
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthMessages, err := api.logs.CountLogsSince(ctx, monthStart, nil)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"template_count":         templateCount,
		"robot_count":            robotCount,
		"instance_count":         instanceCount,
		"current_month_messages": monthMessages,
	})
}

// DashboardChart returns success/failure trend series for the requested
// range (?time_range=week|month) plus the robot type distribution.
func (api *Api) DashboardChart(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now()

	var since time.Time
	var days int
	if c.DefaultQuery("time_range", "week") == "month" {
		since = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		days = time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	} else {
		// week starts on Monday
		weekday := (int(now.Weekday()) + 6) % 7
		since = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -weekday)
		days = 7
	}

	outcomes, err := api.logs.OutcomesByDay(ctx, since)
	if err != nil {
		internalError(c, err)
		return
	}
	byDay := map[string]pushdb.DailyOutcome{}
	for _, o := range outcomes {
		byDay[o.Day.Format("2006-01-02")] = o
	}

	categories := make([]string, 0, days)
	success := make([]int64, days)
	failed := make([]int64, days)
	for i := 0; i < days; i++ {
		day := since.AddDate(0, 0, i)
		categories = append(categories, day.Format("01-02"))
		if o, ok := byDay[day.Format("2006-01-02")]; ok {
			success[i] = o.Success
			failed[i] = o.Failed
		}
	}

	typeCounts, err := api.logs.CountRobotsByType(ctx)
	if err != nil {
		internalError(c, err)
		return
	}
	typeStats := []gin.H{}
	for _, tc := range typeCounts {
		typeStats = append(typeStats, gin.H{"name": string(tc.Type), "value": tc.Count})
	}

	c.JSON(http.StatusOK, gin.H{
		"trend_data": gin.H{
			"categories": categories,
			"series": []gin.H{
				{"name": "success", "data": success},
				{"name": "failed", "data": failed},
			},
		},
		"robot_type_stats": typeStats,
	})
}

// DashboardRecentLogs returns the latest send attempts.
func (api *Api) DashboardRecentLogs(c *gin.Context) {
	logs, err := api.logs.ListRecentLogs(c.Request.Context(), 5)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
