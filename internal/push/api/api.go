package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pushgate/internal/push/cache"
	pushdb "pushgate/internal/push/database"
	"pushgate/internal/push/service/dispatch"
)

// Api wires the push HTTP surface onto a gin engine.
type Api struct {
	rules     *pushdb.RuleRepo
	robots    *pushdb.RobotRepo
	templates *pushdb.TemplateRepo
	channels  *pushdb.ChannelRepo
	mappings  *pushdb.MappingRepo
	records   *pushdb.RecordRepo
	logs      *pushdb.MessageLogRepo

	dispatcher *dispatch.Dispatcher
	deliveries *cache.DeliveryCache
}

type Deps struct {
	Rules     *pushdb.RuleRepo
	Robots    *pushdb.RobotRepo
	Templates *pushdb.TemplateRepo
	Channels  *pushdb.ChannelRepo
	Mappings  *pushdb.MappingRepo
	Records   *pushdb.RecordRepo
	Logs      *pushdb.MessageLogRepo

	Dispatcher *dispatch.Dispatcher
	Deliveries *cache.DeliveryCache
}

func NewApi(router *gin.Engine, deps Deps, adminAuth gin.HandlerFunc) *Api {
	api := &Api{
		rules:      deps.Rules,
		robots:     deps.Robots,
		templates:  deps.Templates,
		channels:   deps.Channels,
		mappings:   deps.Mappings,
		records:    deps.Records,
		logs:       deps.Logs,
		dispatcher: deps.Dispatcher,
		deliveries: deps.Deliveries,
	}
	api.setupRouters(router, adminAuth)
	return api
}

func (api *Api) setupRouters(router *gin.Engine, adminAuth gin.HandlerFunc) {
	// public ingestion and push endpoints; extraction rules decide what the
	// payload means, so no schema or auth is applied here
	router.POST("/v1/alerts/:template_id/dispatch", api.DispatchAlert)
	router.POST("/v1/push/:template_id/robots/:robot_id", api.PushToRobot)
	router.POST("/v1/push/:template_id", api.PushByTemplate)
	router.POST("/v1/push/:template_id/by-name", api.PushByRobotName)
	router.GET("/v1/templates/:id/info", api.GetTemplateInfo)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := router.Group("/v1", adminAuth)
	{
		admin.POST("/rules", api.CreateRule)
		admin.GET("/rules", api.ListRules)
		admin.PUT("/rules/:id", api.UpdateRule)
		admin.DELETE("/rules/:id", api.DeleteRule)

		admin.POST("/robots", api.CreateRobot)
		admin.GET("/robots", api.ListRobots)
		admin.PUT("/robots/:id", api.UpdateRobot)
		admin.DELETE("/robots/:id", api.DeleteRobot)
		admin.POST("/robots/:id/test", api.TestRobot)

		admin.POST("/templates", api.CreateTemplate)
		admin.GET("/templates", api.ListTemplates)
		admin.PUT("/templates/:id", api.UpdateTemplate)
		admin.DELETE("/templates/:id", api.DeleteTemplate)

		admin.POST("/channels", api.CreateChannel)
		admin.GET("/channels", api.ListChannels)
		admin.PUT("/channels/:id", api.UpdateChannel)
		admin.DELETE("/channels/:id", api.DeleteChannel)

		admin.GET("/instances", api.ListInstances)
		admin.GET("/instances/:name", api.GetInstance)
		admin.PUT("/instances/:name/channels", api.SetInstanceChannels)
		admin.DELETE("/instances/:name/channels", api.ClearInstanceChannels)
		admin.GET("/instances/:name/records", api.ListInstanceRecords)

		admin.GET("/dashboard/stats", api.DashboardStats)
		admin.GET("/dashboard/chart", api.DashboardChart)
		admin.GET("/dashboard/recent-logs", api.DashboardRecentLogs)
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, gin.H{"error": msg})
}

func internalError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
