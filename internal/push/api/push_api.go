package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pushgate/internal/push/cache"
	"pushgate/internal/push/model"
	"pushgate/internal/push/service/dispatch"
)

// DispatchAlert ingests an arbitrary alert payload and routes it through the
// rule pipeline. The response is always a complete dispatch report.
func (api *Api) DispatchAlert(c *gin.Context) {
	tpl, ok := api.templateFromParam(c, "template_id")
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil || len(body) == 0 {
		badRequest(c, "empty or unreadable payload")
		return
	}
	payload := string(body)

	key := cache.Key(tpl.ID, payload)
	if !api.deliveries.TryMark(c.Request.Context(), key) {
		var cached dispatch.Report
		if api.deliveries.GetReport(c.Request.Context(), key, &cached) {
			log.Info().Str("template", tpl.Name).Msg("duplicate delivery, returning cached report")
			c.JSON(http.StatusOK, &cached)
			return
		}
	}

	report := api.dispatcher.DispatchAlert(c.Request.Context(), tpl, payload)
	api.deliveries.StoreReport(c.Request.Context(), key, report)
	c.JSON(http.StatusOK, report)
}

// PushToRobot sends one payload through a named template and robot pair.
func (api *Api) PushToRobot(c *gin.Context) {
	tpl, ok := api.templateFromParam(c, "template_id")
	if !ok {
		return
	}
	robot, ok := api.robotFromParam(c, "robot_id")
	if !ok {
		return
	}
	api.pushDirect(c, tpl, robot)
}

// PushByTemplate sends through a template, picking a matching robot
// automatically: the default robot of the template's vendor type, else any
// robot of that type.
func (api *Api) PushByTemplate(c *gin.Context) {
	tpl, ok := api.templateFromParam(c, "template_id")
	if !ok {
		return
	}

	robot, err := api.robots.GetDefaultRobot(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	if robot == nil || robot.Type != tpl.Type {
		if robot, err = api.robots.GetFirstRobotByType(c.Request.Context(), tpl.Type); err != nil {
			internalError(c, err)
			return
		}
	}
	if robot == nil {
		badRequest(c, "no robot matches template type "+string(tpl.Type))
		return
	}
	api.pushDirect(c, tpl, robot)
}

// PushByRobotName sends through a template and a robot addressed by english
// name (?robot_english_name=), falling back to the default robot.
func (api *Api) PushByRobotName(c *gin.Context) {
	tpl, ok := api.templateFromParam(c, "template_id")
	if !ok {
		return
	}

	var robot *model.Robot
	var err error
	if name := c.Query("robot_english_name"); name != "" {
		if robot, err = api.robots.GetRobotByEnglishName(c.Request.Context(), name); err != nil {
			internalError(c, err)
			return
		}
	}
	if robot == nil {
		if robot, err = api.robots.GetDefaultRobot(c.Request.Context()); err != nil {
			internalError(c, err)
			return
		}
	}
	if robot == nil {
		notFound(c, "no robot found by name and no default robot configured")
		return
	}
	api.pushDirect(c, tpl, robot)
}

func (api *Api) pushDirect(c *gin.Context, tpl *model.Template, robot *model.Robot) {
	var data map[string]any
	if err := c.ShouldBindJSON(&data); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}

	res := api.dispatcher.DispatchDirect(c.Request.Context(), tpl, robot, data)
	if res.Status != dispatch.StatusSuccess {
		c.JSON(http.StatusBadRequest, gin.H{"error": res.Error})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "push succeeded"})
}

// TestRobot fires a literal test message through a robot, bypassing templates.
func (api *Api) TestRobot(c *gin.Context) {
	robot, ok := api.robotFromParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		req.Message = "pushgate test message"
	}

	res := api.dispatcher.SendRaw(c.Request.Context(), robot, req.Message)
	if res.Status != dispatch.StatusSuccess {
		c.JSON(http.StatusBadRequest, gin.H{"error": res.Error})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "test push succeeded"})
}

func (api *Api) templateFromParam(c *gin.Context, param string) (*model.Template, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil {
		badRequest(c, "invalid template id")
		return nil, false
	}
	tpl, err := api.templates.GetTemplate(c.Request.Context(), id)
	if err != nil {
		internalError(c, err)
		return nil, false
	}
	if tpl == nil {
		notFound(c, "template not found")
		return nil, false
	}
	return tpl, true
}

func (api *Api) robotFromParam(c *gin.Context, param string) (*model.Robot, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil {
		badRequest(c, "invalid robot id")
		return nil, false
	}
	robot, err := api.robots.GetRobot(c.Request.Context(), id)
	if err != nil {
		internalError(c, err)
		return nil, false
	}
	if robot == nil {
		notFound(c, "robot not found")
		return nil, false
	}
	return robot, true
}
