package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pushgate/internal/push/model"
	"pushgate/internal/push/service/render"
)

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

// --- rules ---

type ruleRequest struct {
	Name        string `json:"name" binding:"required"`
	Kind        string `json:"type" binding:"required"`
	Description string `json:"description"`
	Expression  string `json:"expression" binding:"required"`
	Active      *bool  `json:"is_active"`
}

func (r *ruleRequest) toModel() (*model.Rule, string) {
	kind := model.RuleKind(r.Kind)
	if kind != model.RuleKindJSON && kind != model.RuleKindString {
		return nil, "type must be json or string"
	}
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return &model.Rule{Name: r.Name, Kind: kind, Description: r.Description, Expression: r.Expression, Active: active}, ""
}

func (api *Api) CreateRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	rule, msg := req.toModel()
	if msg != "" {
		badRequest(c, msg)
		return
	}
	created, err := api.rules.CreateRule(c.Request.Context(), rule)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (api *Api) ListRules(c *gin.Context) {
	rules, err := api.rules.ListRules(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (api *Api) UpdateRule(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	rule, msg := req.toModel()
	if msg != "" {
		badRequest(c, msg)
		return
	}
	rule.ID = id
	if err := api.rules.UpdateRule(c.Request.Context(), rule); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "rule updated"})
}

func (api *Api) DeleteRule(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := api.rules.DeleteRule(c.Request.Context(), id); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "rule deleted"})
}

// --- robots ---

type robotRequest struct {
	Name        string `json:"name" binding:"required"`
	EnglishName string `json:"english_name"`
	WebhookURL  string `json:"webhook_url" binding:"required"`
	Type        string `json:"robot_type" binding:"required"`
	IsDefault   bool   `json:"is_default"`
}

func (api *Api) CreateRobot(c *gin.Context) {
	var req robotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	t := model.RobotType(req.Type)
	if !t.Valid() {
		badRequest(c, "unsupported robot_type")
		return
	}
	created, err := api.robots.CreateRobot(c.Request.Context(), &model.Robot{
		Name: req.Name, EnglishName: req.EnglishName, WebhookURL: req.WebhookURL, Type: t, IsDefault: req.IsDefault,
	})
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (api *Api) ListRobots(c *gin.Context) {
	robots, err := api.robots.ListRobots(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"robots": robots})
}

func (api *Api) UpdateRobot(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req robotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	t := model.RobotType(req.Type)
	if !t.Valid() {
		badRequest(c, "unsupported robot_type")
		return
	}
	robot := &model.Robot{ID: id, Name: req.Name, EnglishName: req.EnglishName, WebhookURL: req.WebhookURL, Type: t, IsDefault: req.IsDefault}
	if err := api.robots.UpdateRobot(c.Request.Context(), robot); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "robot updated"})
}

func (api *Api) DeleteRobot(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := api.robots.DeleteRobot(c.Request.Context(), id); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "robot deleted"})
}

// --- templates ---

type templateRequest struct {
	Name    string `json:"name" binding:"required"`
	Content string `json:"content" binding:"required"`
	Type    string `json:"robot_type" binding:"required"`
}

func (api *Api) CreateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	t := model.RobotType(req.Type)
	if !t.Valid() {
		badRequest(c, "unsupported robot_type")
		return
	}
	created, err := api.templates.CreateTemplate(c.Request.Context(), &model.Template{Name: req.Name, Content: req.Content, Type: t})
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (api *Api) ListTemplates(c *gin.Context) {
	templates, err := api.templates.ListTemplates(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

func (api *Api) UpdateTemplate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	t := model.RobotType(req.Type)
	if !t.Valid() {
		badRequest(c, "unsupported robot_type")
		return
	}
	tpl := &model.Template{ID: id, Name: req.Name, Content: req.Content, Type: t}
	if err := api.templates.UpdateTemplate(c.Request.Context(), tpl); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "template updated"})
}

func (api *Api) DeleteTemplate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := api.templates.DeleteTemplate(c.Request.Context(), id); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "template deleted"})
}

// GetTemplateInfo describes a template for integrators: its variables, an
// example payload, and the robots able to receive it.
func (api *Api) GetTemplateInfo(c *gin.Context) {
	tpl, ok := api.templateFromParam(c, "id")
	if !ok {
		return
	}

	vars := render.Vars(tpl.Content)
	example := map[string]string{}
	for _, v := range vars {
		example[v] = "example " + v
	}

	robots, err := api.robots.ListRobots(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	matching := []gin.H{}
	for _, b := range robots {
		if b.Type == tpl.Type {
			matching = append(matching, gin.H{"id": b.ID, "name": b.Name, "english_name": b.EnglishName})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"name":            tpl.Name,
		"robot_type":      tpl.Type,
		"variables":       vars,
		"example_json":    example,
		"matching_robots": matching,
	})
}

// --- channels ---

type channelRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	RobotID     int64  `json:"robot_id" binding:"required"`
	TemplateID  int64  `json:"template_id" binding:"required"`
	Active      *bool  `json:"is_active"`
}

func (api *Api) CreateChannel(c *gin.Context) {
	var req channelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	created, err := api.channels.CreateChannel(c.Request.Context(), req.Name, req.Description, req.RobotID, req.TemplateID, active)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (api *Api) ListChannels(c *gin.Context) {
	channels, err := api.channels.ListChannels(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

func (api *Api) UpdateChannel(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		Active      *bool  `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	if err := api.channels.UpdateChannel(c.Request.Context(), id, req.Name, req.Description, active); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "channel updated"})
}

func (api *Api) DeleteChannel(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := api.channels.DeleteChannel(c.Request.Context(), id); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "channel deleted"})
}

// --- instances ---

func (api *Api) ListInstances(c *gin.Context) {
	mappings, err := api.mappings.ListMappings(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instances": mappings})
}

func (api *Api) GetInstance(c *gin.Context) {
	name := c.Param("name")
	m, err := api.mappings.GetMapping(c.Request.Context(), name)
	if err != nil {
		internalError(c, err)
		return
	}
	if m == nil {
		notFound(c, "instance mapping not found")
		return
	}
	channels, err := api.channels.GetChannelsByInstance(c.Request.Context(), name)
	if err != nil {
		internalError(c, err)
		return
	}
	m.Channels = channels
	c.JSON(http.StatusOK, m)
}

func (api *Api) SetInstanceChannels(c *gin.Context) {
	name := c.Param("name")
	var req struct {
		ChannelIDs []int64 `json:"channel_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := api.mappings.SetChannels(c.Request.Context(), name, req.ChannelIDs); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "channels bound"})
}

func (api *Api) ClearInstanceChannels(c *gin.Context) {
	if err := api.mappings.ClearChannels(c.Request.Context(), c.Param("name")); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "channels cleared"})
}

func (api *Api) ListInstanceRecords(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := api.records.ListRecordsByInstance(c.Request.Context(), c.Param("name"), limit)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}
