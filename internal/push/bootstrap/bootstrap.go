package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	pushdb "pushgate/internal/push/database"
	"pushgate/internal/push/model"
)

// SeedFile is the YAML layout of a bootstrap file. It lets a fresh deployment
// come up with its rules, robots, templates and channels pre-configured.
type SeedFile struct {
	Rules []struct {
		Name        string `yaml:"name"`
		Type        string `yaml:"type"`
		Description string `yaml:"description"`
		Expression  string `yaml:"expression"`
		Active      *bool  `yaml:"is_active"`
	} `yaml:"rules"`
	Robots []struct {
		Name        string `yaml:"name"`
		EnglishName string `yaml:"english_name"`
		WebhookURL  string `yaml:"webhook_url"`
		Type        string `yaml:"robot_type"`
		IsDefault   bool   `yaml:"is_default"`
	} `yaml:"robots"`
	Templates []struct {
		Name    string `yaml:"name"`
		Content string `yaml:"content"`
		Type    string `yaml:"robot_type"`
	} `yaml:"templates"`
	Channels []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Robot       string `yaml:"robot"`    // robot name
		Template    string `yaml:"template"` // template name
		Active      *bool  `yaml:"is_active"`
	} `yaml:"channels"`
}

// Deps are the repositories bootstrap writes through.
type Deps struct {
	Rules     *pushdb.RuleRepo
	Robots    *pushdb.RobotRepo
	Templates *pushdb.TemplateRepo
	Channels  *pushdb.ChannelRepo
}

// Run seeds missing entities from the YAML file at path. Entities are matched
// by name; existing ones are left untouched, so reruns are harmless.
func Run(ctx context.Context, path string, deps Deps) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read bootstrap file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse bootstrap file: %w", err)
	}

	if err := seedRules(ctx, &seed, deps); err != nil {
		return err
	}
	robotIDs, err := seedRobots(ctx, &seed, deps)
	if err != nil {
		return err
	}
	templateIDs, err := seedTemplates(ctx, &seed, deps)
	if err != nil {
		return err
	}
	return seedChannels(ctx, &seed, deps, robotIDs, templateIDs)
}

func seedRules(ctx context.Context, seed *SeedFile, deps Deps) error {
	existing, err := deps.Rules.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}
	byName := map[string]bool{}
	for _, r := range existing {
		byName[r.Name] = true
	}
	for _, s := range seed.Rules {
		if byName[s.Name] {
			continue
		}
		active := true
		if s.Active != nil {
			active = *s.Active
		}
		if _, err := deps.Rules.CreateRule(ctx, &model.Rule{
			Name: s.Name, Kind: model.RuleKind(s.Type), Description: s.Description,
			Expression: s.Expression, Active: active,
		}); err != nil {
			return fmt.Errorf("seed rule %s: %w", s.Name, err)
		}
		log.Info().Str("rule", s.Name).Msg("bootstrap: rule created")
	}
	return nil
}

func seedRobots(ctx context.Context, seed *SeedFile, deps Deps) (map[string]int64, error) {
	existing, err := deps.Robots.ListRobots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list robots: %w", err)
	}
	ids := map[string]int64{}
	for _, b := range existing {
		ids[b.Name] = b.ID
	}
	for _, s := range seed.Robots {
		if _, ok := ids[s.Name]; ok {
			continue
		}
		created, err := deps.Robots.CreateRobot(ctx, &model.Robot{
			Name: s.Name, EnglishName: s.EnglishName, WebhookURL: s.WebhookURL,
			Type: model.RobotType(s.Type), IsDefault: s.IsDefault,
		})
		if err != nil {
			return nil, fmt.Errorf("seed robot %s: %w", s.Name, err)
		}
		ids[s.Name] = created.ID
		log.Info().Str("robot", s.Name).Msg("bootstrap: robot created")
	}
	return ids, nil
}

func seedTemplates(ctx context.Context, seed *SeedFile, deps Deps) (map[string]int64, error) {
	existing, err := deps.Templates.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	ids := map[string]int64{}
	for _, t := range existing {
		ids[t.Name] = t.ID
	}
	for _, s := range seed.Templates {
		if _, ok := ids[s.Name]; ok {
			continue
		}
		created, err := deps.Templates.CreateTemplate(ctx, &model.Template{
			Name: s.Name, Content: s.Content, Type: model.RobotType(s.Type),
		})
		if err != nil {
			return nil, fmt.Errorf("seed template %s: %w", s.Name, err)
		}
		ids[s.Name] = created.ID
		log.Info().Str("template", s.Name).Msg("bootstrap: template created")
	}
	return ids, nil
}

func seedChannels(ctx context.Context, seed *SeedFile, deps Deps, robotIDs, templateIDs map[string]int64) error {
	existing, err := deps.Channels.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}
	byName := map[string]bool{}
	for _, c := range existing {
		byName[c.Name] = true
	}
	for _, s := range seed.Channels {
		if byName[s.Name] {
			continue
		}
		robotID, ok := robotIDs[s.Robot]
		if !ok {
			return fmt.Errorf("seed channel %s: unknown robot %q", s.Name, s.Robot)
		}
		templateID, ok := templateIDs[s.Template]
		if !ok {
			return fmt.Errorf("seed channel %s: unknown template %q", s.Name, s.Template)
		}
		active := true
		if s.Active != nil {
			active = *s.Active
		}
		if _, err := deps.Channels.CreateChannel(ctx, s.Name, s.Description, robotID, templateID, active); err != nil {
			return fmt.Errorf("seed channel %s: %w", s.Name, err)
		}
		log.Info().Str("channel", s.Name).Msg("bootstrap: channel created")
	}
	return nil
}
