package engine

import (
	"fmt"
	"strings"

	"codecheck/internal/domain"
)

// RenderMessage expands the placeholders of an action's message template.
// {object_id} and {object_type} come from the object envelope; any other
// {name} placeholder is looked up in the property bag. Placeholders without a
// matching property render as-is, which keeps template typos visible in the
// report instead of silently disappearing.
func RenderMessage(template string, obj domain.BuildingObject) string {
	if !strings.Contains(template, "{") {
		return template
	}

	var b strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end += open

		b.WriteString(rest[:open])
		name := rest[open+1 : end]
		switch name {
		case "object_id":
			b.WriteString(obj.ObjectID)
		case "object_type":
			b.WriteString(obj.ObjectType)
		default:
			if v, ok := obj.Properties[name]; ok {
				b.WriteString(fmt.Sprintf("%v", v))
			} else {
				b.WriteString(rest[open : end+1])
			}
		}
		rest = rest[end+1:]
	}
}

// fireActions converts a failed condition into results, one per action. A rule
// with no actions still reports the failure as a violation so a misauthored
// pack cannot silently pass failing objects.
func fireActions(rule domain.Rule, obj domain.BuildingObject) []domain.ValidationResult {
	if len(rule.Actions) == 0 {
		return []domain.ValidationResult{{
			RuleID:    rule.ID,
			Standard:  rule.Standard,
			SectionID: rule.SectionID,
			ObjectID:  obj.ObjectID,
			Status:    domain.StatusViolation,
			Severity:  rule.Severity,
			Category:  rule.Category,
			Message:   fmt.Sprintf("object %s fails rule %s", obj.ObjectID, rule.ID),
		}}
	}

	out := make([]domain.ValidationResult, 0, len(rule.Actions))
	for _, act := range rule.Actions {
		status := domain.StatusViolation
		if act.Type == domain.ActionEmitWarning {
			status = domain.StatusWarning
		}
		out = append(out, domain.ValidationResult{
			RuleID:        rule.ID,
			Standard:      rule.Standard,
			SectionID:     rule.SectionID,
			ObjectID:      obj.ObjectID,
			Status:        status,
			Severity:      rule.Severity,
			Category:      rule.Category,
			Message:       RenderMessage(act.Message, obj),
			CodeReference: act.CodeReference,
		})
	}
	return out
}
