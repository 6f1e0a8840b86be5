package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const reflectionPrompt = `Reflect on these recent actions:
%s

Consider why each action was taken, what was learned, what could be
improved, and how the actions connect. Respond with a concise reflective
summary.`

// BatchReflect summarizes recent unreflected actions through the
// generator. The summary is stored on each covered action row, recorded
// as a thought of type "reflection", and logged as an action. It returns
// the summary, or "" when nothing needed reflecting.
func (b *Bot) BatchReflect(ctx context.Context, limit int) (string, error) {
	if limit <= 0 {
		limit = 50
	}

	actions, err := b.store.ActionsWithoutReflection(ctx, limit)
	if err != nil {
		return "", err
	}
	if len(actions) == 0 {
		return "", nil
	}

	var lines []string
	for i, a := range actions {
		lines = append(lines, fmt.Sprintf("%d. [%s] %s", i+1, a.Action, string(a.Details)))
	}

	summary, err := b.gen.Generate(ctx, fmt.Sprintf(reflectionPrompt, strings.Join(lines, "\n")))
	if err != nil {
		b.store.LogAction(ctx, "reflection_error", map[string]any{"error": err.Error()})
		return "", err
	}

	for _, a := range actions {
		if err := b.store.SetReflection(ctx, a.ID, summary); err != nil {
			return "", err
		}
	}

	if _, err := b.store.RecordThought(ctx, "reflection", summary, nil, nil); err != nil {
		return "", err
	}
	if err := b.store.LogAction(ctx, "reflection", map[string]any{"actions": len(actions)}); err != nil {
		return "", err
	}

	b.log.Info("batch reflection recorded", zap.Int("actions", len(actions)))
	return summary, nil
}
