package study

import (
	"fmt"
	"strings"

	"biblestudy/internal/domain"
	"biblestudy/internal/domain/jsoncfg"
)

func buildPlanPrompt(params domain.StudyParameters) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "You are an experienced Bible study author. Respond strictly with JSON matching this schema: ")
	sb.WriteString(`{"title":string,"description":string,"theme":string,"weekly":bool,"days":[{"day_number":int,"week_number":int|null,"focus":string,"passages":string[]}]}`)
	fmt.Fprintf(sb, ". Plan a %d-day %s study on %q for a %s audience at %s level.",
		params.DurationDays, params.Style, params.Topic, params.Audience, params.Difficulty)
	if params.SpecialRequirements != "" {
		fmt.Fprintf(sb, " Special requirements: %s.", params.SpecialRequirements)
	}
	sb.WriteString(" Every day needs at least one scripture passage cited as a standard reference, e.g. \"John 3:16\".")
	return sb.String()
}

func buildDayPrompt(params domain.StudyParameters, plan jsoncfg.StudyPlanJSON, day jsoncfg.PlanDayJSON) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "You are writing day %d of the Bible study %q (theme: %s). Respond strictly with JSON matching this schema: ",
		day.DayNumber, plan.Title, plan.Theme)
	sb.WriteString(`{"day_number":int,"title":string,"teaching_content":string,"passages":string[],"questions":string[],"prayer_focus":string}`)
	fmt.Fprintf(sb, ". Focus: %s. Passages to build on: %s. Write for a %s audience at %s level in a %s style.",
		day.Focus, strings.Join(day.Passages, "; "), params.Audience, params.Difficulty, params.Style)
	sb.WriteString(" teaching_content is 300-500 words of plain prose. Include 3-5 reflection questions.")
	return sb.String()
}

func buildTheologyPrompt(plan jsoncfg.StudyPlanJSON, days []domain.GeneratedDay) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "You are a theological reviewer checking a Bible study titled %q for doctrinal soundness. ", plan.Title)
	sb.WriteString("Respond strictly with JSON matching this schema: ")
	sb.WriteString(`{"approved":bool,"summary":string,"concerns":[{"day_number":int,"issue":string,"severity":"low"|"medium"|"high"}]}`)
	sb.WriteString(". The study content follows, one day per line:\n")
	for _, d := range days {
		fmt.Fprintf(sb, "Day %d: %s. %s (passages: %s)\n", d.DayNumber, d.Title, truncate(d.TeachingContent, 400), strings.Join(d.Passages, "; "))
	}
	return sb.String()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
