package usecase

import (
	"fmt"
	"strings"

	"ScriptWriter/internal/domain"
)

const systemPrompt = `You are an expert researcher and scriptwriter for short-form vertical video (TikTok, Reels, Shorts).
You write punchy, concrete, conversational copy and you follow output format instructions exactly.`

func gatherPrompt(videoIdea string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Find 4-6 credible, diverse research sources for a short-form video about: %q\n\n", videoIdea)
	sb.WriteString("For every source provide:\n")
	sb.WriteString("- \"title\": the article or page title\n")
	sb.WriteString("- \"link\": the full URL\n")
	sb.WriteString("- \"snippet\": one or two sentences describing what the source contributes\n\n")
	sb.WriteString("Respond ONLY with a JSON array of objects with exactly those keys. No markdown. No explanation.")
	return sb.String()
}

func extractPrompt(src domain.Source, pageExcerpt string) string {
	var sb strings.Builder
	sb.WriteString("Expand the following research source into 3-4 detailed paragraphs of factual content ")
	sb.WriteString("that a scriptwriter could draw specific claims, numbers and examples from.\n\n")
	fmt.Fprintf(&sb, "TITLE: %s\n", src.Title)
	fmt.Fprintf(&sb, "LINK: %s\n", src.Link)
	fmt.Fprintf(&sb, "SNIPPET: %s\n", src.Snippet)
	if pageExcerpt != "" {
		fmt.Fprintf(&sb, "\nPAGE EXCERPT:\n%s\n", pageExcerpt)
	}
	sb.WriteString("\nRespond with plain paragraphs only.")
	return sb.String()
}

const componentSchemaDoc = `{
  "type": "object",
  "required": ["hooks", "bridges", "golden_nuggets", "wtas"],
  "properties": {
    "hooks": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "bridges": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "golden_nuggets": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["title", "bullet_points"],
        "properties": {
          "title": {"type": "string", "minLength": 1},
          "bullet_points": {"type": "array", "minItems": 3, "items": {"type": "string", "minLength": 1}}
        }
      }
    },
    "wtas": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}}
  }
}`

func componentsPrompt(videoIdea, research string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "VIDEO IDEA: %s\n\n", videoIdea)
	fmt.Fprintf(&sb, "RESEARCH:\n%s\n\n", research)
	sb.WriteString("Using the research, write building blocks for a 30-60 second script:\n")
	sb.WriteString("- 4 hooks: scroll-stopping opening lines\n")
	sb.WriteString("- 4 bridges: one or two sentences that carry the viewer from the hook into the value\n")
	sb.WriteString("- golden nuggets: the core insight, each with a title and 3-5 actionable bullet points\n")
	sb.WriteString("- 4 wtas: \"why to act\" calls-to-action that close the video\n\n")
	sb.WriteString("Respond ONLY with a JSON object of this exact shape:\n")
	sb.WriteString(`{"hooks": ["..."x4], "bridges": ["..."x4], "golden_nuggets": [{"title": "...", "bullet_points": ["...", "...", "..."]}], "wtas": ["..."x4]}`)
	sb.WriteString("\n\nIt must validate against this JSON Schema:\n")
	sb.WriteString(componentSchemaDoc)
	return sb.String()
}

func assemblePrompt(videoIdea string, selected domain.SelectedContent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "VIDEO IDEA: %s\n\n", videoIdea)
	sb.WriteString("Weave the following pieces into ONE flowing short-form video script. ")
	sb.WriteString("Keep their order: hook, bridge, golden nugget, call-to-action. ")
	sb.WriteString("Smooth the transitions, keep the voice conversational and keep every bullet's substance.\n\n")
	fmt.Fprintf(&sb, "HOOK:\n%s\n\n", selected.Hook)
	fmt.Fprintf(&sb, "BRIDGE:\n%s\n\n", selected.Bridge)
	fmt.Fprintf(&sb, "GOLDEN NUGGET: %s\n", selected.GoldenNugget.Title)
	for _, point := range selected.GoldenNugget.BulletPoints {
		fmt.Fprintf(&sb, "- %s\n", point)
	}
	fmt.Fprintf(&sb, "\nCALL-TO-ACTION:\n%s\n\n", selected.WTA)
	sb.WriteString("Respond with the script text only.")
	return sb.String()
}
