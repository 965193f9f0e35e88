package debate

import (
	"fmt"
	"strings"

	"debatebench/internal/schema"
)

// EndOfTurnMarker is the fixed token debaters are instructed to close
// every reply with. It is stripped before a turn is stored.
const EndOfTurnMarker = "<END_OF_TURN>"

var stageGuidance = map[string]string{
	"opening":  "Present your strongest case for your side of the motion.",
	"rebuttal": "Directly refute the opponent's arguments from the transcript so far.",
	"closing":  "Summarize why your side has won this debate. Do not introduce new arguments.",
}

func sideFraming(cfg schema.MainConfig, speaker string) string {
	if speaker == schema.SidePro && cfg.SystemPromptPro != "" {
		return cfg.SystemPromptPro
	}
	if speaker == schema.SideCon && cfg.SystemPromptCon != "" {
		return cfg.SystemPromptCon
	}
	position := "in favour of"
	if speaker == schema.SideCon {
		position = "against"
	}
	return fmt.Sprintf(
		"You are the %s side in a formal debate, arguing %s the motion. Be persuasive, factual, and concise.",
		strings.ToUpper(speaker), position)
}

// buildTurnPrompt assembles a single self-contained prompt: side
// framing, motion, stage guidance, end-of-turn instruction, and the
// full prior-turn history.
func buildTurnPrompt(cfg schema.MainConfig, topic schema.Topic, round schema.RoundConfig, turns []schema.Turn) string {
	var sb strings.Builder

	sb.WriteString(sideFraming(cfg, round.Speaker))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Motion: %s\n", topic.Motion)
	fmt.Fprintf(&sb, "Stage: %s", round.Stage)
	if guidance, ok := stageGuidance[round.Stage]; ok {
		fmt.Fprintf(&sb, ". %s", guidance)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "End your reply with the marker %s on its own.\n", EndOfTurnMarker)

	if len(turns) > 0 {
		sb.WriteString("\nDebate so far:\n")
		for _, t := range turns {
			fmt.Fprintf(&sb, "%s (%s): %s\n", strings.ToUpper(t.Speaker), t.Stage, t.Content)
		}
	}
	return sb.String()
}
