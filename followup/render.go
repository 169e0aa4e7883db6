package followup

import (
	"strings"

	"github.com/coralcommerce/dispatcher/models"
)

// template is one stage's message body, selected first by profile
// type, falling back to a generic body when no profile-specific
// variant exists. {{var}} placeholders are substituted from the
// snapshot; an unset variable substitutes the empty string.
type template struct {
	generic string
	byType  map[string]string
}

// stageTemplates is keyed by scripted stage value (each entry of
// stageValues, 0 through 66) plus the recurring
// maintenance stage (models.MaintenanceStage). Every entry must have at
// least a generic body.
var stageTemplates = map[int]template{
	0: {
		generic: "Hi {{firstName}}, just checking back in — still thinking about {{lastProduct}}? Happy to answer any questions.",
		byType: map[string]string{
			"reseller": "Hi {{firstName}}, following up on {{lastProduct}} — want me to send wholesale pricing?",
		},
	},
	1: {
		generic: "Hey, did you get a chance to look at {{lastProduct}}? Let me know if you'd like more details.",
	},
	2: {
		generic: "Quick one — is there anything holding you back from {{lastProduct}}? I can help with that.",
	},
	4: {
		generic: "{{firstName}}, we still have {{lastProduct}} available if you'd like to move forward.",
	},
	7: {
		generic: "Checking in again on {{lastProduct}} — happy to put together an offer if it helps.",
	},
	10: {
		generic: "It's been a little while — still interested in {{lastProduct}}, or should I close this out?",
	},
	14: {
		generic: "Last check-in from me on {{lastProduct}}. Reply any time and I'll pick this back up.",
	},
	18: {
		generic: "Hi {{firstName}}, a lot of people ask about {{lastProduct}} around this time of year — thought I'd reach out.",
	},
	26: {
		generic: "We've added a few new options since we last talked about {{lastProduct}}. Want a quick rundown?",
	},
	36: {
		generic: "Hi {{firstName}}, just making sure you still have a way to reach us if you need anything.",
	},
	46: {
		generic: "Checking in — no pressure, just here if {{lastProduct}} (or anything else) comes back up.",
	},
	56: {
		generic: "Hi {{firstName}}, it's been a while. Let us know if there's ever anything we can help with.",
	},
	66: {
		generic: "Last note from me for now — we're here whenever you're ready.",
	},
	models.MaintenanceStage: {
		generic: "Hi {{firstName}}, just staying in touch — reach out any time.",
	},
}

func render(stage int, snap models.FollowUpSnapshot) string {
	tmpl, ok := stageTemplates[stage]
	if !ok {
		tmpl = stageTemplates[models.MaintenanceStage]
	}

	body := tmpl.generic
	if byType, ok := tmpl.byType[snap.Profile.Type]; ok {
		body = byType
	}

	return substitute(body, vars(snap))
}

func vars(snap models.FollowUpSnapshot) map[string]string {
	v := map[string]string{}
	if len(snap.RecentProducts) > 0 {
		v["lastProduct"] = snap.RecentProducts[len(snap.RecentProducts)-1].Name
	}
	return v
}

func substitute(body string, vars map[string]string) string {
	var b strings.Builder
	for {
		start := strings.Index(body, "{{")
		if start == -1 {
			b.WriteString(body)
			break
		}
		end := strings.Index(body[start:], "}}")
		if end == -1 {
			b.WriteString(body)
			break
		}
		end += start
		b.WriteString(body[:start])
		key := strings.TrimSpace(body[start+2 : end])
		b.WriteString(vars[key]) // unset variables substitute the empty string
		body = body[end+2:]
	}
	return b.String()
}
