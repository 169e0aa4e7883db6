package models

import "strings"

// urgentKeywords trigger HIGH priority when present anywhere in the
// (lowercased) message text. Spanish/Portuguese mix matches the
// dispatcher's primary market.
var urgentKeywords = []string{"urgent", "urgente", "problema", "reclamo", "reclamação", "reclamacao"}

// AssignPriority derives a Priority from message content and context:
// a known VIP or a supervisory-originated message is URGENT; bulk
// automation traffic is LOW; content carrying an urgency keyword is
// HIGH; everything else is NORMAL.
func AssignPriority(text string, vip bool, supervisoryCommand bool, bulkAutomation bool) Priority {
	switch {
	case vip, supervisoryCommand:
		return PriorityUrgent
	case bulkAutomation:
		return PriorityLow
	case containsUrgentKeyword(text):
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

func containsUrgentKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range urgentKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
