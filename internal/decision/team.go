package decision

// Resolve produces the ordered team membership and team mode for a
// team-shaped decision. Isolated from the trigger logic so the ordering
// policy stays independently testable.
//
// Mention-triggered teams coordinate in mention order; participation-
// triggered teams collaborate in first-appearance order.
func Resolve(trigger Rule, mentionedOrder, participatingOrder []string) ([]string, TeamMode) {
	switch trigger {
	case RuleMentions:
		return append([]string(nil), mentionedOrder...), TeamCoordinate
	default:
		return append([]string(nil), participatingOrder...), TeamCollaborate
	}
}
