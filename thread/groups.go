package thread

// GroupMessages splits messages into maximal runs of the same role. Group
// order and the order inside each group follow the input, so joining the
// groups gives back the original list.
func GroupMessages(messages []DisplayMessage) []MessageGroup {
	var groups []MessageGroup
	for _, message := range messages {
		last := len(groups) - 1
		if last < 0 || groups[last].Role != message.MessageRole() {
			groups = append(groups, MessageGroup{
				Role:     message.MessageRole(),
				Messages: []DisplayMessage{message},
			})
			continue
		}
		groups[last].Messages = append(groups[last].Messages, message)
	}
	return groups
}
