package conversation

import "slices"

// Reduce returns the state after applying a. It never modifies s, never
// reads the clock and never performs I/O.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case AddMessage:
		s.Messages = append(slices.Clip(s.Messages), a.Message)
		s.Error = nil
	case UpdateLastMessage:
		if len(s.Messages) == 0 {
			return s
		}
		msgs := slices.Clone(s.Messages)
		last := len(msgs) - 1
		msgs[last] = applyPatch(msgs[last], a.Patch)
		s.Messages = msgs
	case SetLoading:
		s.IsLoading = a.Loading
	case SetConnected:
		s.IsConnected = a.Connected
	case ClearMessages:
		s.Messages = nil
		s.Error = nil
	case SetError:
		s.Error = a.Error
	case SetTools:
		s.Tools = slices.Clone(a.Tools)
	}
	return s
}

// ReduceAll folds actions over s in order.
func ReduceAll(s State, actions ...Action) State {
	for _, a := range actions {
		s = Reduce(s, a)
	}
	return s
}

func applyPatch(m Message, p Patch) Message {
	if p.Content != nil {
		if p.Partial {
			m.Content += *p.Content
		} else {
			m.Content = *p.Content
		}
	}
	m.Thinking += p.Thinking
	if len(p.ThinkingSteps) > 0 {
		m.ThinkingSteps = append(slices.Clip(m.ThinkingSteps), p.ThinkingSteps...)
	}
	if p.ToolUse != nil {
		tu := *p.ToolUse
		m.ToolUse = &tu
	}
	if p.Data != nil {
		m.Data = p.Data
	}
	if len(p.Charts) > 0 {
		m.Charts = append(slices.Clip(m.Charts), p.Charts...)
	}
	if p.Dashboard != nil {
		m.Dashboard = *p.Dashboard
	}
	if p.DashboardFile != nil {
		m.DashboardFile = *p.DashboardFile
	}
	if p.WidgetFile != nil {
		m.WidgetFile = *p.WidgetFile
	}
	if p.Report != nil {
		r := *p.Report
		m.Report = &r
	}
	if p.DashboardMetadata != nil {
		m.DashboardMetadata = p.DashboardMetadata
	}
	if p.WidgetMetadata != nil {
		m.WidgetMetadata = p.WidgetMetadata
	}
	if p.Metadata != nil {
		m.Metadata = p.Metadata
	}
	if p.NeedsConfirmation != nil {
		m.NeedsConfirmation = *p.NeedsConfirmation
	}
	if p.Plan != nil {
		m.Plan = slices.Clone(p.Plan)
	}
	if p.OriginalQuery != nil {
		m.OriginalQuery = *p.OriginalQuery
	}
	if p.IsLoading != nil {
		m.IsLoading = *p.IsLoading
	}
	if p.Error != nil {
		m.Error = *p.Error
	}
	return m
}
