package questions

// Selection bounds used by Filter.
const (
	MinQuestions = 10
	MaxQuestions = 12
)

// Filter selects between MinQuestions and MaxQuestions questions.
// See FilterWithLimits.
func Filter(all []Question) []Question {
	return FilterWithLimits(all, MinQuestions, MaxQuestions)
}

// FilterWithLimits reduces all to a balanced subset:
//
//   - Banks of at most minCount questions are returned unchanged.
//   - Every question that needs input is kept. If those alone reach maxCount, the
//     first maxCount of them are returned.
//   - Remaining slots (up to minCount when the mandatory set is below minCount,
//     otherwise up to maxCount) are filled round-robin across sections, taking
//     each section's questions in order.
//
// The result is in source order and is deterministic for a given input.
func FilterWithLimits(all []Question, minCount, maxCount int) []Question {
	if len(all) <= minCount {
		return all
	}

	var selected []Question
	selectedIDs := make(map[string]bool)
	for _, q := range all {
		if q.NeedsInput {
			selected = append(selected, q)
			selectedIDs[q.ID] = true
		}
	}

	if len(selected) >= maxCount {
		return selected[:maxCount]
	}

	// Section queues of the not-yet-selected questions, in first-seen order.
	var sections []string
	queues := make(map[string][]Question)
	for _, q := range all {
		if selectedIDs[q.ID] {
			continue
		}
		if _, ok := queues[q.Section]; !ok {
			sections = append(sections, q.Section)
		}
		queues[q.Section] = append(queues[q.Section], q)
	}

	target := maxCount
	if len(selected) < minCount {
		target = minCount
	}
	needed := target - len(selected)
	if needed < 0 {
		needed = 0
	}

	// sectionIndex always points into sections.
	sectionIndex := 0
	for needed > 0 && len(sections) > 0 {
		current := sections[sectionIndex]
		if queue := queues[current]; len(queue) > 0 {
			selected = append(selected, queue[0])
			selectedIDs[queue[0].ID] = true
			queues[current] = queue[1:]
			needed--
			sectionIndex = (sectionIndex + 1) % len(sections)
			continue
		}

		// Drop the exhausted section; the one after it slides into its slot.
		sections = append(sections[:sectionIndex], sections[sectionIndex+1:]...)
		delete(queues, current)
		if sectionIndex >= len(sections) {
			sectionIndex = 0
		}
	}

	// Restore source order.
	ordered := make([]Question, 0, len(selected))
	emitted := make(map[string]bool, len(selected))
	for _, q := range all {
		if selectedIDs[q.ID] && !emitted[q.ID] {
			ordered = append(ordered, q)
			emitted[q.ID] = true
		}
	}

	if len(ordered) > maxCount {
		ordered = ordered[:maxCount]
	}
	return ordered
}
