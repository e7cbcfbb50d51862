package plan

import "sort"

// Dedupe removes phases whose id was already seen, keeping the first occurrence.
// Order of the survivors is preserved. The input is not modified.
func Dedupe(phases []Phase) []Phase {
	seen := make(map[int]bool, len(phases))
	out := make([]Phase, 0, len(phases))
	for _, p := range phases {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p.clone())
	}
	return out
}

// DedupeByNumber removes phases whose non-zero phase number was already seen,
// keeping the first occurrence, then falls back to id for unnumbered phases.
// The design view lists phases this way because generated designs are keyed
// by phase number.
func DedupeByNumber(phases []Phase) []Phase {
	seenNumber := make(map[int]bool, len(phases))
	var numbered []Phase
	for _, p := range phases {
		if p.PhaseNumber != 0 {
			if seenNumber[p.PhaseNumber] {
				continue
			}
			seenNumber[p.PhaseNumber] = true
		}
		numbered = append(numbered, p)
	}
	return Dedupe(numbered)
}

// SortPhases orders phases ascending by phase number, or by id when the
// number is absent. The sort is stable so equal keys keep their order.
func SortPhases(phases []Phase) {
	sort.SliceStable(phases, func(i, j int) bool {
		return phases[i].sortKey() < phases[j].sortKey()
	})
}

// Reconcile merges a freshly fetched phase list into the locally known one.
//
// The result contains exactly the fetched phases, deduplicated by id and
// sorted. Structural fields (name, description, task list) come from the
// fetch; a task that also exists locally keeps its local status. Local phases
// absent from the fetch are dropped.
func Reconcile(local, fetched []Phase) []Phase {
	merged := Dedupe(fetched)

	prev := Dedupe(local)
	if len(prev) > 0 {
		prevByID := make(map[int]Phase, len(prev))
		for _, p := range prev {
			prevByID[p.ID] = p
		}

		for i := range merged {
			existing, ok := prevByID[merged[i].ID]
			if !ok {
				continue
			}
			statuses := make(map[int]TaskStatus, len(existing.Tasks))
			for _, t := range existing.Tasks {
				statuses[t.ID] = t.Status
			}
			for j := range merged[i].Tasks {
				if s, ok := statuses[merged[i].Tasks[j].ID]; ok {
					merged[i].Tasks[j].Status = s
				}
			}
		}
	}

	SortPhases(merged)
	return merged
}

// AllTasks flattens phases into a single task list in phase order.
func AllTasks(phases []Phase) []Task {
	var out []Task
	for _, p := range phases {
		out = append(out, p.Tasks...)
	}
	return out
}

// FirstCompletedFile returns the file path of the first completed task that
// targets a file, scanning phases in order.
func FirstCompletedFile(phases []Phase) (string, bool) {
	for _, p := range phases {
		for _, t := range p.Tasks {
			if t.Status == TaskCompleted && t.HasFile() {
				return *t.FilePath, true
			}
		}
	}
	return "", false
}
