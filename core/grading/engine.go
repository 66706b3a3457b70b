package grading

// The engine is pure: no I/O, no shared state. Callers fetch assessments and scores
// for one class (and one student, except for ComputeBulk) and feed them in.

type scoreEntry struct {
	raw      float64
	excluded bool
}

// scoreLookup indexes scores by assessment ID. A null raw score counts as 0.
// When an assessment has several records the last one wins.
func scoreLookup(scores []ScoreRecord) map[string]scoreEntry {
	lookup := make(map[string]scoreEntry, len(scores))
	for _, s := range scores {
		var raw float64
		if s.RawScore.Valid {
			raw = s.RawScore.Float64
		}
		lookup[s.AssessmentID] = scoreEntry{raw: raw, excluded: s.IsExcluded}
	}
	return lookup
}

// childrenIndex groups child assessments by their parent ID.
func childrenIndex(assessments []Assessment) map[string][]Assessment {
	children := make(map[string][]Assessment)
	for _, a := range assessments {
		if a.ParentID.Valid {
			children[a.ParentID.String] = append(children[a.ParentID.String], a)
		}
	}
	return children
}

// standaloneScore converts a raw score to a percentage of MaxScore.
// It is not clamped: scoring above MaxScore yields more than 100.
func standaloneScore(a Assessment, entry scoreEntry) float64 {
	return entry.raw / a.maxScore() * 100
}

// parentScore aggregates the non-excluded children of a parent.
// Each child is clamped at 100% of its own weight.
func parentScore(children []Assessment, lookup map[string]scoreEntry) float64 {
	var earned, possible float64
	for _, child := range children {
		entry := lookup[child.ID]
		if entry.excluded {
			continue
		}
		pct := entry.raw / child.maxScore()
		if pct > 1 {
			pct = 1
		}
		earned += pct * child.Weight
		possible += child.Weight
	}
	if possible <= 0 {
		return 0
	}
	return earned / possible * 100
}

// rescale grades a student only on the weight still active for them.
// Weighted values under an active weight of 100 or more are left as is.
func rescale(v, activeWeight float64) float64 {
	switch {
	case activeWeight <= 0:
		return 0
	case activeWeight < 100:
		return v / activeWeight * 100
	default:
		return v
	}
}

type graded struct {
	assessment Assessment
	score      float64
}

// evaluate runs the weighted sum over the top-level assessments.
func evaluate(assessments []Assessment, lookup map[string]scoreEntry) (items []graded, total, activeWeight float64) {
	children := childrenIndex(assessments)

	for _, a := range assessments {
		if a.ParentID.Valid {
			continue // children are graded through their parent
		}
		if lookup[a.ID].excluded {
			continue
		}
		activeWeight += a.Weight

		var score float64
		if a.IsParent {
			score = parentScore(children[a.ID], lookup)
		} else {
			score = standaloneScore(a, lookup[a.ID])
		}
		total += score * a.Weight / 100
		items = append(items, graded{assessment: a, score: score})
	}
	return items, total, activeWeight
}

// ComputeGrade returns one student's final weighted percentage for one class.
// All scores are assumed to belong to that student; assessments without a score record
// count as 0 and not excluded. It never fails: nothing gradable yields 0.
func ComputeGrade(assessments []Assessment, scores []ScoreRecord) float64 {
	_, total, activeWeight := evaluate(assessments, scoreLookup(scores))
	return rescale(total, activeWeight)
}

// ComputeBreakdown is ComputeGrade plus the per-assessment details explaining the grade.
func ComputeBreakdown(assessments []Assessment, scores []ScoreRecord) Breakdown {
	lookup := scoreLookup(scores)
	items, total, activeWeight := evaluate(assessments, lookup)

	bd := Breakdown{
		Grade:        rescale(total, activeWeight),
		ActiveWeight: activeWeight,
		Items:        make([]BreakdownItem, 0, len(items)),
		Excluded:     make([]string, 0),
	}
	for _, it := range items {
		bd.Items = append(bd.Items, BreakdownItem{
			AssessmentID: it.assessment.ID,
			Name:         it.assessment.Name,
			Kind:         it.assessment.Kind(),
			Score:        it.score,
			Weight:       it.assessment.Weight,
			Contribution: rescale(it.score*it.assessment.Weight/100, activeWeight),
		})
	}

	for _, a := range assessments {
		if lookup[a.ID].excluded {
			bd.Excluded = append(bd.Excluded, a.ID)
		}
	}
	return bd
}

// ComputeBulk partitions score rows by student and grades each student independently.
// Students without any row are not in the result.
func ComputeBulk(assessments []Assessment, scores []ScoreRecord) map[string]float64 {
	byStudent := make(map[string][]ScoreRecord)
	for _, s := range scores {
		byStudent[s.StudentID] = append(byStudent[s.StudentID], s)
	}

	grades := make(map[string]float64, len(byStudent))
	for studentID, studentScores := range byStudent {
		grades[studentID] = ComputeGrade(assessments, studentScores)
	}
	return grades
}
