package dataprocessing

import (
	"sort"

	"scorelens/internal/statistics"
	"scorelens/pkg/contracts/domain"
)

// BuildProfiles summarizes each student's records: overall and per-subject
// statistics, the student's top subjects, strongest and weakest subject, and
// the student's trends. Profiles are ordered by student id.
func BuildProfiles(records []domain.CanonicalRecord, trends []domain.TrendResult, topN int, metric statistics.Metric) ([]domain.StudentProfile, error) {
	byStudent := make(map[string][]domain.CanonicalRecord)
	for _, rec := range records {
		byStudent[rec.StudentID] = append(byStudent[rec.StudentID], rec)
	}
	trendsByStudent := make(map[string][]domain.TrendResult)
	for _, tr := range trends {
		trendsByStudent[tr.StudentID] = append(trendsByStudent[tr.StudentID], tr)
	}

	students := make([]string, 0, len(byStudent))
	for s := range byStudent {
		students = append(students, s)
	}
	sort.Strings(students)

	profiles := make([]domain.StudentProfile, 0, len(students))
	for _, student := range students {
		recs := byStudent[student]
		subjects := statistics.Summarize(recs, statistics.GroupSubject)

		top, err := statistics.Rank(subjects, topN, metric)
		if err != nil {
			return nil, err
		}

		profile := domain.StudentProfile{
			StudentID: student,
			Overall:   statistics.Summarize(recs, statistics.GroupNone)[statistics.AllKey],
			Subjects:  subjects,
			Top:       top,
			Trends:    trendsByStudent[student],
			Records:   recs,
		}
		if profile.Trends == nil {
			profile.Trends = []domain.TrendResult{}
		}

		if best, err := statistics.Rank(subjects, 1, statistics.MetricAverage); err == nil && len(best) == 1 {
			profile.Strength = &domain.SubjectScore{Subject: best[0].Key, Average: best[0].Value}
		}
		if len(subjects) > 1 {
			if worst, err := statistics.Bottom(subjects, 1, statistics.MetricAverage); err == nil && len(worst) == 1 {
				profile.Weakness = &domain.SubjectScore{Subject: worst[0].Key, Average: worst[0].Value}
			}
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}
