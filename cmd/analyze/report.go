package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"scorelens/pkg/contracts/domain"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	warning = color.New(color.FgYellow)
	success = color.New(color.FgGreen)
)

func printReport(w io.Writer, report *domain.AnalyticsReport) {
	heading.Fprintf(w, "\n=== Analytics report %s ===\n", report.RunID)
	fmt.Fprintf(w, "Grouped by %s, ranked by %s\n", report.GroupBy, report.Metric)

	printQuality(w, report.Quality)
	printStatistics(w, report.Statistics)
	printTopN(w, report.TopN)
	printTrends(w, report.Trends)
	printProfiles(w, report.Profiles)
	printTraits(w, report.Traits, report.Ratings)
	printActivities(w, report.Profiles)
	printRejections(w, report.Rejected)
}

func printQuality(w io.Writer, q domain.QualityReport) {
	heading.Fprintln(w, "\nData quality")
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Rows In", "Valid", "Rejected", "Duplicates"})
	table.Append([]string{
		strconv.Itoa(q.RowsIn),
		strconv.Itoa(q.Valid),
		strconv.Itoa(q.Rejected),
		strconv.Itoa(q.Duplicates),
	})
	table.Render()

	if len(q.Unmapped) > 0 {
		warning.Fprintf(w, "Unmapped columns: %s\n", strings.Join(q.Unmapped, ", "))
	}
}

func printStatistics(w io.Writer, stats map[string]domain.StatisticsSummary) {
	if len(stats) == 0 {
		return
	}
	heading.Fprintln(w, "\nStatistics")

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Group", "Count", "Average", "Min", "Max", "Median", "Std Dev"})
	for _, k := range keys {
		s := stats[k]
		table.Append([]string{k, strconv.Itoa(s.Count), num(s.Average), num(s.Min), num(s.Max), num(s.Median), num(s.StdDev)})
	}
	table.Render()
}

func printTopN(w io.Writer, top []domain.RankedEntry) {
	if len(top) == 0 {
		return
	}
	heading.Fprintln(w, "\nTop subjects")
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Rank", "Subject", "Value", "Count"})
	for i, e := range top {
		table.Append([]string{strconv.Itoa(i + 1), e.Key, num(e.Value), strconv.Itoa(e.Summary.Count)})
	}
	table.Render()
}

func printTrends(w io.Writer, trends []domain.TrendResult) {
	if len(trends) == 0 {
		return
	}
	heading.Fprintln(w, "\nTrends")
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Student", "Subject", "Direction", "Slope", "Next", "Confidence", "Momentum"})
	for _, t := range trends {
		table.Append([]string{
			t.StudentID, t.Subject, string(t.Direction), num(t.Slope),
			optional(t.PredictedNext), num(t.Confidence), string(t.Momentum),
		})
	}
	table.Render()
}

func printProfiles(w io.Writer, profiles []domain.StudentProfile) {
	if len(profiles) == 0 {
		return
	}
	heading.Fprintln(w, "\nStudents")
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Student", "Records", "Average", "Strength", "Weakness"})
	for _, p := range profiles {
		table.Append([]string{p.StudentID, strconv.Itoa(len(p.Records)), num(p.Overall.Average),
			subjectScore(p.Strength), subjectScore(p.Weakness)})
	}
	table.Render()
}

func printTraits(w io.Writer, traits []domain.BehaviorTrait, ratings []domain.RatingPair) {
	if len(traits) > 0 {
		heading.Fprintln(w, "\nBehavioral traits")
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Trait", "Evidence", "Confidence"})
		for _, t := range traits {
			table.Append([]string{t.Label, t.EvidenceSpan, num(t.Confidence)})
		}
		table.Render()
	}
	if len(ratings) > 0 {
		heading.Fprintln(w, "\nRatings")
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Attribute", "Rating", "Line"})
		for _, r := range ratings {
			table.Append([]string{r.Attribute, r.Rating, strconv.Itoa(r.Line)})
		}
		table.Render()
	}
}

func printActivities(w io.Writer, profiles []domain.StudentProfile) {
	for _, p := range profiles {
		if len(p.Activities) == 0 {
			continue
		}
		heading.Fprintf(w, "\nActivities of %s\n", p.StudentID)
		for _, a := range p.Activities {
			fmt.Fprintf(w, "  - %s\n", a)
		}
	}
}

func printRejections(w io.Writer, rejected []domain.Rejection) {
	if len(rejected) == 0 {
		return
	}
	warning.Fprintf(w, "\n%d rows rejected\n", len(rejected))
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Reason", "Field", "Detail"})
	for _, r := range rejected {
		table.Append([]string{string(r.Reason), r.Field, r.Detail})
	}
	table.Render()
}

func printFiles(w io.Writer, files []string) {
	if len(files) == 0 {
		return
	}
	success.Fprintf(w, "\nWrote %d files\n", len(files))
	for _, f := range files {
		fmt.Fprintf(w, "  %s\n", f)
	}
}

func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return num(*v)
}

func subjectScore(s *domain.SubjectScore) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", s.Subject, num(s.Average))
}
