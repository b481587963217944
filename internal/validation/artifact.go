package validation

import (
	"context"
	"strings"
)

// Marker is a phrase that betrays leaked reasoning in a solution.
type Marker struct {
	Phrase   string
	Severity string
}

// ArtifactScanner rejects solutions that contain reasoning artifacts.
type ArtifactScanner struct {
	markers []Marker
}

// NewArtifactScanner returns a scanner over markers. Phrases are matched
// case-insensitively.
func NewArtifactScanner(markers []Marker) *ArtifactScanner {
	m := make([]Marker, 0, len(markers))
	for _, mk := range markers {
		phrase := strings.ToLower(strings.TrimSpace(mk.Phrase))
		if phrase == "" {
			continue
		}
		sev := mk.Severity
		if sev != SeverityHigh {
			sev = SeverityLow
		}
		m = append(m, Marker{Phrase: phrase, Severity: sev})
	}
	return &ArtifactScanner{markers: m}
}

func (a *ArtifactScanner) State() State { return StateArtifactScan }

// Check scans the solution text. Any marker fails the candidate; severity
// is reported only.
func (a *ArtifactScanner) Check(_ context.Context, s Subject) StageResult {
	solution := strings.ToLower(s.Candidate.Solution)

	var findings []Finding
	for _, m := range a.markers {
		if strings.Contains(solution, m.Phrase) {
			findings = append(findings, Finding{
				Stage:    StateArtifactScan,
				Code:     "artifact_marker",
				Severity: m.Severity,
				Detail:   m.Phrase,
			})
		}
	}

	if len(findings) > 0 {
		return StageResult{Outcome: OutcomeFail, Findings: findings}
	}
	return StageResult{Outcome: OutcomePass}
}

// MaxSeverity returns the highest severity among findings, or "".
func MaxSeverity(findings []Finding) string {
	sev := ""
	for _, f := range findings {
		switch f.Severity {
		case SeverityHigh:
			return SeverityHigh
		case SeverityLow:
			sev = SeverityLow
		}
	}
	return sev
}
