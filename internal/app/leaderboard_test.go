package app

import (
	"testing"

	"livequiz-service/internal/domain"
)

func TestRankPlayersStableOnTies(t *testing.T) {
	players := []domain.Player{
		{ID: "a", Score: 1000},
		{ID: "b", Score: 2000},
		{ID: "c", Score: 1000},
		{ID: "d", Score: 500},
	}

	ranked := rankPlayers(players)

	got := make([]string, 0, len(ranked))
	for _, p := range ranked {
		got = append(got, p.ID)
	}
	want := []string{"b", "a", "c", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}

	// The input slice must not be reordered.
	if players[0].ID != "a" || players[1].ID != "b" {
		t.Fatalf("expected input untouched, got %v", players)
	}
}

func TestBuildFinalReport(t *testing.T) {
	players := []domain.Player{
		{ID: "a", Score: 2100, CorrectCount: 2},
		{ID: "b", Score: 1000, CorrectCount: 1},
	}

	report := buildFinalReport(players, 3)

	if report.TotalPlayers != 2 || report.TotalQuestions != 3 {
		t.Fatalf("unexpected totals: %+v", report)
	}
	if report.AverageScore != 1550 {
		t.Fatalf("expected average score 1550, got %v", report.AverageScore)
	}
	if report.AverageAccuracy != 0.5 {
		t.Fatalf("expected accuracy 0.5, got %v", report.AverageAccuracy)
	}
}

func TestBuildFinalReportEmptySession(t *testing.T) {
	report := buildFinalReport(nil, 3)
	if report.TotalPlayers != 0 || report.AverageScore != 0 || report.AverageAccuracy != 0 {
		t.Fatalf("unexpected empty report: %+v", report)
	}
}
