package service

import "github.com/noah-isme/peak-go-api/internal/models"

// ResetAll returns a copy of paper with every score, feedback and total cleared and the evaluated
// flag lowered. It never fails and makes no external calls.
func ResetAll(paper models.Paper) models.Paper {
	submissions := paper.CloneSubmissions()
	for i := range submissions {
		for j := range submissions[i].Answers {
			submissions[i].Answers[j].Scores = models.Score{}
			submissions[i].Answers[j].Feedback = ""
		}
		submissions[i].TotalScore = 0
	}

	updated := paper
	updated.Submissions = submissions
	updated.Evaluated = false
	return updated
}

func countAnswers(submissions []models.StudentSubmission) int {
	count := 0
	for _, submission := range submissions {
		count += len(submission.Answers)
	}
	return count
}
