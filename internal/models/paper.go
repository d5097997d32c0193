package models

import "time"

// Score holds the rubric sub-scores of one answer. The zero value is the ungraded state.
type Score struct {
	Clarity      float64 `bson:"clarity" json:"clarity"`
	Relevance    float64 `bson:"relevance" json:"relevance"`
	Accuracy     float64 `bson:"accuracy" json:"accuracy"`
	Completeness float64 `bson:"completeness" json:"completeness"`
	Average      float64 `bson:"average" json:"average"`
}

// StudentAnswer is a student's response to the question sharing the same order.
type StudentAnswer struct {
	Order    int    `bson:"order" json:"order"`
	Answer   string `bson:"answer" json:"answer"`
	Scores   Score  `bson:"scores" json:"scores"`
	Feedback string `bson:"feedback" json:"feedback"`
}

// StudentSubmission is one student's attempt at a paper.
type StudentSubmission struct {
	StudentEmail string          `bson:"student_email" json:"student_email"`
	Answers      []StudentAnswer `bson:"answers" json:"answers"`
	TotalScore   float64         `bson:"total_score" json:"total_score"`
}

// Question is a question of a paper together with the teacher's reference answer.
type Question struct {
	Order    int    `bson:"order" json:"order"`
	Question string `bson:"question" json:"question"`
	Answer   string `bson:"answer" json:"answer"`
}

// Paper is a teacher-authored question paper with its embedded submissions.
type Paper struct {
	ID           string              `bson:"_id,omitempty" json:"id"`
	TeacherEmail string              `bson:"teacher_email" json:"teacher_email"`
	Title        string              `bson:"title" json:"title"`
	Evaluated    bool                `bson:"evaluated" json:"evaluated"`
	Expired      bool                `bson:"expired" json:"expired"`
	Questions    []Question          `bson:"questions" json:"questions"`
	Submissions  []StudentSubmission `bson:"submissions" json:"submissions"`
	Version      int64               `bson:"version" json:"-"`
	EvaluatedAt  *time.Time          `bson:"evaluated_at,omitempty" json:"evaluated_at,omitempty"`
	CreatedAt    time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `bson:"updated_at" json:"updated_at"`
}

// HasSubmissions reports whether at least one student attempted the paper.
func (p Paper) HasSubmissions() bool {
	return len(p.Submissions) > 0
}

// SubmissionFor returns the submission of the given student, if any.
func (p Paper) SubmissionFor(email string) (StudentSubmission, bool) {
	for _, submission := range p.Submissions {
		if submission.StudentEmail == email {
			return submission, true
		}
	}
	return StudentSubmission{}, false
}

// CloneSubmissions returns a deep copy of the submissions so callers can rewrite scores without
// touching the original paper.
func (p Paper) CloneSubmissions() []StudentSubmission {
	if p.Submissions == nil {
		return nil
	}
	cloned := make([]StudentSubmission, len(p.Submissions))
	for i, submission := range p.Submissions {
		cloned[i] = submission
		cloned[i].Answers = append([]StudentAnswer(nil), submission.Answers...)
	}
	return cloned
}
