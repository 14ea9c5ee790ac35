package model

// StartSessionRequest opens a proctored session for a quiz.
type StartSessionRequest struct {
	QuizID string `json:"quiz_id" binding:"required"`
}

// SendResultRequest is the mailer payload for one graded attempt.
type SendResultRequest struct {
	To               string `json:"to" binding:"required,email"`
	Name             string `json:"name" binding:"required"`
	UniversityNumber string `json:"university_number" binding:"required"`
	Score            int    `json:"score" binding:"min=0"`
	Status           string `json:"status" binding:"required,oneof=PASSED FAILED"`
	ViolationCount   int    `json:"violation_count" binding:"min=0"`
	Rank             int    `json:"rank" binding:"min=0"`
	QuizTitle        string `json:"quiz_title" binding:"required"`
}
