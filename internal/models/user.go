package models

// User roles recognised by the platform.
const (
	UserTypeTeacher = "teacher"
	UserTypeStudent = "student"
)

// UserType records whether an email belongs to a teacher or a student.
type UserType struct {
	ID    string `bson:"_id,omitempty" json:"id"`
	Email string `bson:"email" json:"email"`
	Type  string `bson:"type" json:"type"`
}

// TeacherStudentAssociation links a student to a teacher whose papers they may attempt.
type TeacherStudentAssociation struct {
	ID           string `bson:"_id,omitempty" json:"id"`
	TeacherEmail string `bson:"teacher_email" json:"teacher_email"`
	StudentEmail string `bson:"student_email" json:"student_email"`
}
