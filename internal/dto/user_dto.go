package dto

// UserTypeCreateRequest registers the role of an email.
type UserTypeCreateRequest struct {
	Email    string `json:"email" validate:"required,email"`
	UserType string `json:"user_type" validate:"required,oneof=teacher student"`
}

// UserTypeResponse returns the role of an email.
type UserTypeResponse struct {
	Type string `json:"type"`
}

// AssociationCreateRequest links a student to a teacher.
type AssociationCreateRequest struct {
	TeacherEmail string `json:"teacher_email" validate:"required,email"`
	StudentEmail string `json:"student_email" validate:"required,email"`
}

// CreatedResponse returns the identifier of a newly stored document.
type CreatedResponse struct {
	ID string `json:"id"`
}
