// Package courses talks to the course REST backend and keeps an ordered
// local copy of what it has listed.
package courses

// Course is a course as the backend returns it.
type Course struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Instructor  string `json:"instructor"`
}

// Input is the body sent to create or update a course.
type Input struct {
	Title       string `json:"title" validate:"notblank"`
	Description string `json:"description" validate:"notblank"`
	Instructor  string `json:"instructor"`
}
