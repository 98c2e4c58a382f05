package domain

// StatusChange describes one decided application to tell its applicant about.
// Cascade is true when the application was rejected because another
// application for the same pet was approved.
type StatusChange struct {
	Application Application
	Pet         Pet
	Applicant   User
	Cascade     bool
}
