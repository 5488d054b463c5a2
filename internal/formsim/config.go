// Package formsim drives the intake webhook with generated form submissions
// and checks the service accounted for them.
package formsim

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Submissions   int           // Number of forms to submit
	DuplicateRate float64       // Share of submissions reusing an earlier email, 0..1
	Workers       int           // Number of concurrent workers
	Timeout       time.Duration // HTTP request timeout
	Settle        time.Duration // Wait before reading /stats
	OutputFile    string        // Output file for generated payloads
	LogFile       string        // Log file for run output
	Verbose       bool          // Enable verbose logging
}

// Answer is one form answer as the form provider posts it.
type Answer struct {
	ID    string `json:"id"`
	Value any    `json:"value"`
}

// Payload is a form webhook body.
type Payload struct {
	Answers []Answer `json:"answers"`
	// Email is kept to tell intended duplicates apart. Not sent.
	Email string `json:"-"`
	// Duplicate marks a payload reusing an earlier email.
	Duplicate bool `json:"-"`
}

// AckResponse represents the response from a form submission.
type AckResponse struct {
	Status        string `json:"status"`
	ApplicationID string `json:"application_id"`
	Duplicate     bool   `json:"duplicate"`
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Created    int
	Flagged    int
	Rejected   int
	Throttled  int
	Failed     int
	StageTotal int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
