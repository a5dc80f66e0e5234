package model

import "time"

type Teacher struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
}

type Student struct {
	ID           string
	Name         string
	RollNumber   string
	Email        string
	PasswordHash string
	SubgroupID   *string
}

type Subject struct {
	Code string
	Name string
}

// Subgroup is a cohort of students by branch and year.
type Subgroup struct {
	ID       string
	BranchID string
	YearID   string
}

// SubjectAssignment pairs a subject with the subgroups a teacher covers for it.
type SubjectAssignment struct {
	SubjectCode string
	Subgroups   []string
}

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
)

func (s AttendanceStatus) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// AttendanceEntry is one (student, status) pair in a teacher's batch.
type AttendanceEntry struct {
	StudentID string
	Status    AttendanceStatus
}

type AttendanceRecord struct {
	ID          string
	StudentID   string
	SubjectCode string
	Date        time.Time
	Status      AttendanceStatus
}

// TeacherSubjectRow is one row of the teacher detail join; Subgroup is nil when
// the teacher has no subgroup assigned for the subject.
type TeacherSubjectRow struct {
	SubjectCode string
	SubjectName string
	Subgroup    *Subgroup
}

// AttendanceRow joins an attendance record with the student it belongs to.
type AttendanceRow struct {
	Date         time.Time
	Status       AttendanceStatus
	StudentID    string
	StudentName  string
	StudentEmail string
}

// StudentSubjectRow is one row of the student detail join; attendance columns
// are nil when the student has no record for the subject yet.
type StudentSubjectRow struct {
	SubjectCode      string
	SubjectName      string
	TeacherID        string
	TeacherName      string
	Subgroup         Subgroup
	AttendanceDate   *time.Time
	AttendanceStatus *AttendanceStatus
}
